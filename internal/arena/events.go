package arena

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"time"

	"gauntlet/internal/logging"
)

// test2json actions the verdict layer folds over.
const (
	ActionRun    = "run"
	ActionPass   = "pass"
	ActionFail   = "fail"
	ActionSkip   = "skip"
	ActionOutput = "output"
)

// TestEvent is one record of the test2json stream.
type TestEvent struct {
	Time    time.Time `json:"Time"`
	Action  string    `json:"Action"`
	Package string    `json:"Package,omitempty"`
	Test    string    `json:"Test,omitempty"`
	Elapsed float64   `json:"Elapsed,omitempty"`
	Output  string    `json:"Output,omitempty"`
}

// maxEventLine bounds a single test2json record. Output events carry
// at most one line of test output each, so this is generous.
const maxEventLine = 1 << 20

// parseEvents decodes an NDJSON test2json stream. Lines that are not
// events are skipped; a half-written final line after truncation must
// not poison the rest of the stream.
func parseEvents(stream []byte) []TestEvent {
	events := []TestEvent{}
	sc := bufio.NewScanner(bytes.NewReader(stream))
	sc.Buffer(make([]byte, 0, 64*1024), maxEventLine)

	skipped := 0
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 || line[0] != '{' {
			skipped++
			continue
		}
		var ev TestEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			skipped++
			continue
		}
		events = append(events, ev)
	}
	if skipped > 0 {
		logging.ArenaDebug("skipped %d non-event lines in test2json stream", skipped)
	}
	return events
}

// limitedWriter caps how much output a worker can emit. Writes past
// the cap are discarded but still report success, so the worker never
// sees a short-write error.
type limitedWriter struct {
	w         io.Writer
	max       int64
	written   int64
	truncated bool
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	if lw.written >= lw.max {
		lw.truncated = true
		return len(p), nil
	}
	if remaining := lw.max - lw.written; int64(len(p)) > remaining {
		lw.truncated = true
		n, err := lw.w.Write(p[:remaining])
		lw.written += int64(n)
		if err != nil {
			return n, err
		}
		return len(p), nil
	}
	n, err := lw.w.Write(p)
	lw.written += int64(n)
	return n, err
}
