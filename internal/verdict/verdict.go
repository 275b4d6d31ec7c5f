// Package verdict folds a raw arena run into a judged report: one
// result per test, run-level status, counts, and optional per-line
// coverage. Test failures are data here; Aggregate never fails.
package verdict

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/tools/cover"

	"gauntlet/internal/arena"
	"gauntlet/internal/logging"
)

// Run-level statuses.
const (
	StatusCompleted     = "completed"
	StatusTimedOut      = "timed_out"
	StatusStartupFailed = "startup_failed"
)

// Per-test statuses.
const (
	TestPassed   = "passed"
	TestFailed   = "failed"
	TestErrored  = "errored"
	TestSkipped  = "skipped"
	TestTimedOut = "timed_out"
)

// TestResult is the judged outcome of one test.
type TestResult struct {
	Name   string `json:"name"`
	Status string `json:"status"`

	// Detail carries the test's accumulated output for anything that
	// did not pass.
	Detail string `json:"detail,omitempty"`

	Duration time.Duration `json:"duration"`
}

// Counts summarizes results by status.
type Counts struct {
	Total    int `json:"total"`
	Passed   int `json:"passed"`
	Failed   int `json:"failed"`
	Errored  int `json:"errored"`
	Skipped  int `json:"skipped"`
	TimedOut int `json:"timed_out"`
}

// CoverageReport holds per-line statement coverage over the submitted
// source file. LineHits keys are decimal line numbers; JSON object
// keys are strings, so the wire shape is the Go shape.
type CoverageReport struct {
	ExecutableLines int            `json:"executable_lines"`
	CoveredLines    int            `json:"covered_lines"`
	Percent         float64        `json:"percent"`
	LineHits        map[string]int `json:"line_hits"`
	UncoveredLines  []int          `json:"uncovered_lines"`
}

// RunReport is the full judged outcome of a sandbox run.
type RunReport struct {
	RunID    string          `json:"run_id"`
	Status   string          `json:"status"`
	Counts   Counts          `json:"counts"`
	Results  []TestResult    `json:"results"`
	Stdout   string          `json:"stdout,omitempty"`
	Stderr   string          `json:"stderr,omitempty"`
	Duration time.Duration   `json:"duration"`
	Coverage *CoverageReport `json:"coverage,omitempty"`
}

// Aggregate folds the event stream of a raw run into a report.
// sourceFile names the file coverage is filtered to, e.g. "calc.go".
func Aggregate(raw *arena.RawRun, sourceFile string) *RunReport {
	report := &RunReport{
		RunID:    uuid.NewString(),
		Status:   StatusCompleted,
		Results:  []TestResult{},
		Stdout:   raw.Stdout,
		Stderr:   raw.Stderr,
		Duration: raw.Duration,
	}

	if raw.TimedOut {
		// Run-level timeout supersedes whatever the tests managed to
		// report before the kill.
		report.Status = StatusTimedOut
		report.Counts.TimedOut = 1
		logging.Verdict("run %s: timed out after %v", report.RunID, raw.Duration.Round(time.Millisecond))
		return report
	}

	order := []string{}
	results := map[string]*TestResult{}
	outputs := map[string]*strings.Builder{}

	for _, ev := range raw.Events {
		if ev.Test == "" {
			continue
		}
		if _, seen := results[ev.Test]; !seen {
			order = append(order, ev.Test)
			results[ev.Test] = &TestResult{Name: ev.Test}
			outputs[ev.Test] = &strings.Builder{}
		}
		r := results[ev.Test]
		switch ev.Action {
		case arena.ActionOutput:
			outputs[ev.Test].WriteString(ev.Output)
		case arena.ActionPass:
			r.Status = TestPassed
			r.Duration = elapsed(ev.Elapsed)
		case arena.ActionFail:
			r.Status = TestFailed
			r.Duration = elapsed(ev.Elapsed)
		case arena.ActionSkip:
			r.Status = TestSkipped
			r.Duration = elapsed(ev.Elapsed)
		}
	}

	for _, name := range order {
		r := results[name]
		out := outputs[name].String()
		if r.Status == "" {
			// Started but never finished: the worker died under it.
			r.Status = TestErrored
		}
		if r.Status == TestFailed && containsPanicLine(out) {
			r.Status = TestErrored
		}
		if r.Status != TestPassed {
			r.Detail = strings.TrimSpace(out)
		}
		report.Results = append(report.Results, *r)
	}

	report.Counts = countResults(report.Results)

	if len(raw.Profile) > 0 {
		report.Coverage = coverageFor(raw.Profile, sourceFile)
	}

	logging.Verdict("run %s: %d/%d passed (%d failed, %d errored, %d skipped)",
		report.RunID, report.Counts.Passed, report.Counts.Total,
		report.Counts.Failed, report.Counts.Errored, report.Counts.Skipped)
	return report
}

// NewStartupReport wraps a startup fault in report form: the run never
// produced tests, only a terminal status and the fault detail.
func NewStartupReport(fault *arena.StartupError) *RunReport {
	return &RunReport{
		RunID:   uuid.NewString(),
		Status:  StatusStartupFailed,
		Results: []TestResult{},
		Stderr:  fault.Error(),
	}
}

func countResults(results []TestResult) Counts {
	counts := Counts{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case TestPassed:
			counts.Passed++
		case TestFailed:
			counts.Failed++
		case TestErrored:
			counts.Errored++
		case TestSkipped:
			counts.Skipped++
		case TestTimedOut:
			counts.TimedOut++
		}
	}
	return counts
}

// containsPanicLine reports whether test output carries a runtime
// panic. A failing test with one is judged errored, not failed.
func containsPanicLine(out string) bool {
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "panic:") {
			return true
		}
	}
	return false
}

// coverageFor reduces profiles to per-line hits over the source file.
// Overlapping blocks keep the highest count for a line.
func coverageFor(profiles []*cover.Profile, sourceFile string) *CoverageReport {
	hits := map[int]int{}
	for _, p := range profiles {
		if sourceFile != "" && !strings.HasSuffix(p.FileName, sourceFile) {
			continue
		}
		for _, b := range p.Blocks {
			for line := b.StartLine; line <= b.EndLine; line++ {
				if existing, ok := hits[line]; !ok || b.Count > existing {
					hits[line] = b.Count
				}
			}
		}
	}

	report := &CoverageReport{LineHits: map[string]int{}, UncoveredLines: []int{}}
	for line, count := range hits {
		report.LineHits[strconv.Itoa(line)] = count
		report.ExecutableLines++
		if count > 0 {
			report.CoveredLines++
		} else {
			report.UncoveredLines = append(report.UncoveredLines, line)
		}
	}
	sort.Ints(report.UncoveredLines)
	if report.ExecutableLines > 0 {
		report.Percent = float64(report.CoveredLines) / float64(report.ExecutableLines) * 100
	}
	return report
}

func elapsed(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
