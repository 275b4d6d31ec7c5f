// Package style canonicalizes Go source. Formatting is gofmt's,
// via go/format; there is exactly one right answer.
package style

import (
	"fmt"
	"go/format"
)

// Options tunes formatting.
type Options struct {
	// LineWidth is accepted for API compatibility and recorded as
	// advisory: gofmt does not wrap to width.
	LineWidth int
}

// Result is the formatting outcome.
type Result struct {
	Formatted string `json:"formatted"`
	Changed   bool   `json:"changed"`
	Note      string `json:"note,omitempty"`
}

// Format canonicalizes the source. Partial input (declarations or
// statements without a package clause) is accepted the way gofmt
// accepts it.
func Format(code string, opts Options) (*Result, error) {
	formatted, err := format.Source([]byte(code))
	if err != nil {
		return nil, fmt.Errorf("source does not parse: %w", err)
	}
	res := &Result{
		Formatted: string(formatted),
		Changed:   string(formatted) != code,
	}
	if opts.LineWidth > 0 {
		res.Note = fmt.Sprintf("line width %d is advisory; gofmt layout is canonical", opts.LineWidth)
	}
	return res, nil
}

// FormatSource formats with default options.
func FormatSource(code string) (*Result, error) {
	return Format(code, Options{})
}
