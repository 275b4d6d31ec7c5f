// Package safety screens submitted source before anything is written
// to an arena or executed. The checks are layered: import screening on
// the parsed AST, line-scanned call patterns, and cgo detection.
// Blocking violations make a report unsafe; warnings are data.
package safety

import (
	"errors"
	"fmt"
	"go/parser"
	"go/token"
	"regexp"
	"strings"
)

// Policy controls the conditionally-allowed capabilities.
type Policy struct {
	AllowExec    bool
	AllowNetwork bool
}

// Severity ranks a violation. Warnings leave the report safe;
// a blocking violation fails the whole check.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityBlocking Severity = "blocking"
)

// Violation types.
const (
	ViolationForbiddenImport = "forbidden_import"
	ViolationDangerousCall   = "dangerous_call"
	ViolationCGO             = "cgo"
	ViolationParseFailure    = "parse_failure"
)

// Violation is a single finding with its source line when known.
type Violation struct {
	Type     string   `json:"type"`
	Severity Severity `json:"severity"`
	Line     int      `json:"line,omitempty"`
	Detail   string   `json:"detail"`
}

// Report is the outcome of one screening pass.
type Report struct {
	Safe           bool        `json:"safe"`
	Violations     []Violation `json:"violations"`
	ImportsChecked int         `json:"imports_checked"`
	Score          float64     `json:"score"`
}

// Checker holds the compiled screening rules for one policy.
type Checker struct {
	policy           Policy
	forbiddenImports []string
	dangerousCalls   []*regexp.Regexp
}

// blockingCalls mark the call patterns that fail the check outright;
// everything else in dangerousCalls is a warning.
var blockingCalls = []string{"RemoveAll", "unsafe.Pointer"}

var cgoPatterns = []*regexp.Regexp{
	regexp.MustCompile(`import\s+"C"`),
	regexp.MustCompile(`#cgo\s+`),
	regexp.MustCompile(`/\*\s*#include`),
}

// NewChecker compiles the rule set for a policy.
func NewChecker(policy Policy) *Checker {
	c := &Checker{policy: policy}

	c.forbiddenImports = []string{
		"unsafe",
		"syscall",
		"runtime/cgo",
		"runtime/debug",
		"plugin",
	}
	if !policy.AllowExec {
		c.forbiddenImports = append(c.forbiddenImports, "os/exec")
	}
	if !policy.AllowNetwork {
		c.forbiddenImports = append(c.forbiddenImports,
			"net",
			"net/http",
			"net/rpc",
			"crypto/tls",
		)
	}

	c.dangerousCalls = []*regexp.Regexp{
		regexp.MustCompile(`\bos\.Setenv\b`),
		regexp.MustCompile(`\bos\.Chdir\b`),
		regexp.MustCompile(`\bos\.Chmod\b`),
		regexp.MustCompile(`\bos\.Chown\b`),
		regexp.MustCompile(`\bos\.Remove\b`),
		regexp.MustCompile(`\bos\.RemoveAll\b`),
		regexp.MustCompile(`\bos\.Rename\b`),
		regexp.MustCompile(`\bexec\.Command\b`),
		regexp.MustCompile(`\breflect\.Value\b`),
		regexp.MustCompile(`\bunsafe\.Pointer\b`),
	}

	return c
}

// Check screens one policy against one source unit.
func Check(src string, policy Policy) (*Report, error) {
	return NewChecker(policy).Check(src)
}

// Check runs every screening layer and scores the result.
func (c *Checker) Check(src string) (*Report, error) {
	if strings.TrimSpace(src) == "" {
		return nil, errors.New("cannot screen empty source")
	}

	report := &Report{
		Safe:       true,
		Violations: []Violation{},
	}

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "submitted.go", src, parser.ParseComments)
	if err != nil {
		report.Safe = false
		report.Violations = append(report.Violations, Violation{
			Type:     ViolationParseFailure,
			Severity: SeverityBlocking,
			Detail:   fmt.Sprintf("source does not parse: %v", err),
		})
		report.Score = 0
		return report, nil
	}

	for _, imp := range file.Imports {
		report.ImportsChecked++
		path := strings.Trim(imp.Path.Value, `"`)
		if forbidden := c.matchImport(path); forbidden != "" {
			report.Safe = false
			report.Violations = append(report.Violations, Violation{
				Type:     ViolationForbiddenImport,
				Severity: SeverityBlocking,
				Line:     fset.Position(imp.Pos()).Line,
				Detail:   fmt.Sprintf("forbidden import %q", path),
			})
		}
	}

	c.scanCalls(src, report)
	scanCGO(src, report)

	report.Score = score(report)
	return report, nil
}

// matchImport reports the forbidden entry covering path, treating each
// entry as a package and its whole subtree.
func (c *Checker) matchImport(path string) string {
	for _, forbidden := range c.forbiddenImports {
		if path == forbidden || strings.HasPrefix(path, forbidden+"/") {
			return forbidden
		}
	}
	return ""
}

func (c *Checker) scanCalls(src string, report *Report) {
	for i, line := range strings.Split(src, "\n") {
		for _, pattern := range c.dangerousCalls {
			if !pattern.MatchString(line) {
				continue
			}
			severity := SeverityWarning
			for _, blocking := range blockingCalls {
				if strings.Contains(line, blocking) {
					severity = SeverityBlocking
					report.Safe = false
					break
				}
			}
			report.Violations = append(report.Violations, Violation{
				Type:     ViolationDangerousCall,
				Severity: severity,
				Line:     i + 1,
				Detail:   fmt.Sprintf("dangerous call: %s", strings.TrimSpace(line)),
			})
		}
	}
}

func scanCGO(src string, report *Report) {
	for _, pattern := range cgoPatterns {
		if loc := pattern.FindStringIndex(src); loc != nil {
			report.Safe = false
			report.Violations = append(report.Violations, Violation{
				Type:     ViolationCGO,
				Severity: SeverityBlocking,
				Line:     1 + strings.Count(src[:loc[0]], "\n"),
				Detail:   "cgo usage is not allowed in the arena",
			})
			return
		}
	}
}

// score reports 0 for any unsafe result and decays from 1.0 by a
// tenth per warning otherwise.
func score(report *Report) float64 {
	if !report.Safe {
		return 0
	}
	s := 1.0
	for _, v := range report.Violations {
		if v.Severity == SeverityWarning {
			s -= 0.1
		}
	}
	if s < 0 {
		return 0
	}
	return s
}

// Summary renders a one-line description of the blocking violations,
// for startup error details.
func (r *Report) Summary() string {
	var details []string
	for _, v := range r.Violations {
		if v.Severity == SeverityBlocking {
			details = append(details, v.Detail)
		}
	}
	return strings.Join(details, "; ")
}
