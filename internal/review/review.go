// Package review orchestrates static analyzers over submitted source.
// External tools (gofmt, go vet, staticcheck) run as bounded
// subprocesses against a throwaway module dir; a missing tool degrades
// to an unavailable result instead of failing the review. Two
// built-ins need no subprocess: the safety screen and a structural
// summary derived from extraction.
package review

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gauntlet/internal/anatomy"
	"gauntlet/internal/build"
	"gauntlet/internal/logging"
	"gauntlet/internal/safety"
)

// Analyzer names accepted by Run.
const (
	AnalyzerGofmt       = "gofmt"
	AnalyzerVet         = "vet"
	AnalyzerStaticcheck = "staticcheck"
	AnalyzerSafety      = "safety"
	AnalyzerStructure   = "structure"
)

// DefaultAnalyzers run when the caller names none.
var DefaultAnalyzers = []string{
	AnalyzerGofmt,
	AnalyzerVet,
	AnalyzerStaticcheck,
	AnalyzerSafety,
	AnalyzerStructure,
}

// Issue is one finding from one analyzer.
type Issue struct {
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Col     int    `json:"col,omitempty"`
	Message string `json:"message"`
}

// AnalyzerResult is the outcome of one analyzer over the source.
type AnalyzerResult struct {
	Analyzer string `json:"analyzer"`

	// Available is false when the tool is not installed; the review
	// continues without it.
	Available bool `json:"available"`

	Issues []Issue `json:"issues"`

	// Err reports an abnormal analyzer failure, not findings.
	Err string `json:"error,omitempty"`
}

// Report is the combined review outcome.
type Report struct {
	Results []AnalyzerResult `json:"results"`
	Summary string           `json:"summary"`
}

// Config bounds the runner.
type Config struct {
	// Timeout per analyzer subprocess.
	Timeout time.Duration

	// GoBinary names the toolchain binary, normally "go".
	GoBinary string

	// Safety policy for the built-in screen.
	Safety safety.Policy
}

// Runner executes analyzers. Safe for concurrent use.
type Runner struct {
	config Config
}

// NewRunner returns a runner with unset config fields defaulted.
func NewRunner(config Config) *Runner {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.GoBinary == "" {
		config.GoBinary = "go"
	}
	return &Runner{config: config}
}

const reviewFileName = "review.go"

// Run reviews the source with the named analyzers, defaulting to all.
// Missing tools and per-analyzer faults degrade into the report; the
// error return is for environmental failures only.
func (r *Runner) Run(ctx context.Context, code string, analyzers []string) (*Report, error) {
	if len(analyzers) == 0 {
		analyzers = DefaultAnalyzers
	}
	code = anatomy.EnsurePackageClause(code, "review")

	// Subprocess analyzers need the source on disk in a module of
	// its own; built-ins work from the string.
	var dir string
	if needsWorkdir(analyzers) {
		var err error
		dir, err = r.writeWorkdir(code)
		if err != nil {
			return nil, err
		}
		defer os.RemoveAll(dir)
	}

	report := &Report{Results: []AnalyzerResult{}}
	for _, name := range analyzers {
		var res AnalyzerResult
		switch name {
		case AnalyzerGofmt:
			res = r.runGofmt(ctx, dir)
		case AnalyzerVet:
			res = r.runVet(ctx, dir)
		case AnalyzerStaticcheck:
			res = r.runStaticcheck(ctx, dir)
		case AnalyzerSafety:
			res = r.runSafety(code)
		case AnalyzerStructure:
			res = r.runStructure(code)
		default:
			res = AnalyzerResult{Analyzer: name, Issues: []Issue{}, Err: "unknown analyzer"}
		}
		report.Results = append(report.Results, res)
	}

	report.Summary = summarize(report.Results)
	logging.Review("%s", report.Summary)
	return report, nil
}

func needsWorkdir(analyzers []string) bool {
	for _, name := range analyzers {
		switch name {
		case AnalyzerGofmt, AnalyzerVet, AnalyzerStaticcheck:
			return true
		}
	}
	return false
}

func (r *Runner) writeWorkdir(code string) (string, error) {
	dir, err := os.MkdirTemp("", "review_")
	if err != nil {
		return "", fmt.Errorf("failed to create review dir: %w", err)
	}
	files := map[string]string{
		reviewFileName: code,
		"go.mod":       "module review_target\n\ngo 1.24\n",
	}
	for name, content := range files {
		if werr := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); werr != nil {
			os.RemoveAll(dir)
			return "", fmt.Errorf("failed to write %s: %w", name, werr)
		}
	}
	return dir, nil
}

func (r *Runner) runGofmt(ctx context.Context, dir string) AnalyzerResult {
	res := AnalyzerResult{Analyzer: AnalyzerGofmt, Issues: []Issue{}}
	if _, err := exec.LookPath("gofmt"); err != nil {
		logging.ReviewDebug("gofmt not installed, skipping")
		return res
	}
	res.Available = true

	out, err := r.runTool(ctx, dir, "gofmt", "-l", reviewFileName)
	if err != nil {
		res.Err = toolError(out, err)
		return res
	}
	for _, line := range nonEmptyLines(out) {
		res.Issues = append(res.Issues, Issue{
			File:    line,
			Message: "file is not gofmt formatted",
		})
	}
	return res
}

func (r *Runner) runVet(ctx context.Context, dir string) AnalyzerResult {
	res := AnalyzerResult{Analyzer: AnalyzerVet, Issues: []Issue{}}
	if _, err := exec.LookPath(r.config.GoBinary); err != nil {
		logging.ReviewDebug("go toolchain not installed, skipping vet")
		return res
	}
	res.Available = true

	out, err := r.runTool(ctx, dir, r.config.GoBinary, "vet", ".")
	res.Issues = parseDiagnostics(out)
	if err != nil && len(res.Issues) == 0 {
		// Nonzero exit with findings is normal; without any it is not.
		res.Err = toolError(out, err)
	}
	return res
}

func (r *Runner) runStaticcheck(ctx context.Context, dir string) AnalyzerResult {
	res := AnalyzerResult{Analyzer: AnalyzerStaticcheck, Issues: []Issue{}}
	if _, err := exec.LookPath("staticcheck"); err != nil {
		logging.ReviewDebug("staticcheck not installed, skipping")
		return res
	}
	res.Available = true

	out, err := r.runTool(ctx, dir, "staticcheck", ".")
	res.Issues = parseDiagnostics(out)
	if err != nil && len(res.Issues) == 0 {
		res.Err = toolError(out, err)
	}
	return res
}

func (r *Runner) runSafety(code string) AnalyzerResult {
	res := AnalyzerResult{Analyzer: AnalyzerSafety, Available: true, Issues: []Issue{}}
	report, err := safety.Check(code, r.config.Safety)
	if err != nil {
		res.Err = err.Error()
		return res
	}
	for _, v := range report.Violations {
		res.Issues = append(res.Issues, Issue{
			Line:    v.Line,
			Message: fmt.Sprintf("%s (%s): %s", v.Type, v.Severity, v.Detail),
		})
	}
	return res
}

func (r *Runner) runStructure(code string) AnalyzerResult {
	res := AnalyzerResult{Analyzer: AnalyzerStructure, Available: true, Issues: []Issue{}}
	mod, err := anatomy.Extract(code, anatomy.Options{ModuleName: "review", IncludeUnexported: true})
	if err != nil {
		res.Err = err.Error()
		return res
	}

	exported, raises := 0, 0
	for _, c := range mod.Callables {
		if c.Exported {
			exported++
		}
		raises += len(c.Raises)
	}
	res.Issues = append(res.Issues, Issue{
		Message: fmt.Sprintf("%d callables (%d exported), %d raise sites", len(mod.Callables), exported, raises),
	})
	for _, c := range mod.Callables {
		if c.Exported && c.Doc == "" && !c.Skip {
			res.Issues = append(res.Issues, Issue{
				Line:    c.Line,
				Message: fmt.Sprintf("exported callable %s has no doc comment", c.QualifiedName()),
			})
		}
		if c.Skip {
			res.Issues = append(res.Issues, Issue{
				Line:    c.Line,
				Message: fmt.Sprintf("callable %s not testable: %s", c.QualifiedName(), c.SkipReason),
			})
		}
	}
	return res
}

// runTool executes one analyzer under the per-analyzer timeout with
// the scrubbed build environment, capturing both streams together.
func (r *Runner) runTool(ctx context.Context, dir, name string, args ...string) (string, error) {
	tctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	cmd := exec.CommandContext(tctx, name, args...)
	cmd.Dir = dir
	cmd.Env = build.MergeEnv(build.GetBuildEnv(nil), "CGO_ENABLED=0")

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if tctx.Err() == context.DeadlineExceeded {
		return out.String(), fmt.Errorf("%s timed out after %s", name, r.config.Timeout)
	}
	return out.String(), err
}

func toolError(out string, err error) string {
	if detail := strings.TrimSpace(out); detail != "" {
		return detail
	}
	return err.Error()
}

// diagnosticRe matches the file:line[:col]: message shape gofmt-family
// tools emit.
var diagnosticRe = regexp.MustCompile(`^(.+?\.go):(\d+)(?::(\d+))?:\s*(.+)$`)

// parseDiagnostics decodes tool output. Package header lines ("# pkg")
// and anything else that is not a diagnostic are skipped.
func parseDiagnostics(out string) []Issue {
	issues := []Issue{}
	for _, line := range nonEmptyLines(out) {
		if strings.HasPrefix(line, "#") {
			continue
		}
		m := diagnosticRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		lineNo, _ := strconv.Atoi(m[2])
		col := 0
		if m[3] != "" {
			col, _ = strconv.Atoi(m[3])
		}
		issues = append(issues, Issue{
			File:    m[1],
			Line:    lineNo,
			Col:     col,
			Message: m[4],
		})
	}
	return issues
}

func nonEmptyLines(out string) []string {
	lines := []string{}
	for _, line := range strings.Split(out, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}

func summarize(results []AnalyzerResult) string {
	findings, unavailable := 0, 0
	for _, res := range results {
		findings += len(res.Issues)
		if !res.Available && res.Err == "" {
			unavailable++
		}
	}
	summary := fmt.Sprintf("%d analyzers: %d findings", len(results), findings)
	if unavailable > 0 {
		summary += fmt.Sprintf(", %d unavailable", unavailable)
	}
	return summary
}
