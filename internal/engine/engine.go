// Package engine is the facade the CLI and MCP server drive. It wires
// extraction, synthesis, and rendering into test generation, hands
// runs to the arena and folds them through the verdict layer, and
// delegates review and formatting to their collaborators.
package engine

import (
	"context"
	"errors"
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"time"

	"gauntlet/internal/anatomy"
	"gauntlet/internal/arena"
	"gauntlet/internal/config"
	"gauntlet/internal/logging"
	"gauntlet/internal/render"
	"gauntlet/internal/review"
	"gauntlet/internal/safety"
	"gauntlet/internal/style"
	"gauntlet/internal/synth"
	"gauntlet/internal/verdict"
)

// GenerateRequest describes one test-generation call.
type GenerateRequest struct {
	// Code is the source to synthesize tests for. A bare snippet
	// without a package clause is accepted.
	Code string

	// ModuleName labels the unit; empty defaults to "module".
	ModuleName string

	// IncludeUnexported also targets lowercase callables.
	IncludeUnexported bool

	// Save writes the rendered file under the configured output dir.
	Save bool
}

// SkippedCallable reports a callable left without specs and why.
type SkippedCallable struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// GenerateResult is the outcome of test generation.
type GenerateResult struct {
	ModuleName string               `json:"module_name"`
	Source     string               `json:"source"`
	Specs      []synth.TestCaseSpec `json:"specs"`
	Skipped    []SkippedCallable    `json:"skipped"`
	SavedPath  string               `json:"saved_path,omitempty"`
}

// RunRequest describes one sandboxed test run.
type RunRequest struct {
	TestCode   string
	SourceCode string
	ModuleName string

	// Timeout bounds the run; zero uses the configured default.
	Timeout time.Duration

	Cover bool
}

// ReviewRequest names the source and analyzers for a review. Empty
// analyzers use the configured set.
type ReviewRequest struct {
	Code      string
	Analyzers []string
}

// FormatRequest carries source for canonical formatting. LineWidth is
// advisory.
type FormatRequest struct {
	Code      string
	LineWidth int
}

// Engine coordinates the pipeline. Safe for concurrent use.
type Engine struct {
	cfg      *config.Config
	executor *arena.Executor
	reviewer *review.Runner
}

// New builds an engine from configuration, nil meaning defaults.
func New(cfg *config.Config) *Engine {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	policy := safety.Policy{
		AllowExec:    cfg.Arena.AllowExec,
		AllowNetwork: cfg.Arena.AllowNetwork,
	}
	e := &Engine{
		cfg: cfg,
		executor: arena.NewExecutor(arena.Config{
			BaseDir:        cfg.Arena.BaseDir,
			CompileTimeout: cfg.GetCompileTimeout(),
			DefaultTimeout: cfg.GetDefaultTimeout(),
			MaxConcurrent:  cfg.Arena.MaxConcurrent,
			MaxOutputBytes: cfg.Arena.MaxOutputBytes,
			MemoryLimit:    cfg.Arena.MemoryLimit,
			AllowedEnvVars: cfg.Arena.AllowedEnvVars,
			GoBinary:       cfg.Arena.GoBinary,
			AllowExec:      cfg.Arena.AllowExec,
			AllowNetwork:   cfg.Arena.AllowNetwork,
		}),
		reviewer: review.NewRunner(review.Config{
			Timeout:  cfg.GetReviewTimeout(),
			GoBinary: cfg.Arena.GoBinary,
			Safety:   policy,
		}),
	}
	logging.Boot("engine ready (arena max_concurrent=%d, timeout=%s)",
		cfg.Arena.MaxConcurrent, cfg.Arena.DefaultTimeout)
	return e
}

// GenerateTests extracts, synthesizes, and renders tests for the
// submitted source.
func (e *Engine) GenerateTests(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mod, err := anatomy.Extract(req.Code, anatomy.Options{
		ModuleName:        req.ModuleName,
		IncludeUnexported: req.IncludeUnexported || e.cfg.Synthesis.IncludeUnexported,
	})
	if err != nil {
		return nil, err
	}

	specs := synth.Synthesize(mod, synth.Config{Categories: e.cfg.Synthesis.Categories})
	gen, err := render.Render(mod, specs, mod.Name)
	if err != nil {
		return nil, err
	}

	result := &GenerateResult{
		ModuleName: mod.Name,
		Source:     gen.Source,
		Specs:      specs,
		Skipped:    skippedOf(mod),
	}
	logging.Audit().Generate(mod.Name, len(mod.Callables), len(specs), len(result.Skipped))
	if req.Save {
		path, err := e.saveTests(mod.Name, gen.Source)
		if err != nil {
			return nil, err
		}
		result.SavedPath = path
	}
	return result, nil
}

// RunTests executes tests against source in the arena and returns the
// judged report. Startup faults come back in report form with status
// startup_failed; the error return is for environmental failures.
func (e *Engine) RunTests(ctx context.Context, req RunRequest) (*verdict.RunReport, error) {
	module := anatomy.SanitizeName(req.ModuleName)
	source, pkg := normalizeSource(req.SourceCode, module)
	tests := anatomy.EnsurePackageClause(req.TestCode, pkg)

	start := time.Now()
	raw, err := e.executor.Run(ctx, arena.Request{
		SourceCode: source,
		TestCode:   tests,
		ModuleName: module,
		Timeout:    req.Timeout,
		Cover:      req.Cover,
	})
	if err != nil {
		var startup *arena.StartupError
		if errors.As(err, &startup) {
			report := verdict.NewStartupReport(startup)
			logging.Audit().RunStartupFailure(report.RunID, startup.Kind, startup.Detail)
			return report, nil
		}
		return nil, err
	}

	report := verdict.Aggregate(raw, module+".go")
	logging.Audit().RunComplete(report.RunID, report.Status, time.Since(start).Milliseconds())
	return report, nil
}

// Review delegates to the analyzer runner.
func (e *Engine) Review(ctx context.Context, req ReviewRequest) (*review.Report, error) {
	analyzers := req.Analyzers
	if len(analyzers) == 0 {
		analyzers = e.cfg.Review.Analyzers
	}
	return e.reviewer.Run(ctx, req.Code, analyzers)
}

// Format delegates to the style collaborator.
func (e *Engine) Format(ctx context.Context, req FormatRequest) (*style.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return style.Format(req.Code, style.Options{LineWidth: req.LineWidth})
}

func (e *Engine) saveTests(module, source string) (string, error) {
	dir := e.cfg.Output.Dir
	if dir == "" {
		dir = "gauntlet-tests"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}
	path := filepath.Join(dir, module+"_test.go")
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		return "", fmt.Errorf("failed to save tests: %w", err)
	}
	logging.Render("saved generated tests to %s", path)
	return path, nil
}

// normalizeSource injects a package clause when missing and reports
// the package name the test file must share.
func normalizeSource(src, module string) (source, pkg string) {
	source = anatomy.EnsurePackageClause(src, module)
	pkg = module
	fset := token.NewFileSet()
	if file, err := parser.ParseFile(fset, module+".go", source, parser.PackageClauseOnly); err == nil {
		pkg = file.Name.Name
	}
	return source, pkg
}

func skippedOf(mod *anatomy.Module) []SkippedCallable {
	skipped := []SkippedCallable{}
	for _, c := range mod.Callables {
		if c.Skip {
			skipped = append(skipped, SkippedCallable{Name: c.QualifiedName(), Reason: c.SkipReason})
		}
	}
	return skipped
}
