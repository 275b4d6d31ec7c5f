package engine

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gauntlet/internal/anatomy"
	"gauntlet/internal/config"
	"gauntlet/internal/verdict"
)

const addSource = `func Add(a int, b int) int {
	return a + b
}`

func requireGo(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping engine integration test in short mode")
	}
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go toolchain not on PATH")
	}
}

func testEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Arena.BaseDir = t.TempDir()
	cfg.Output.Dir = filepath.Join(t.TempDir(), "out")
	return New(cfg)
}

func TestGenerateTestsEndToEnd(t *testing.T) {
	e := testEngine(t)
	result, err := e.GenerateTests(context.Background(), GenerateRequest{
		Code:       addSource,
		ModuleName: "calc",
	})
	require.NoError(t, err)

	assert.Equal(t, "calc", result.ModuleName)
	assert.NotEmpty(t, result.Specs)
	assert.Empty(t, result.Skipped)
	assert.Contains(t, result.Source, "package calc")
	assert.Contains(t, result.Source, "func TestAdd_happy_1(t *testing.T)")
	assert.Empty(t, result.SavedPath)
}

func TestGenerateTestsReportsSkipped(t *testing.T) {
	code := `func Echo[T any](v T) T {
	return v
}

func Plain(a int) int {
	return a
}`
	e := testEngine(t)
	result, err := e.GenerateTests(context.Background(), GenerateRequest{
		Code:       code,
		ModuleName: "mixed",
	})
	require.NoError(t, err)

	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "Echo", result.Skipped[0].Name)
	assert.NotEmpty(t, result.Skipped[0].Reason)
	assert.Contains(t, result.Source, "TestPlain_happy_1")
}

func TestGenerateTestsSaveWritesFile(t *testing.T) {
	e := testEngine(t)
	result, err := e.GenerateTests(context.Background(), GenerateRequest{
		Code:       addSource,
		ModuleName: "calc",
		Save:       true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.SavedPath)

	assert.Equal(t, "calc_test.go", filepath.Base(result.SavedPath))
	content, err := os.ReadFile(result.SavedPath)
	require.NoError(t, err)
	assert.Equal(t, result.Source, string(content))
}

func TestGenerateTestsParseError(t *testing.T) {
	e := testEngine(t)
	_, err := e.GenerateTests(context.Background(), GenerateRequest{
		Code:       "func Broken( {",
		ModuleName: "bad",
	})
	require.Error(t, err)

	var parseErr *anatomy.ParseError
	assert.True(t, errors.As(err, &parseErr), "want *anatomy.ParseError, got %T", err)
}

func TestGenerateTestsContextCanceled(t *testing.T) {
	e := testEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.GenerateTests(ctx, GenerateRequest{Code: addSource, ModuleName: "calc"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunTestsStartupFaultReportForm(t *testing.T) {
	e := testEngine(t)
	report, err := e.RunTests(context.Background(), RunRequest{
		SourceCode: "package sneaky\n\nimport \"syscall\"\n\nfunc Raw() { syscall.Sync() }\n",
		TestCode:   "package sneaky\n",
		ModuleName: "sneaky",
	})
	require.NoError(t, err, "startup faults must come back in report form")

	assert.Equal(t, verdict.StatusStartupFailed, report.Status)
	assert.Contains(t, report.Stderr, "safety_violation")
	assert.Empty(t, report.Results)
}

func TestRunTestsEndToEnd(t *testing.T) {
	requireGo(t)

	e := testEngine(t)
	gen, err := e.GenerateTests(context.Background(), GenerateRequest{
		Code:       addSource,
		ModuleName: "calc",
	})
	require.NoError(t, err)

	report, err := e.RunTests(context.Background(), RunRequest{
		TestCode:   gen.Source,
		SourceCode: addSource,
		ModuleName: "calc",
	})
	require.NoError(t, err)

	assert.Equal(t, verdict.StatusCompleted, report.Status)
	assert.Equal(t, len(gen.Specs), report.Counts.Total)
	assert.Equal(t, report.Counts.Total, report.Counts.Passed,
		"every synthesized test should pass against its own source")
	assert.Zero(t, report.Counts.Failed)
	assert.Zero(t, report.Counts.Errored)
	assert.Nil(t, report.Coverage)
}

func TestRunTestsTimeout(t *testing.T) {
	requireGo(t)

	sleepyTests := `import (
	"testing"
	"time"
)

func TestSleepy(t *testing.T) {
	time.Sleep(time.Hour)
}`
	e := testEngine(t)
	report, err := e.RunTests(context.Background(), RunRequest{
		TestCode:   "package calc\n\n" + sleepyTests,
		SourceCode: addSource,
		ModuleName: "calc",
		Timeout:    2 * time.Second,
	})
	require.NoError(t, err)

	assert.Equal(t, verdict.StatusTimedOut, report.Status)
	assert.Zero(t, report.Counts.Passed)
	assert.Equal(t, 1, report.Counts.TimedOut)
	assert.Nil(t, report.Coverage)
}

func TestRunTestsCoverage(t *testing.T) {
	requireGo(t)

	e := testEngine(t)
	gen, err := e.GenerateTests(context.Background(), GenerateRequest{
		Code:       addSource,
		ModuleName: "calc",
	})
	require.NoError(t, err)

	report, err := e.RunTests(context.Background(), RunRequest{
		TestCode:   gen.Source,
		SourceCode: addSource,
		ModuleName: "calc",
		Cover:      true,
	})
	require.NoError(t, err)
	require.NotNil(t, report.Coverage)

	cov := report.Coverage
	assert.Positive(t, cov.ExecutableLines)
	assert.LessOrEqual(t, cov.CoveredLines, cov.ExecutableLines)
	assert.GreaterOrEqual(t, cov.Percent, 0.0)
	assert.LessOrEqual(t, cov.Percent, 100.0)
	assert.Positive(t, cov.Percent, "the happy path must cover the return")
}

func TestReviewUsesConfiguredAnalyzers(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Review.Analyzers = []string{"safety", "structure"}
	e := New(cfg)

	report, err := e.Review(context.Background(), ReviewRequest{Code: addSource})
	require.NoError(t, err)
	require.Len(t, report.Results, 2)
	assert.Equal(t, "safety", report.Results[0].Analyzer)
	assert.Equal(t, "structure", report.Results[1].Analyzer)
}

func TestFormatDelegates(t *testing.T) {
	e := testEngine(t)
	res, err := e.Format(context.Background(), FormatRequest{
		Code:      "package demo\n\nfunc  Messy( ) int {return 1}\n",
		LineWidth: 100,
	})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Contains(t, res.Note, "advisory")
}

func TestNormalizeSource(t *testing.T) {
	tests := []struct {
		name       string
		src        string
		module     string
		wantPkg    string
		wantPrefix string
	}{
		{
			name:       "bare snippet gains module package",
			src:        "func Add(a, b int) int { return a + b }",
			module:     "calc",
			wantPkg:    "calc",
			wantPrefix: "package calc\n",
		},
		{
			name:       "existing clause wins",
			src:        "package widgets\n\nfunc New() int { return 1 }\n",
			module:     "calc",
			wantPkg:    "widgets",
			wantPrefix: "package widgets\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source, pkg := normalizeSource(tt.src, tt.module)
			assert.Equal(t, tt.wantPkg, pkg)
			assert.True(t, len(source) >= len(tt.wantPrefix) && source[:len(tt.wantPrefix)] == tt.wantPrefix,
				"source = %q", source)
		})
	}
}
