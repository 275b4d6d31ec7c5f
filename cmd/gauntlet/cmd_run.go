package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gauntlet/internal/engine"
	"gauntlet/internal/verdict"
)

var (
	runSourceFile string
	runModule     string
	runTimeout    time.Duration
	runCover      bool
)

var runCmd = &cobra.Command{
	Use:   "run <test-file>",
	Short: "Run Go tests in the sandbox and report the verdict",
	Long: `Run a Go test file in an isolated sandbox and report judged
per-test results. With --source the tests run against that file, and
--cover collects line coverage over it.

The command exits nonzero when any test fails or the run does not
complete.

Examples:
  gauntlet run calc_test.go --source calc.go
  gauntlet run calc_test.go --source calc.go --cover --timeout 60s`,
	Args: cobra.ExactArgs(1),
	RunE: runTests,
}

func init() {
	runCmd.Flags().StringVar(&runSourceFile, "source", "", "Source file the tests exercise")
	runCmd.Flags().StringVar(&runModule, "module", "", "Module name for the sandbox (default: source or test file name)")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Wall-clock bound for the run (default: configured)")
	runCmd.Flags().BoolVar(&runCover, "cover", false, "Collect line coverage over the source file (requires --source)")
	rootCmd.AddCommand(runCmd)
}

func runTests(cmd *cobra.Command, args []string) error {
	baseCtx := cmd.Context()
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if runCover && runSourceFile == "" {
		return errors.New("--cover requires --source")
	}

	testCode, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read tests: %w", err)
	}
	var sourceCode []byte
	if runSourceFile != "" {
		sourceCode, err = os.ReadFile(runSourceFile)
		if err != nil {
			return fmt.Errorf("failed to read source: %w", err)
		}
	}

	module := runModule
	if module == "" {
		base := args[0]
		if runSourceFile != "" {
			base = runSourceFile
		}
		module = strings.TrimSuffix(strings.TrimSuffix(filepath.Base(base), ".go"), "_test")
	}

	eng := engine.New(cfg)
	report, err := eng.RunTests(ctx, engine.RunRequest{
		TestCode:   string(testCode),
		SourceCode: string(sourceCode),
		ModuleName: module,
		Timeout:    runTimeout,
		Cover:      runCover,
	})
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	printReport(report)

	switch report.Status {
	case verdict.StatusTimedOut:
		return errors.New("test run timed out")
	case verdict.StatusStartupFailed:
		return errors.New("sandbox startup failed")
	}
	if n := report.Counts.Failed + report.Counts.Errored + report.Counts.TimedOut; n > 0 {
		return fmt.Errorf("%d of %d tests did not pass", n, report.Counts.Total)
	}
	return nil
}

func printReport(report *verdict.RunReport) {
	if report.Status == verdict.StatusStartupFailed {
		fmt.Printf("%s sandbox startup failed\n", failStyle.Render("✗"))
		if report.Stderr != "" {
			fmt.Println(indent(report.Stderr, "  "))
		}
		return
	}

	for _, r := range report.Results {
		marker, style := statusMarker(r.Status)
		fmt.Printf("  %s %s (%s)\n", style.Render(marker), r.Name, r.Duration.Round(time.Millisecond))
		if r.Detail != "" && r.Status != verdict.TestPassed {
			fmt.Println(indent(r.Detail, "      "))
		}
	}

	c := report.Counts
	summary := fmt.Sprintf("%d passed, %d failed, %d errored, %d skipped", c.Passed, c.Failed, c.Errored, c.Skipped)
	if c.TimedOut > 0 {
		summary += fmt.Sprintf(", %d timed out", c.TimedOut)
	}
	style := successStyle
	if report.Status != verdict.StatusCompleted || c.Failed+c.Errored+c.TimedOut > 0 {
		style = failStyle
	}
	fmt.Printf("\n%s in %s\n", style.Render(summary), report.Duration.Round(time.Millisecond))

	if cov := report.Coverage; cov != nil {
		fmt.Printf("coverage: %.1f%% of statements (%d/%d lines)\n",
			cov.Percent, cov.CoveredLines, cov.ExecutableLines)
		if len(cov.UncoveredLines) > 0 {
			fmt.Printf("  uncovered lines: %s\n", joinInts(cov.UncoveredLines))
		}
	}
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

func joinInts(nums []int) string {
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}
