package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"gauntlet/internal/engine"
	"gauntlet/internal/review"
)

var reviewAnalyzers []string

var reviewCmd = &cobra.Command{
	Use:   "review <file>",
	Short: "Review a Go source file with the configured analyzers",
	Long: `Review a Go source file. Analyzers that are not installed are
reported and skipped rather than failing the review.

Examples:
  gauntlet review calc.go
  gauntlet review calc.go --analyzers gofmt,vet,safety`,
	Args: cobra.ExactArgs(1),
	RunE: runReview,
}

func init() {
	reviewCmd.Flags().StringSliceVar(&reviewAnalyzers, "analyzers", nil, "Analyzers to run (default: configured set)")
	rootCmd.AddCommand(reviewCmd)
}

func runReview(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	code, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read source: %w", err)
	}

	eng := engine.New(cfg)
	report, err := eng.Review(ctx, engine.ReviewRequest{
		Code:      string(code),
		Analyzers: reviewAnalyzers,
	})
	if err != nil {
		return fmt.Errorf("review failed: %w", err)
	}

	issues := 0
	for _, r := range report.Results {
		switch {
		case r.Err != "":
			fmt.Printf("%s %s: %s\n", failStyle.Render("✗"), r.Analyzer, r.Err)
		case !r.Available:
			fmt.Printf("%s %s not installed, skipped\n", warnStyle.Render("-"), r.Analyzer)
		case len(r.Issues) == 0:
			fmt.Printf("%s %s: clean\n", successStyle.Render("✓"), r.Analyzer)
		default:
			fmt.Printf("%s %s: %d issue(s)\n", failStyle.Render("✗"), r.Analyzer, len(r.Issues))
			for _, issue := range r.Issues {
				fmt.Printf("    %s\n", formatIssue(issue))
			}
			issues += len(r.Issues)
		}
	}
	fmt.Printf("\n%s\n", report.Summary)

	if issues > 0 {
		return fmt.Errorf("review found %d issue(s)", issues)
	}
	return nil
}

func formatIssue(issue review.Issue) string {
	loc := ""
	if issue.Line > 0 {
		loc = strconv.Itoa(issue.Line)
		if issue.Col > 0 {
			loc += ":" + strconv.Itoa(issue.Col)
		}
		loc += ": "
	}
	return loc + issue.Message
}
