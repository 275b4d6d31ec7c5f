package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gauntlet/internal/engine"
)

var (
	fmtWrite      bool
	fmtLineLength int
)

var fmtCmd = &cobra.Command{
	Use:   "fmt <file>",
	Short: "Format a Go source file canonically",
	Long: `Format a Go source file with the canonical style. Prints the
result to stdout, or rewrites the file in place with --write.

Examples:
  gauntlet fmt calc.go
  gauntlet fmt calc.go --write`,
	Args: cobra.ExactArgs(1),
	RunE: runFmt,
}

func init() {
	fmtCmd.Flags().BoolVarP(&fmtWrite, "write", "w", false, "Rewrite the file in place")
	fmtCmd.Flags().IntVar(&fmtLineLength, "line-length", 0, "Requested line length (advisory)")
	rootCmd.AddCommand(fmtCmd)
}

func runFmt(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	code, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read source: %w", err)
	}

	eng := engine.New(cfg)
	result, err := eng.Format(ctx, engine.FormatRequest{
		Code:      string(code),
		LineWidth: fmtLineLength,
	})
	if err != nil {
		return fmt.Errorf("format failed: %w", err)
	}

	if result.Note != "" {
		fmt.Fprintf(os.Stderr, "%s %s\n", warnStyle.Render("note:"), result.Note)
	}

	if fmtWrite {
		if !result.Changed {
			fmt.Printf("%s %s already canonical\n", successStyle.Render("✓"), args[0])
			return nil
		}
		if err := os.WriteFile(args[0], []byte(result.Formatted), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", args[0], err)
		}
		fmt.Printf("%s formatted %s\n", successStyle.Render("✓"), args[0])
		return nil
	}

	fmt.Print(result.Formatted)
	return nil
}
