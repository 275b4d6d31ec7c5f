package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gauntlet/internal/engine"
)

var (
	generateModule     string
	generateUnexported bool
	generateSave       bool
	generateWatch      bool
)

var generateCmd = &cobra.Command{
	Use:   "generate <file>",
	Short: "Generate table-driven tests for a Go source file",
	Long: `Generate table-driven test cases for every callable in a Go
source file. Bare snippets without a package clause are accepted.

Examples:
  gauntlet generate calc.go
  gauntlet generate calc.go --save
  gauntlet generate calc.go --save --watch`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVar(&generateModule, "module", "", "Module name for the generated tests (default: source file name)")
	generateCmd.Flags().BoolVar(&generateUnexported, "unexported", false, "Also generate tests for unexported callables")
	generateCmd.Flags().BoolVar(&generateSave, "save", false, "Write the generated file under the output directory")
	generateCmd.Flags().BoolVar(&generateWatch, "watch", false, "Regenerate whenever the source file changes")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	baseCtx := cmd.Context()
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	path := args[0]
	eng := engine.New(cfg)

	if err := generateOnce(baseCtx, eng, path); err != nil {
		return err
	}
	if !generateWatch {
		return nil
	}
	return watchAndRegenerate(baseCtx, eng, path)
}

func generateOnce(ctx context.Context, eng *engine.Engine, path string) error {
	code, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read source: %w", err)
	}

	module := generateModule
	if module == "" {
		module = strings.TrimSuffix(filepath.Base(path), ".go")
	}

	result, err := eng.GenerateTests(ctx, engine.GenerateRequest{
		Code:              string(code),
		ModuleName:        module,
		IncludeUnexported: generateUnexported,
		Save:              generateSave,
	})
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	fmt.Printf("%s %d test cases for module %q\n",
		successStyle.Render("✓"), len(result.Specs), result.ModuleName)
	for _, s := range result.Skipped {
		fmt.Printf("  %s skipped %s: %s\n", warnStyle.Render("-"), s.Name, s.Reason)
	}
	if result.SavedPath != "" {
		fmt.Printf("  saved to %s\n", result.SavedPath)
		return nil
	}
	fmt.Println()
	fmt.Print(result.Source)
	return nil
}

// watchAndRegenerate reruns generation each time the source file
// settles after a change. It watches the directory rather than the
// file: editors replace files on save and a watch on the old inode
// would go stale.
func watchAndRegenerate(ctx context.Context, eng *engine.Engine, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	fmt.Printf("%s watching %s\n", infoStyle.Render("→"), path)

	// Debounce rapid saves; armed on the first matching event.
	debounce := time.NewTimer(time.Hour)
	debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-sigCh:
			fmt.Println("\nstopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			debounce.Reset(300 * time.Millisecond)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", zap.Error(err))

		case <-debounce.C:
			if err := generateOnce(ctx, eng, path); err != nil {
				fmt.Printf("%s %v\n", failStyle.Render("✗"), err)
			}
		}
	}
}
