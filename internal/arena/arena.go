// Package arena compiles and executes generated tests against submitted
// source inside a disposable sandbox directory. Each run gets its own
// arena module, its own process group, and hard wall-clock bounds; the
// arena never lets sandboxed code outlive the request that spawned it.
//
// The arena distinguishes two failure shapes. Faults of the run itself
// (rejected source, compile errors, spawn failures) surface as
// *StartupError before any test executes. Failing or panicking tests
// are not errors at all: they come back as data in the RawRun event
// stream for the verdict layer to judge.
package arena

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/tools/cover"

	"gauntlet/internal/anatomy"
	"gauntlet/internal/build"
	"gauntlet/internal/logging"
	"gauntlet/internal/safety"
)

const (
	testBinaryName   = "gauntlet.test"
	coverProfileName = "cover.out"
)

// Startup fault kinds.
const (
	KindSafetyViolation = "safety_violation"
	KindCompileFailed   = "compile_failed"
	KindCompileTimeout  = "compile_timeout"
	KindSpawnFailed     = "spawn_failed"
)

// StartupError reports a fault that prevented the test binary from
// running at all. Test failures never produce one.
type StartupError struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

func (e *StartupError) Error() string {
	return e.Kind + ": " + e.Detail
}

// Config controls sandbox placement and resource bounds.
type Config struct {
	// BaseDir hosts arena directories; empty uses the system temp dir.
	BaseDir string

	// CompileTimeout bounds the compile phase. It is not charged
	// against the caller's run timeout.
	CompileTimeout time.Duration

	// DefaultTimeout bounds the test run when the request names none.
	DefaultTimeout time.Duration

	// MaxConcurrent caps simultaneous sandbox runs.
	MaxConcurrent int

	// MaxOutputBytes caps each captured stream.
	MaxOutputBytes int64

	// MemoryLimit becomes GOMEMLIMIT for the worker. Empty disables it.
	MemoryLimit string

	// AllowedEnvVars may pass through to workers beyond the Go base set.
	AllowedEnvVars []string

	// GoBinary names the toolchain binary, normally "go".
	GoBinary string

	// AllowExec and AllowNetwork relax the safety screen.
	AllowExec    bool
	AllowNetwork bool
}

func (c Config) withDefaults() Config {
	if c.CompileTimeout <= 0 {
		c.CompileTimeout = 60 * time.Second
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = 30 * time.Second
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 4
	}
	if c.MaxOutputBytes <= 0 {
		c.MaxOutputBytes = 1 << 20
	}
	if c.GoBinary == "" {
		c.GoBinary = "go"
	}
	return c
}

// Request describes one sandboxed test run.
type Request struct {
	// SourceCode is the code under test, a complete file with a
	// package clause.
	SourceCode string

	// TestCode is the generated _test.go contents, same package.
	TestCode string

	// ModuleName names the arena module and its file stems.
	ModuleName string

	// Timeout bounds the run; zero uses the executor default.
	Timeout time.Duration

	// Cover enables statement coverage collection.
	Cover bool
}

// RawRun is the unjudged outcome of a sandbox run.
type RawRun struct {
	// Events is the decoded test2json stream, in emission order.
	// Empty for timed-out runs.
	Events []TestEvent

	// Stdout and Stderr are the captured streams, truncated at the
	// configured cap.
	Stdout string
	Stderr string

	// ExitCode of the worker. Failing tests exit nonzero; that is
	// data, not an error. -1 for timed-out runs.
	ExitCode int

	// TimedOut marks a run killed at the wall-clock bound.
	TimedOut bool

	// Duration covers the execute phase only; compilation is not
	// charged to it.
	Duration time.Duration

	// Profile holds the parsed coverage profiles when coverage was
	// requested and the run completed.
	Profile []*cover.Profile
}

// Executor runs sandboxed test binaries with bounded concurrency.
// Safe for use from multiple goroutines.
type Executor struct {
	config Config
	sem    *semaphore.Weighted
}

// NewExecutor returns an executor with unset config fields defaulted.
func NewExecutor(config Config) *Executor {
	config = config.withDefaults()
	return &Executor{
		config: config,
		sem:    semaphore.NewWeighted(int64(config.MaxConcurrent)),
	}
}

// Run screens, compiles, and executes one test run. Startup faults
// come back as *StartupError; test failures and timeouts are data in
// the RawRun.
func (e *Executor) Run(ctx context.Context, req Request) (*RawRun, error) {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("failed to acquire arena slot: %w", err)
	}
	defer e.sem.Release(1)

	module := anatomy.SanitizeName(req.ModuleName)

	report, err := safety.Check(req.SourceCode, safety.Policy{
		AllowExec:    e.config.AllowExec,
		AllowNetwork: e.config.AllowNetwork,
	})
	if err != nil {
		return nil, &StartupError{Kind: KindSafetyViolation, Detail: err.Error()}
	}
	if !report.Safe {
		logging.ArenaWarn("module %s: source rejected: %s", module, report.Summary())
		return nil, &StartupError{Kind: KindSafetyViolation, Detail: report.Summary()}
	}

	dir, err := e.createArena(module, req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			logging.ArenaWarn("failed to remove arena dir %s: %v", dir, rmErr)
		}
	}()

	binary, err := e.compile(ctx, dir, req.Cover)
	if err != nil {
		return nil, err
	}

	raw, err := e.execute(ctx, dir, binary, req)
	if err != nil {
		return nil, err
	}

	if req.Cover && !raw.TimedOut {
		raw.Profile = e.readCoverage(dir)
	}

	logging.Arena("module %s: run finished in %v (exit %d, %d events, timed_out=%v)",
		module, raw.Duration.Round(time.Millisecond), raw.ExitCode, len(raw.Events), raw.TimedOut)
	return raw, nil
}

// createArena builds the disposable module dir: source, generated
// tests, and a self-contained go.mod. The caller removes it.
func (e *Executor) createArena(module string, req Request) (string, error) {
	var dir string
	var err error
	if e.config.BaseDir == "" {
		dir, err = os.MkdirTemp("", "arena_"+module+"_")
	} else {
		if err = os.MkdirAll(e.config.BaseDir, 0o755); err == nil {
			dir = filepath.Join(e.config.BaseDir, fmt.Sprintf("arena_%s_%d", module, time.Now().UnixNano()))
			err = os.Mkdir(dir, 0o755)
		}
	}
	if err != nil {
		return "", &StartupError{Kind: KindSpawnFailed, Detail: fmt.Sprintf("failed to create arena dir: %v", err)}
	}

	files := map[string]string{
		module + ".go":      req.SourceCode,
		module + "_test.go": req.TestCode,
		"go.mod":            fmt.Sprintf("module arena_%s\n\ngo 1.24\n", module),
	}
	for name, content := range files {
		if werr := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); werr != nil {
			os.RemoveAll(dir)
			return "", &StartupError{Kind: KindSpawnFailed, Detail: fmt.Sprintf("failed to write %s: %v", name, werr)}
		}
	}

	logging.ArenaDebug("arena dir ready: %s", dir)
	return dir, nil
}

// compile builds the test binary under CompileTimeout with a scrubbed
// environment. Returns the binary path relative to the arena dir.
func (e *Executor) compile(ctx context.Context, dir string, withCover bool) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, e.config.CompileTimeout)
	defer cancel()

	args := []string{"test", "-c", "-o", testBinaryName}
	if withCover {
		args = append(args, "-cover", "-covermode=count")
	}
	args = append(args, ".")

	cmd := exec.CommandContext(cctx, e.config.GoBinary, args...)
	cmd.Dir = dir
	cmd.Env = build.GetSandboxEnv(e.config.AllowedEnvVars, e.config.MemoryLimit)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &limitedWriter{w: &stdout, max: e.config.MaxOutputBytes}
	cmd.Stderr = &limitedWriter{w: &stderr, max: e.config.MaxOutputBytes}

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if cctx.Err() == context.DeadlineExceeded {
			return "", &StartupError{
				Kind:   KindCompileTimeout,
				Detail: fmt.Sprintf("compilation exceeded %s", e.config.CompileTimeout),
			}
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = strings.TrimSpace(stdout.String())
		}
		if detail == "" {
			detail = err.Error()
		}
		return "", &StartupError{Kind: KindCompileFailed, Detail: detail}
	}

	logging.ArenaDebug("compiled %s in %v", testBinaryName, time.Since(start).Round(time.Millisecond))
	return "./" + testBinaryName, nil
}

// execute runs the compiled binary through test2json under the
// caller's wall-clock bound. The worker gets its own process group;
// cancellation kills the whole group, cooperative or not.
func (e *Executor) execute(ctx context.Context, dir, binary string, req Request) (*RawRun, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.config.DefaultTimeout
	}
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{"tool", "test2json", "-t", binary, "-test.v=test2json"}
	if req.Cover {
		args = append(args, "-test.coverprofile="+coverProfileName)
	}

	cmd := exec.CommandContext(rctx, e.config.GoBinary, args...)
	cmd.Dir = dir
	cmd.Env = build.GetSandboxEnv(e.config.AllowedEnvVars, e.config.MemoryLimit)

	var stdout, stderr bytes.Buffer
	outCap := &limitedWriter{w: &stdout, max: e.config.MaxOutputBytes}
	errCap := &limitedWriter{w: &stderr, max: e.config.MaxOutputBytes}
	cmd.Stdout = outCap
	cmd.Stderr = errCap

	setupProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = 5 * time.Second

	start := time.Now()
	err := cmd.Run()
	raw := &RawRun{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if outCap.truncated || errCap.truncated {
		logging.ArenaWarn("worker output truncated at %d bytes", e.config.MaxOutputBytes)
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if rctx.Err() == context.DeadlineExceeded {
		// Run-level timeout supersedes per-test events.
		raw.TimedOut = true
		raw.ExitCode = -1
		logging.Arena("worker killed at wall-clock bound %s", timeout)
		return raw, nil
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, &StartupError{Kind: KindSpawnFailed, Detail: err.Error()}
		}
		raw.ExitCode = exitErr.ExitCode()
	}

	raw.Events = parseEvents(stdout.Bytes())
	return raw, nil
}

// readCoverage parses the profile the worker wrote. A missing or
// garbled profile degrades to no coverage rather than failing the run.
func (e *Executor) readCoverage(dir string) []*cover.Profile {
	profiles, err := cover.ParseProfiles(filepath.Join(dir, coverProfileName))
	if err != nil {
		logging.ArenaWarn("coverage profile unreadable: %v", err)
		return nil
	}
	return profiles
}
