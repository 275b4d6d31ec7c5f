// Package server exposes the engine over MCP: four tools with typed
// schemas, stdio and streamable HTTP transports, and structured error
// payloads in place of protocol failures.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"gauntlet/internal/config"
	"gauntlet/internal/engine"
	"gauntlet/internal/logging"
)

const instructions = `Test synthesis and sandboxed execution for Go source.
Submit code to generate_tests, execute with run_tests, review with
code_review, and normalize style with format_code. Submitted code runs
in a disposable sandbox with import screening; failing tests come back
as data, never as errors.`

// Server wires the engine into an MCP tool surface.
type Server struct {
	cfg    *config.Config
	engine *engine.Engine
	mcp    *mcp.Server
}

// New builds the server and registers the tool surface. A nil config
// uses defaults; a nil engine is constructed from the config.
func New(cfg *config.Config, eng *engine.Engine) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if eng == nil {
		eng = engine.New(cfg)
	}
	s := &Server{cfg: cfg, engine: eng}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{Name: cfg.Name, Version: cfg.Version},
		&mcp.ServerOptions{Instructions: instructions},
	)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "generate_tests",
		Description: "Generate unit tests from Go source code using structural analysis. " +
			"Creates multiple test cases including happy path, edge cases, exception handling, and type validation, each with a rationale.",
	}, s.generateTests)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "run_tests",
		Description: "Execute Go tests in an isolated sandbox and return detailed results: " +
			"per-test pass/fail status, run-level status, captured output, and per-line coverage when source code is provided.",
	}, s.runTests)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "code_review",
		Description: "Review Go source code with gofmt, go vet, staticcheck, and built-in safety and structure analyzers. " +
			"Returns per-analyzer findings; analyzers that are not installed degrade instead of failing the review.",
	}, s.codeReview)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "format_code",
		Description: "Format Go source code into the canonical gofmt layout.",
	}, s.formatCode)

	logging.Server("mcp server %s v%s ready (4 tools)", cfg.Name, cfg.Version)
	return s
}

// ServeStdio serves one session over stdin/stdout until the client
// disconnects or ctx is canceled.
func (s *Server) ServeStdio(ctx context.Context) error {
	logging.Server("serving on stdio")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// ServeHTTP serves the streamable HTTP transport on addr until ctx is
// canceled, then shuts down gracefully.
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s.mcp }, nil)
	httpServer := &http.Server{Addr: addr, Handler: handler}

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()
	logging.Server("serving streamable http on %s", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http serve: %w", err)
	}
}
