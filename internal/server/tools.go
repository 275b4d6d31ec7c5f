package server

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"gauntlet/internal/anatomy"
	"gauntlet/internal/engine"
	"gauntlet/internal/logging"
	"gauntlet/internal/review"
	"gauntlet/internal/style"
	"gauntlet/internal/verdict"
)

// Fault kinds carried in structured error payloads.
const (
	faultInvalidRequest = "invalid_request"
	faultParseError     = "parse_error"
	faultInternal       = "internal"
)

// toolFault is the error payload every tool returns instead of a
// protocol failure.
type toolFault struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// GenerateTestsInput is the generate_tests tool input.
type GenerateTestsInput struct {
	Code              string `json:"code" jsonschema:"Go source code to generate tests for"`
	ModuleName        string `json:"module_name,omitempty" jsonschema:"module name for the generated test package (default: module)"`
	IncludeUnexported bool   `json:"include_unexported,omitempty" jsonschema:"also target unexported callables"`
	Save              bool   `json:"save,omitempty" jsonschema:"save the generated tests under the configured output directory"`
}

// RunTestsInput is the run_tests tool input. Coverage is collected
// whenever source_code is present.
type RunTestsInput struct {
	TestCode   string `json:"test_code" jsonschema:"Go test code to execute"`
	SourceCode string `json:"source_code,omitempty" jsonschema:"source code under test; enables coverage analysis"`
	ModuleName string `json:"module_name,omitempty" jsonschema:"module name shared by source and tests (default: module)"`
	Timeout    int    `json:"timeout,omitempty" jsonschema:"wall-clock limit in seconds (default: 30)"`
}

// CodeReviewInput is the code_review tool input.
type CodeReviewInput struct {
	Code      string   `json:"code" jsonschema:"Go source code to analyze"`
	Analyzers []string `json:"analyzers,omitempty" jsonschema:"analyzers to run (gofmt, vet, staticcheck, safety, structure); default from config"`
}

// FormatCodeInput is the format_code tool input.
type FormatCodeInput struct {
	Code       string `json:"code" jsonschema:"Go source code to format"`
	LineLength int    `json:"line_length,omitempty" jsonschema:"advisory maximum line length; gofmt layout is canonical"`
}

func (s *Server) generateTests(ctx context.Context, _ *mcp.CallToolRequest, in GenerateTestsInput) (*mcp.CallToolResult, engine.GenerateResult, error) {
	start := time.Now()
	if strings.TrimSpace(in.Code) == "" {
		return s.fault("generate_tests", start, faultInvalidRequest, "no code provided"), engine.GenerateResult{}, nil
	}

	result, err := s.engine.GenerateTests(ctx, engine.GenerateRequest{
		Code:              in.Code,
		ModuleName:        in.ModuleName,
		IncludeUnexported: in.IncludeUnexported,
		Save:              in.Save,
	})
	if err != nil {
		var parseErr *anatomy.ParseError
		if errors.As(err, &parseErr) {
			return s.fault("generate_tests", start, faultParseError, parseErr.Error()), engine.GenerateResult{}, nil
		}
		return s.fault("generate_tests", start, faultInternal, err.Error()), engine.GenerateResult{}, nil
	}
	s.done("generate_tests", start)
	return nil, *result, nil
}

func (s *Server) runTests(ctx context.Context, _ *mcp.CallToolRequest, in RunTestsInput) (*mcp.CallToolResult, verdict.RunReport, error) {
	start := time.Now()
	if strings.TrimSpace(in.TestCode) == "" {
		return s.fault("run_tests", start, faultInvalidRequest, "no test code provided"), verdict.RunReport{}, nil
	}

	report, err := s.engine.RunTests(ctx, engine.RunRequest{
		TestCode:   in.TestCode,
		SourceCode: in.SourceCode,
		ModuleName: in.ModuleName,
		Timeout:    time.Duration(in.Timeout) * time.Second,
		Cover:      in.SourceCode != "",
	})
	if err != nil {
		return s.fault("run_tests", start, faultInternal, err.Error()), verdict.RunReport{}, nil
	}
	s.done("run_tests", start)
	return nil, *report, nil
}

func (s *Server) codeReview(ctx context.Context, _ *mcp.CallToolRequest, in CodeReviewInput) (*mcp.CallToolResult, review.Report, error) {
	start := time.Now()
	if strings.TrimSpace(in.Code) == "" {
		return s.fault("code_review", start, faultInvalidRequest, "no code provided"), review.Report{}, nil
	}

	report, err := s.engine.Review(ctx, engine.ReviewRequest{Code: in.Code, Analyzers: in.Analyzers})
	if err != nil {
		return s.fault("code_review", start, faultInternal, err.Error()), review.Report{}, nil
	}
	s.done("code_review", start)
	return nil, *report, nil
}

func (s *Server) formatCode(ctx context.Context, _ *mcp.CallToolRequest, in FormatCodeInput) (*mcp.CallToolResult, style.Result, error) {
	start := time.Now()
	if strings.TrimSpace(in.Code) == "" {
		return s.fault("format_code", start, faultInvalidRequest, "no code provided"), style.Result{}, nil
	}

	result, err := s.engine.Format(ctx, engine.FormatRequest{Code: in.Code, LineWidth: in.LineLength})
	if err != nil {
		// format.Source faults are syntax problems in the submission.
		return s.fault("format_code", start, faultParseError, err.Error()), style.Result{}, nil
	}
	s.done("format_code", start)
	return nil, *result, nil
}

// fault logs and wraps a tool failure as an error result with a
// {kind, message} JSON payload.
func (s *Server) fault(tool string, start time.Time, kind, message string) *mcp.CallToolResult {
	logging.ServerWarn("%s: %s: %s", tool, kind, message)
	logging.Audit().ToolExec(tool, time.Since(start).Milliseconds(), false, message)
	payload, _ := json.Marshal(toolFault{Kind: kind, Message: message})
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: string(payload)}},
	}
}

func (s *Server) done(tool string, start time.Time) {
	logging.Audit().ToolExec(tool, time.Since(start).Milliseconds(), true, "")
}
