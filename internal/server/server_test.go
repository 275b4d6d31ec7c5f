package server

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gauntlet/internal/config"
	"gauntlet/internal/engine"
	"gauntlet/internal/review"
	"gauntlet/internal/style"
	"gauntlet/internal/verdict"
)

const addSource = `func Add(a int, b int) int {
	return a + b
}`

// connect builds a fresh server and returns a client session over an
// in-memory transport.
func connect(t *testing.T) *mcp.ClientSession {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Arena.BaseDir = t.TempDir()
	cfg.Output.Dir = t.TempDir()
	srv := New(cfg, engine.New(cfg))

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := srv.mcp.Connect(context.Background(), serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "gauntlet-test", Version: "0.0.1"}, nil)
	session, err := client.Connect(context.Background(), clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func callTool(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	return res
}

// decode unmarshals the first text content of a result into out.
func decode(t *testing.T, res *mcp.CallToolResult, out any) {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "content[0] is %T, want *mcp.TextContent", res.Content[0])
	require.NoError(t, json.Unmarshal([]byte(tc.Text), out))
}

func decodeFault(t *testing.T, res *mcp.CallToolResult) toolFault {
	t.Helper()
	require.True(t, res.IsError, "want an error result")
	var fault toolFault
	decode(t, res, &fault)
	return fault
}

func TestListToolsExposesSurface(t *testing.T) {
	session := connect(t)

	res, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"generate_tests", "run_tests", "code_review", "format_code"}, names)
}

func TestGenerateTestsTool(t *testing.T) {
	session := connect(t)

	res := callTool(t, session, "generate_tests", map[string]any{
		"code":        addSource,
		"module_name": "calc",
	})
	require.False(t, res.IsError)
	assert.NotNil(t, res.StructuredContent)

	var out engine.GenerateResult
	decode(t, res, &out)
	assert.Equal(t, "calc", out.ModuleName)
	assert.NotEmpty(t, out.Specs)
	assert.Contains(t, out.Source, "func TestAdd_happy_1(t *testing.T)")
}

func TestGenerateTestsToolRejectsEmptyCode(t *testing.T) {
	session := connect(t)

	fault := decodeFault(t, callTool(t, session, "generate_tests", map[string]any{"code": "   "}))
	assert.Equal(t, faultInvalidRequest, fault.Kind)
	assert.Contains(t, fault.Message, "no code")
}

func TestGenerateTestsToolParseFault(t *testing.T) {
	session := connect(t)

	fault := decodeFault(t, callTool(t, session, "generate_tests", map[string]any{"code": "func Broken( {"}))
	assert.Equal(t, faultParseError, fault.Kind)
	assert.NotEmpty(t, fault.Message)
}

func TestRunTestsToolStartupFaultIsData(t *testing.T) {
	session := connect(t)

	res := callTool(t, session, "run_tests", map[string]any{
		"source_code": "package sneaky\n\nimport \"syscall\"\n\nfunc Raw() { syscall.Sync() }\n",
		"test_code":   "package sneaky\n",
		"module_name": "sneaky",
	})
	require.False(t, res.IsError, "startup faults come back as judged reports")

	var report verdict.RunReport
	decode(t, res, &report)
	assert.Equal(t, verdict.StatusStartupFailed, report.Status)
	assert.Contains(t, report.Stderr, "safety_violation")
	assert.Empty(t, report.Results)
}

func TestRunTestsToolRejectsEmptyTests(t *testing.T) {
	session := connect(t)

	fault := decodeFault(t, callTool(t, session, "run_tests", map[string]any{"test_code": ""}))
	assert.Equal(t, faultInvalidRequest, fault.Kind)
	assert.Contains(t, fault.Message, "no test code")
}

func TestCodeReviewToolBuiltins(t *testing.T) {
	session := connect(t)

	res := callTool(t, session, "code_review", map[string]any{
		"code":      addSource,
		"analyzers": []string{"safety", "structure"},
	})
	require.False(t, res.IsError)

	var report review.Report
	decode(t, res, &report)
	require.Len(t, report.Results, 2)
	assert.Equal(t, "safety", report.Results[0].Analyzer)
	assert.Equal(t, "structure", report.Results[1].Analyzer)
	for _, r := range report.Results {
		assert.True(t, r.Available)
	}
	assert.NotEmpty(t, report.Summary)
}

func TestFormatCodeTool(t *testing.T) {
	session := connect(t)

	res := callTool(t, session, "format_code", map[string]any{
		"code": "package demo\n\nfunc  Messy( ) int {return 1}\n",
	})
	require.False(t, res.IsError)

	var out style.Result
	decode(t, res, &out)
	assert.True(t, out.Changed)
	assert.Contains(t, out.Formatted, "func Messy() int")
}

func TestFormatCodeToolBrokenSource(t *testing.T) {
	session := connect(t)

	fault := decodeFault(t, callTool(t, session, "format_code", map[string]any{"code": "func Broken( {"}))
	assert.Equal(t, faultParseError, fault.Kind)
}
