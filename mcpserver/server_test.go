package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/safebox/config"
	"github.com/isdmx/safebox/interp"
	"github.com/isdmx/safebox/result"
	"github.com/isdmx/safebox/sandbox"
)

// MockSandboxExecutor implements sandbox.Executor for testing
type MockSandboxExecutor struct {
	submitResult *result.Result
	submitError  error
	closeError   error
	lastRequest  sandbox.Request
	closed       []string
}

func (m *MockSandboxExecutor) Submit(_ context.Context, req sandbox.Request) (*result.Result, error) {
	m.lastRequest = req
	return m.submitResult, m.submitError
}

func (m *MockSandboxExecutor) CloseSession(_ context.Context, id string) error {
	m.closed = append(m.closed, id)
	return m.closeError
}

func (*MockSandboxExecutor) Teardown(context.Context) error {
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{Transport: "stdio", HTTPPort: 8080},
		Sandbox: config.SandboxConfig{Backend: "local", TimeoutSec: 30, MemoryMB: 512, SessionMode: "reuse"},
		Logging: config.LoggingConfig{Mode: "production", Level: "info"},
	}
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "unexpected content type %T", res.Content[0])
	return text.Text
}

func TestNewMCPServer(t *testing.T) {
	logger := zaptest.NewLogger(t)
	cfg := testConfig()
	mockExecutor := &MockSandboxExecutor{}

	server, err := New(cfg, logger, mockExecutor)
	require.NoError(t, err)
	require.NotNil(t, server)
	assert.Equal(t, cfg, server.config)
	assert.Equal(t, mockExecutor, server.sandboxExec)
	assert.NotNil(t, server.GetMCPServer())
	assert.NoError(t, server.Shutdown(context.Background()), "shutdown before serving is a no-op")
}

func TestHandleExecutePython(t *testing.T) {
	rv := "16"
	mockExecutor := &MockSandboxExecutor{submitResult: &result.Result{
		Output:      []string{"4.0"},
		ReturnValue: &rv,
		Backend:     "local",
	}}
	server, err := New(testConfig(), zaptest.NewLogger(t), mockExecutor)
	require.NoError(t, err)

	res, err := server.handleExecutePython(context.Background(), callRequest(ToolExecutePython, map[string]any{
		"code":       "print(4.0)\n16",
		"env":        map[string]any{"MODE": "test"},
		"variables":  map[string]any{"n": float64(3)},
		"session_id": "s1",
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	assert.Equal(t, "print(4.0)\n16", mockExecutor.lastRequest.Code)
	assert.Equal(t, map[string]string{"MODE": "test"}, mockExecutor.lastRequest.Env)
	assert.Equal(t, map[string]any{"n": float64(3)}, mockExecutor.lastRequest.Variables)
	assert.Equal(t, "s1", mockExecutor.lastRequest.SessionID)

	var decoded result.Result
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &decoded))
	assert.Equal(t, []string{"4.0"}, decoded.Output)
	require.NotNil(t, decoded.ReturnValue)
	assert.Equal(t, "16", *decoded.ReturnValue)
}

func TestHandleExecutePythonErrors(t *testing.T) {
	t.Run("MissingCode", func(t *testing.T) {
		server, err := New(testConfig(), zaptest.NewLogger(t), &MockSandboxExecutor{})
		require.NoError(t, err)
		_, err = server.handleExecutePython(context.Background(), callRequest(ToolExecutePython, map[string]any{}))
		assert.Error(t, err)
	})

	t.Run("InvalidEnv", func(t *testing.T) {
		server, err := New(testConfig(), zaptest.NewLogger(t), &MockSandboxExecutor{})
		require.NoError(t, err)
		_, err = server.handleExecutePython(context.Background(), callRequest(ToolExecutePython, map[string]any{
			"code": "1",
			"env":  map[string]any{"N": 1},
		}))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid env")
	})

	t.Run("FailedSubmission", func(t *testing.T) {
		mockExecutor := &MockSandboxExecutor{submitResult: result.Failure("local", result.Errorf(result.KindImportDenied, "os"))}
		server, err := New(testConfig(), zaptest.NewLogger(t), mockExecutor)
		require.NoError(t, err)

		res, err := server.handleExecutePython(context.Background(), callRequest(ToolExecutePython, map[string]any{"code": "import os"}))
		require.NoError(t, err)
		assert.True(t, res.IsError)
		assert.Contains(t, resultText(t, res), `"kind":"ImportDenied"`)
	})

	t.Run("ClosedExecutor", func(t *testing.T) {
		server, err := New(testConfig(), zaptest.NewLogger(t), &MockSandboxExecutor{submitError: sandbox.ErrClosed})
		require.NoError(t, err)

		res, err := server.handleExecutePython(context.Background(), callRequest(ToolExecutePython, map[string]any{"code": "1"}))
		require.NoError(t, err)
		assert.True(t, res.IsError)
		assert.Contains(t, resultText(t, res), "executor is closed")
	})
}

func TestHandleCloseSession(t *testing.T) {
	mockExecutor := &MockSandboxExecutor{}
	server, err := New(testConfig(), zaptest.NewLogger(t), mockExecutor)
	require.NoError(t, err)

	res, err := server.handleCloseSession(context.Background(), callRequest(ToolCloseSession, map[string]any{"session_id": "s1"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, []string{"s1"}, mockExecutor.closed)

	mockExecutor.closeError = errors.New("daemon unreachable")
	res, err = server.handleCloseSession(context.Background(), callRequest(ToolCloseSession, map[string]any{"session_id": "s2"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	_, err = server.handleCloseSession(context.Background(), callRequest(ToolCloseSession, nil))
	assert.Error(t, err)
}

func TestExecutePythonWithLocalExecutor(t *testing.T) {
	logger := zaptest.NewLogger(t)
	executor := sandbox.NewLocalExecutor(logger, interp.New(nil), 0, nil)
	server, err := New(testConfig(), logger, executor)
	require.NoError(t, err)

	res, err := server.handleExecutePython(context.Background(), callRequest(ToolExecutePython, map[string]any{
		"code": "import math\nprint(math.sqrt(16))",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))

	var decoded result.Result
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &decoded))
	assert.Equal(t, []string{"4.0"}, decoded.Output)
	assert.Equal(t, sandbox.BackendLocal, decoded.Backend)
}
