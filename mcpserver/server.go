package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/isdmx/safebox/config"
	"github.com/isdmx/safebox/sandbox"
)

// Tool names
const (
	ToolExecutePython = "execute_python"
	ToolCloseSession  = "close_session"
)

// MCPServer represents the MCP server
type MCPServer struct {
	config      *config.Config
	logger      *zap.Logger
	sandboxExec sandbox.Executor
	mcpServer   *server.MCPServer

	mu         sync.Mutex
	httpServer *server.StreamableHTTPServer
}

// New creates a new MCPServer
func New(cfg *config.Config, logger *zap.Logger, sandboxExec sandbox.Executor) (*MCPServer, error) {
	s := &MCPServer{
		config:      cfg,
		logger:      logger,
		sandboxExec: sandboxExec,
	}

	// Log configuration parameters on startup
	logger.Info("configuration loaded",
		zap.String("server.transport", s.config.Server.Transport),
		zap.Int("server.http_port", s.config.Server.HTTPPort),
		zap.String("sandbox.backend", s.config.Sandbox.Backend),
		zap.String("sandbox.session_mode", s.config.Sandbox.SessionMode),
		zap.Int("sandbox.timeout_sec", s.config.Sandbox.TimeoutSec),
		zap.Int("sandbox.memory_mb", s.config.Sandbox.MemoryMB),
		zap.Bool("sandbox.network_enabled", s.config.Sandbox.NetworkEnabled),
		zap.Strings("policy.allowed_imports", s.config.Policy.AllowedImports),
		zap.Int64("policy.max_operations", s.config.Policy.MaxOperations),
	)

	s.mcpServer = server.NewMCPServer("safebox", "Restricted Python execution server")

	s.registerExecutePythonTool()
	s.registerCloseSessionTool()

	return s, nil
}

func (s *MCPServer) registerExecutePythonTool() {
	tool := mcp.Tool{
		Name: ToolExecutePython,
		Description: "Execute a Python snippet under the configured authorization policy. " +
			"Returns the captured output, the value of the last expression and a structured error.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "Python source to execute",
				},
				"env": map[string]any{
					"type":                 "object",
					"description":          "Environment variables exposed to the program",
					"additionalProperties": map[string]any{"type": "string"},
				},
				"variables": map[string]any{
					"type":        "object",
					"description": "Values bound as globals before execution",
				},
				"session_id": map[string]any{
					"type":        "string",
					"description": "Session to run in; submissions with the same id share one sandbox (optional)",
				},
			},
			Required: []string{"code"},
		},
	}

	s.mcpServer.AddTool(tool, s.handleExecutePython)
}

func (s *MCPServer) registerCloseSessionTool() {
	tool := mcp.Tool{
		Name:        ToolCloseSession,
		Description: "Tear down a sandbox session and release its resources",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"session_id": map[string]any{
					"type":        "string",
					"description": "Session to close",
				},
			},
			Required: []string{"session_id"},
		},
	}

	s.mcpServer.AddTool(tool, s.handleCloseSession)
}

func textResult(text string, isError bool) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: text,
			},
		},
		IsError: isError,
	}
}

// handleExecutePython handles the execute_python tool
func (s *MCPServer) handleExecutePython(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("code")
	if err != nil {
		return nil, fmt.Errorf("code parameter is required: %w", err)
	}

	args, _ := request.Params.Arguments.(map[string]any)
	env, err := stringMap(args["env"])
	if err != nil {
		return nil, fmt.Errorf("invalid env: %w", err)
	}
	var variables map[string]any
	if raw, ok := args["variables"]; ok && raw != nil {
		if variables, ok = raw.(map[string]any); !ok {
			return nil, fmt.Errorf("invalid variables: expected an object, got %T", raw)
		}
	}

	req := sandbox.Request{
		Code:      code,
		Env:       env,
		Variables: variables,
		SessionID: request.GetString("session_id", ""),
	}
	s.logger.Info("code execution requested",
		zap.Int("code_length", len(code)),
		zap.String("session_id", req.SessionID))

	res, err := s.sandboxExec.Submit(ctx, req)
	if err != nil {
		s.logger.Error("sandbox execution failed", zap.Error(err))
		return textResult(fmt.Sprintf("Execution failed: %v", err), true), nil
	}

	s.logger.Info("code execution completed",
		zap.String("outcome", res.Outcome()),
		zap.Int("output_lines", len(res.Output)),
		zap.Duration("elapsed", res.Duration))

	resultJSON, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return textResult(string(resultJSON), res.Failed()), nil
}

// handleCloseSession handles the close_session tool
func (s *MCPServer) handleCloseSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return nil, fmt.Errorf("session_id parameter is required: %w", err)
	}

	if err := s.sandboxExec.CloseSession(ctx, id); err != nil {
		s.logger.Warn("failed to close session", zap.String("session_id", id), zap.Error(err))
		return textResult(fmt.Sprintf("Failed to close session %s: %v", id, err), true), nil
	}
	s.logger.Info("session closed", zap.String("session_id", id))
	return textResult(fmt.Sprintf(`{"session_id":%q,"closed":true}`, id), false), nil
}

func stringMap(raw any) (map[string]string, error) {
	if raw == nil {
		return nil, nil
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected an object, got %T", raw)
	}
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		str, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("value of %q must be a string, got %T", k, v)
		}
		out[k] = str
	}
	return out, nil
}

// ServeStdio starts the server on stdio
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// ServeHTTP starts the server on HTTP. It returns nil after Shutdown.
func (s *MCPServer) ServeHTTP() error {
	port := s.config.Server.HTTPPort
	s.logger.Info("starting MCP server on HTTP", zap.Int("port", port))

	httpServer := server.NewStreamableHTTPServer(s.mcpServer)
	s.mu.Lock()
	s.httpServer = httpServer
	s.mu.Unlock()

	err := httpServer.Start(fmt.Sprintf(":%d", port))
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the HTTP transport if it is running
func (s *MCPServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	httpServer := s.httpServer
	s.mu.Unlock()
	if httpServer == nil {
		return nil
	}
	s.logger.Info("stopping MCP HTTP server")
	return httpServer.Shutdown(ctx)
}

// GetMCPServer returns the underlying MCP server for fx
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}
