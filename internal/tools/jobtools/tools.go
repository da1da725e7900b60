package jobtools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/inboxsweeper/internal/engine"
	"github.com/teemow/inboxsweeper/internal/server"
	"github.com/teemow/inboxsweeper/internal/tools/common"
)

// RegisterJobTools registers all sweep job tools with the MCP server.
// Destructive tools (delete, unsubscribe, filter creation) are only
// registered when readOnly is false.
func RegisterJobTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	if err := registerEnqueueTools(s, sc, readOnly); err != nil {
		return fmt.Errorf("failed to register enqueue tools: %w", err)
	}
	registerStatusTools(s, sc)
	return nil
}

func addTool(s *mcpserver.MCPServer, sc *server.ServerContext, tool mcp.Tool,
	handler func(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error),
) {
	s.AddTool(tool, common.InstrumentedToolHandler(tool.Name, sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handler(ctx, request, sc)
	}))
}

// enqueue validates the request, hands it to the queue and renders the
// accepted job as JSON.
func enqueue(sc *server.ServerContext, req engine.Request) (*mcp.CallToolResult, error) {
	queue := sc.Queue()
	if queue == nil {
		return mcp.NewToolResultError("job queue is not available"), nil
	}

	job, err := queue.Enqueue(req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to enqueue %s job: %v", req.Kind, err)), nil
	}

	return jobResult(job)
}

func jobResult(job engine.Job) (*mcp.CallToolResult, error) {
	payload, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode job: %v", err)), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}

// stringArg returns the named string argument, or "" when absent.
func stringArg(args map[string]interface{}, name string) string {
	v, _ := args[name].(string)
	return v
}

// intArg returns the named numeric argument. JSON numbers arrive as
// float64.
func intArg(args map[string]interface{}, name string) int64 {
	if v, ok := args[name].(float64); ok {
		return int64(v)
	}
	return 0
}

func boolArg(args map[string]interface{}, name string) bool {
	v, _ := args[name].(bool)
	return v
}
