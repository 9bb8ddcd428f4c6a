package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mcpchecker/wfeval/pkg/workflow"
)

// ExecuteFunc runs a graph on the host side of an engine.
type ExecuteFunc func(ctx context.Context, graph *workflow.Graph, inputs map[string]any) (json.RawMessage, error)

type executeArgs struct {
	Workflow *workflow.Graph `json:"workflow"`
	Inputs   map[string]any  `json:"inputs"`
}

// NewMCPServer exposes fn as the execute_workflow tool. Errors wrapping the
// declared sentinels are reported with a matching errorKind so clients can
// classify them.
func NewMCPServer(name string, fn ExecuteFunc) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: name, Version: "1.0.0"}, &mcp.ServerOptions{
		HasTools: true,
	})

	server.AddTool(&mcp.Tool{
		Name:        ToolName,
		Description: "Execute a workflow graph against one set of bound inputs",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"workflow": map[string]any{"type": "object"},
				"inputs":   map[string]any{"type": "object"},
			},
			"required": []string{"workflow"},
		},
	}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := parseArguments(req.Params.Arguments)
		if err != nil {
			return errorResult(fmt.Errorf("%w: %w", ErrInvalidBinding, err)), nil
		}
		if args.Workflow == nil {
			return errorResult(fmt.Errorf("%w: workflow is required", ErrValidation)), nil
		}

		out, err := fn(ctx, args.Workflow, args.Inputs)
		if err != nil {
			return errorResult(err), nil
		}
		return successResult(out), nil
	})

	return server
}

// Handler serves the engine over the streamable HTTP transport.
func Handler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, &mcp.StreamableHTTPOptions{})
}

func parseArguments(raw any) (*executeArgs, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to read arguments: %w", err)
	}
	args := &executeArgs{}
	if err := json.Unmarshal(data, args); err != nil {
		return nil, fmt.Errorf("failed to decode arguments: %w", err)
	}
	return args, nil
}

func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
		StructuredContent: map[string]any{
			"errorKind": errorKindOf(err),
			"message":   err.Error(),
		},
	}
}

func successResult(out json.RawMessage) *mcp.CallToolResult {
	if len(out) == 0 {
		out = json.RawMessage(`{}`)
	}
	res := &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(out)}},
	}
	var obj map[string]any
	if err := json.Unmarshal(out, &obj); err == nil {
		res.StructuredContent = obj
	}
	return res
}
