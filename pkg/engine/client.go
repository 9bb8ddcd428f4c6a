package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/mcpchecker/wfeval/pkg/failure"
	"github.com/mcpchecker/wfeval/pkg/workflow"
)

const clientName = "wfeval"

// MCPEngine calls an execution engine exposed as an MCP tool. The session is
// opened on first use and reused until a call fails at the protocol level.
type MCPEngine struct {
	tool      string
	transport func() (mcp.Transport, error)
	logger    *zap.Logger

	mu      sync.Mutex
	session *mcp.ClientSession
}

var _ Engine = &MCPEngine{}

// NewMCPEngine creates an engine client for the given config. No connection is
// made until the first Execute call.
func NewMCPEngine(cfg Config, logger *zap.Logger) (*MCPEngine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MCPEngine{
		tool:      cfg.ToolName(),
		transport: cfg.Transport,
		logger:    logger,
	}, nil
}

// NewMCPEngineFromTransport creates an engine client over an existing
// transport. The transport is used for a single connection.
func NewMCPEngineFromTransport(transport mcp.Transport, logger *zap.Logger) *MCPEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	used := false
	return &MCPEngine{
		tool: ToolName,
		transport: func() (mcp.Transport, error) {
			if used {
				return nil, fmt.Errorf("transport already used")
			}
			used = true
			return transport, nil
		},
		logger: logger,
	}
}

func (e *MCPEngine) connect(ctx context.Context) (*mcp.ClientSession, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session != nil {
		return e.session, nil
	}

	transport, err := e.transport()
	if err != nil {
		return nil, err
	}

	client := mcp.NewClient(&mcp.Implementation{Name: clientName, Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("connected to execution engine")
	e.session = session
	return session, nil
}

func (e *MCPEngine) drop(session *mcp.ClientSession) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == session {
		_ = session.Close()
		e.session = nil
	}
}

func (e *MCPEngine) Execute(ctx context.Context, graph *workflow.Graph, inputs map[string]any) (json.RawMessage, error) {
	session, err := e.connect(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("failed to connect to execution engine: %w", ctx.Err())
		}
		return nil, failure.Transient(failure.CategoryNetwork, fmt.Errorf("failed to connect to execution engine: %w", err))
	}

	if inputs == nil {
		inputs = map[string]any{}
	}

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name: e.tool,
		Arguments: map[string]any{
			"workflow": graph,
			"inputs":   inputs,
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("workflow execution interrupted: %w", ctx.Err())
		}
		e.drop(session)
		return nil, fmt.Errorf("failed to call %s: %w", e.tool, err)
	}

	if res.IsError {
		return nil, errorFromResult(res)
	}

	return outputFromResult(res)
}

// Close ends the current session, if any.
func (e *MCPEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil
	}
	err := e.session.Close()
	e.session = nil
	return err
}

func errorFromResult(res *mcp.CallToolResult) error {
	kind, message := "", resultText(res)
	if fields, ok := structuredFields(res.StructuredContent); ok {
		if k, ok := fields["errorKind"].(string); ok {
			kind = k
		}
		if m, ok := fields["message"].(string); ok && m != "" {
			message = m
		}
	}
	if message == "" {
		message = "engine reported an error without details"
	}

	switch kind {
	case errorKindInvalidBinding:
		return failure.Expected(failure.CategoryInvalidInput, fmt.Errorf("%w: %s", ErrInvalidBinding, message))
	case errorKindValidation:
		return failure.Expected(failure.CategoryValidation, fmt.Errorf("%w: %s", ErrValidation, message))
	case errorKindTimeout:
		return failure.Expected(failure.CategoryTimeout, fmt.Errorf("engine timed out: %s", message))
	case errorKindUnavailable:
		return failure.Transient(failure.CategoryNetwork, fmt.Errorf("%w: %s", ErrUnavailable, message))
	default:
		return fmt.Errorf("%w: %s", ErrExecutionFailed, message)
	}
}

func outputFromResult(res *mcp.CallToolResult) (json.RawMessage, error) {
	if res.StructuredContent != nil {
		out, err := json.Marshal(res.StructuredContent)
		if err != nil {
			return nil, failure.Unknown(failure.CategoryMalformedResponse, fmt.Errorf("failed to encode engine output: %w", err))
		}
		return out, nil
	}

	text := strings.TrimSpace(resultText(res))
	if text == "" {
		return json.RawMessage(`{}`), nil
	}
	if json.Valid([]byte(text)) {
		return json.RawMessage(text), nil
	}

	out, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func resultText(res *mcp.CallToolResult) string {
	var parts []string
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func structuredFields(v any) (map[string]any, bool) {
	if v == nil {
		return nil, false
	}
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, false
	}
	return m, true
}

// IsEngineError reports whether err originated from the engine rather than
// from the transport.
func IsEngineError(err error) bool {
	return errors.Is(err, ErrInvalidBinding) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrExecutionFailed)
}
