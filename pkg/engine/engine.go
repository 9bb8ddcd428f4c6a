// Package engine executes workflow graphs through an external execution engine
// reached over MCP.
package engine

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mcpchecker/wfeval/pkg/workflow"
)

// ToolName is the MCP tool an execution engine exposes.
const ToolName = "execute_workflow"

var (
	// ErrInvalidBinding is returned when the inputs do not fit the graph.
	ErrInvalidBinding = errors.New("invalid input binding")
	// ErrValidation is returned when the engine rejects the graph.
	ErrValidation = errors.New("workflow validation failed")
	// ErrUnavailable is returned when the engine is temporarily unable to run.
	ErrUnavailable = errors.New("execution engine unavailable")
	// ErrExecutionFailed is returned for any other engine side failure.
	ErrExecutionFailed = errors.New("workflow execution failed")
)

// Engine runs a graph with one bound input set and returns its output. It must
// honor ctx cancellation.
type Engine interface {
	Execute(ctx context.Context, graph *workflow.Graph, inputs map[string]any) (json.RawMessage, error)
}

// Error kinds carried in the structured content of a failed tool call.
const (
	errorKindInvalidBinding = "invalid_binding"
	errorKindValidation     = "validation"
	errorKindTimeout        = "timeout"
	errorKindUnavailable    = "unavailable"
	errorKindExecution      = "execution_error"
)

func errorKindOf(err error) string {
	switch {
	case errors.Is(err, ErrInvalidBinding):
		return errorKindInvalidBinding
	case errors.Is(err, ErrValidation):
		return errorKindValidation
	case errors.Is(err, context.DeadlineExceeded):
		return errorKindTimeout
	case errors.Is(err, ErrUnavailable):
		return errorKindUnavailable
	default:
		return errorKindExecution
	}
}
