// Package generator turns a workflow requirement into a workflow graph.
package generator

import (
	"context"
	"errors"

	"github.com/mcpchecker/wfeval/pkg/workflow"
)

var (
	// ErrInvalidRequirement is returned when the requirement cannot be planned.
	ErrInvalidRequirement = errors.New("invalid workflow requirement")
	// ErrInvalidWorkflow is returned when the generated graph fails validation.
	ErrInvalidWorkflow = errors.New("generated workflow is invalid")
)

// Generator produces a workflow graph for a requirement. Declared failures wrap
// ErrInvalidRequirement or ErrInvalidWorkflow in a *failure.ExpectedError.
type Generator interface {
	Generate(ctx context.Context, requirement string, inputs, outputs []workflow.FieldDecl) (*workflow.Graph, error)
}
