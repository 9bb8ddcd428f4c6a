package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	evalengine "github.com/mcpchecker/wfeval/pkg/engine"
	"github.com/mcpchecker/wfeval/pkg/workflow"
)

// EchoOutputs produces a string for every declared graph output built from the
// goal and the bound inputs.
func EchoOutputs() evalengine.ExecuteFunc {
	return func(_ context.Context, graph *workflow.Graph, inputs map[string]any) (json.RawMessage, error) {
		out := make(map[string]any, len(graph.Outputs))
		for _, o := range graph.Outputs {
			out[o.Name] = fmt.Sprintf("%s for %q (%d inputs)", o.Name, graph.Goal, len(inputs))
		}
		return json.Marshal(out)
	}
}

// Rule decides the outcome for the graphs it matches.
type Rule struct {
	Match func(graph *workflow.Graph) bool
	Err   error
}

// GoalContains matches graphs whose goal contains substring.
func GoalContains(substring string) func(*workflow.Graph) bool {
	return func(g *workflow.Graph) bool {
		return strings.Contains(g.Goal, substring)
	}
}

// FailWith returns err for matching graphs and runs next for the rest.
func FailWith(next evalengine.ExecuteFunc, rules ...Rule) evalengine.ExecuteFunc {
	if next == nil {
		next = EchoOutputs()
	}
	return func(ctx context.Context, graph *workflow.Graph, inputs map[string]any) (json.RawMessage, error) {
		for _, r := range rules {
			if r.Match(graph) {
				return nil, r.Err
			}
		}
		return next(ctx, graph, inputs)
	}
}

// Rejects reports a validation failure for matching graphs.
func Rejects(match func(*workflow.Graph) bool, reason string) Rule {
	return Rule{Match: match, Err: fmt.Errorf("%w: %s", evalengine.ErrValidation, reason)}
}

// Crashes reports an undeclared engine failure for matching graphs.
func Crashes(match func(*workflow.Graph) bool, reason string) Rule {
	return Rule{Match: match, Err: fmt.Errorf("%s", reason)}
}
