package layer

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mcpchecker/wfeval/pkg/llmjudge"
	"github.com/mcpchecker/wfeval/pkg/scheduler"
	"github.com/mcpchecker/wfeval/pkg/workflow"
)

type fakeGenerator struct {
	mu    sync.Mutex
	calls int
	errs  []error
	graph *workflow.Graph
}

func (g *fakeGenerator) Generate(ctx context.Context, requirement string, inputs, outputs []workflow.FieldDecl) (*workflow.Graph, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if len(g.errs) > 0 {
		err := g.errs[0]
		g.errs = g.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	if g.graph != nil {
		return g.graph, nil
	}
	return &workflow.Graph{
		Goal:    requirement,
		Inputs:  inputs,
		Outputs: outputs,
		Nodes:   []workflow.Node{{Name: "step", Inputs: inputs, Outputs: outputs}},
	}, nil
}

type fakeJudge struct {
	mu          sync.Mutex
	structure   *llmjudge.StructureScore
	structErr   error
	outputs     []*llmjudge.OutputScore
	outputErr   error
	outputCalls int
}

func (j *fakeJudge) ScoreStructure(ctx context.Context, workflowJSON json.RawMessage, requirement string) (*llmjudge.StructureScore, error) {
	if j.structErr != nil {
		return nil, j.structErr
	}
	if j.structure != nil {
		return j.structure, nil
	}
	return &llmjudge.StructureScore{Score: 8, Integrity: 8, IOMatching: 8, Decomposition: 8}, nil
}

func (j *fakeJudge) ScoreOutput(ctx context.Context, output json.RawMessage, requirement string) (*llmjudge.OutputScore, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.outputErr != nil {
		return nil, j.outputErr
	}
	i := j.outputCalls
	j.outputCalls++
	if len(j.outputs) == 0 {
		return &llmjudge.OutputScore{Coherence: 7, Diversity: 7, Usefulness: 7, Completeness: llmjudge.Completeness{Complete: true, Score: 7}}, nil
	}
	return j.outputs[min(i, len(j.outputs)-1)], nil
}

func (j *fakeJudge) ModelName() string { return "fake-judge" }

type engineFunc func(ctx context.Context, graph *workflow.Graph, inputs map[string]any) (json.RawMessage, error)

func (f engineFunc) Execute(ctx context.Context, graph *workflow.Graph, inputs map[string]any) (json.RawMessage, error) {
	return f(ctx, graph, inputs)
}

func testSpec() *workflow.Spec {
	return &workflow.Spec{
		ID:          "wf-1",
		Name:        "summarize",
		Requirement: "Summarize the given article",
		Inputs: []workflow.FieldDecl{
			{Name: "article", Type: workflow.KindString},
			{Name: "limit", Type: workflow.KindNumber},
		},
		Outputs: []workflow.FieldDecl{{Name: "summary", Type: workflow.KindString}},
	}
}

func structureItem(t testing.TB, spec *workflow.Spec) *scheduler.Item {
	graph := &workflow.Graph{
		Goal:    spec.Requirement,
		Inputs:  spec.Inputs,
		Outputs: spec.Outputs,
		Nodes:   []workflow.Node{{Name: "step", Inputs: spec.Inputs, Outputs: spec.Outputs}},
	}
	canonical, err := graph.Canonical()
	require.NoError(t, err)
	prior, err := json.Marshal(&StructurePayload{WorkflowID: spec.ID, Workflow: canonical})
	require.NoError(t, err)
	return &scheduler.Item{ID: spec.ID, Layer: Execution, Spec: spec, Prior: prior}
}
