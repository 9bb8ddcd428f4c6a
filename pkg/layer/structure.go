package layer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mcpchecker/wfeval/pkg/failure"
	"github.com/mcpchecker/wfeval/pkg/generator"
	"github.com/mcpchecker/wfeval/pkg/llmjudge"
	"github.com/mcpchecker/wfeval/pkg/retry"
	"github.com/mcpchecker/wfeval/pkg/scheduler"
	"github.com/mcpchecker/wfeval/pkg/workflow"
)

// StructureGate fails items whose structure score is below MinScore.
type StructureGate struct {
	Enabled  bool    `json:"enabled"`
	MinScore float64 `json:"minScore"`
}

// StructurePayload is the layer 1 output for one workflow.
type StructurePayload struct {
	WorkflowID         string                   `json:"workflowId"`
	WorkflowName       string                   `json:"workflowName,omitempty"`
	Workflow           json.RawMessage          `json:"workflow"`
	Evaluation         *llmjudge.StructureScore `json:"evaluation,omitempty"`
	JudgeError         *failure.Record          `json:"judgeError,omitempty"`
	GenerationAttempts int                      `json:"generationAttempts"`
	Timestamp          time.Time                `json:"timestamp"`
}

type StructureRunner struct {
	Generator generator.Generator
	Judge     llmjudge.Judge
	Retry     retry.Policy
	Gate      StructureGate
	Logger    *zap.Logger
}

var _ Runner = &StructureRunner{}

func (r *StructureRunner) Layer() int   { return Structure }
func (r *StructureRunner) Name() string { return Names[Structure] }

func (r *StructureRunner) Process(ctx context.Context, item *scheduler.Item) failure.Result[json.RawMessage] {
	module := Module(Structure)
	logger := loggerOrNop(r.Logger).With(zap.String("item", item.ID))
	spec := item.Spec

	graph, gen, err := retry.Do(ctx, r.Retry, logger, "generate", func(ctx context.Context) (*workflow.Graph, error) {
		g, err := r.Generator.Generate(ctx, spec.Requirement, spec.Inputs, spec.Outputs)
		return g, failure.WithCategory(failure.CategoryGeneration, err)
	})
	generated := failure.Wrap(module, graph, annotate(err, "failed to generate workflow"))
	if !generated.Ok() {
		return propagate(generated, gen.Attempts)
	}

	canonical, err := generated.Value.Canonical()
	if err != nil {
		return fail(module, gen.Attempts, err)
	}

	payload := &StructurePayload{
		WorkflowID:         item.ID,
		WorkflowName:       spec.Name,
		Workflow:           canonical,
		GenerationAttempts: gen.Attempts,
		Timestamp:          time.Now().UTC(),
	}

	score, judged, err := retry.Do(ctx, r.Retry, logger, "score_structure", func(ctx context.Context) (*llmjudge.StructureScore, error) {
		return r.Judge.ScoreStructure(ctx, canonical, spec.Requirement)
	})
	scored := failure.Wrap(module+".judge", score, err)
	switch scored.Kind() {
	case failure.KindExpected:
		logger.Info("structure judge declined", zap.Error(err))
	case failure.KindUnknown:
		logger.Warn("structure judge failed", zap.String("category", string(scored.Failure.Category)), zap.Error(err))
	}
	if !scored.Ok() {
		payload.JudgeError = scored.Failure.WithAttempts(judged.Attempts)
		if r.Gate.Enabled {
			return fail(module, judged.Attempts, annotate(err, "failed to score workflow structure"))
		}
		return encode(module, payload)
	}
	payload.Evaluation = score

	if r.Gate.Enabled && score.Score < r.Gate.MinScore {
		return fail(module, gen.Attempts, failure.Expectedf(failure.CategoryStructureGate,
			"structure score %.2f is below the gate threshold %.2f", score.Score, r.Gate.MinScore))
	}

	return encode(module, payload)
}

// GraphFromPayload extracts the generated graph from a layer 1 payload.
func GraphFromPayload(data json.RawMessage) (*workflow.Graph, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("no structure result for this workflow")
	}
	payload := &StructurePayload{}
	if err := json.Unmarshal(data, payload); err != nil {
		return nil, fmt.Errorf("failed to decode structure result: %w", err)
	}
	return workflow.GraphFromJSON(payload.Workflow)
}

func loggerOrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
