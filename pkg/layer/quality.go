package layer

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/mcpchecker/wfeval/pkg/failure"
	"github.com/mcpchecker/wfeval/pkg/llmjudge"
	"github.com/mcpchecker/wfeval/pkg/retry"
	"github.com/mcpchecker/wfeval/pkg/scheduler"
)

// Dimensions lists the quality dimensions in report order.
var Dimensions = []string{
	llmjudge.DimensionCoherence,
	llmjudge.DimensionDiversity,
	llmjudge.DimensionUsefulness,
	llmjudge.DimensionCompleteness,
}

// OutputEvaluation is the judge's assessment of one execution output.
type OutputEvaluation struct {
	InputSet int                   `json:"inputSet"`
	Input    map[string]any        `json:"input,omitempty"`
	Output   json.RawMessage       `json:"output"`
	Scores   *llmjudge.OutputScore `json:"scores"`
	Overall  float64               `json:"overallScore"`
	Attempts int                   `json:"attempts"`
}

// DimensionStats aggregates one dimension across every evaluated output.
type DimensionStats struct {
	Average float64 `json:"averageScore"`
	Min     float64 `json:"minScore"`
	Max     float64 `json:"maxScore"`
	Spread  float64 `json:"scoreSpread"`
	Samples int     `json:"samples"`
}

// QualityPayload is the layer 3 output for one workflow.
type QualityPayload struct {
	WorkflowID   string                    `json:"workflowId"`
	WorkflowName string                    `json:"workflowName,omitempty"`
	Evaluations  []OutputEvaluation        `json:"individualEvaluations"`
	Dimensions   map[string]DimensionStats `json:"aggregatedScores"`
	OverallScore float64                   `json:"overallAverageScore"`
	Assessment   string                    `json:"qualityAssessment"`
	Timestamp    time.Time                 `json:"timestamp"`
}

type QualityRunner struct {
	Judge  llmjudge.Judge
	Retry  retry.Policy
	Logger *zap.Logger
}

var _ Runner = &QualityRunner{}

func (r *QualityRunner) Layer() int   { return Quality }
func (r *QualityRunner) Name() string { return Names[Quality] }

func (r *QualityRunner) Process(ctx context.Context, item *scheduler.Item) failure.Result[json.RawMessage] {
	module := Module(Quality)
	logger := loggerOrNop(r.Logger).With(zap.String("item", item.ID))

	execution, err := ExecutionFromPayload(item.Prior)
	if err != nil {
		return fail(module, 0, failure.Unknown(failure.CategoryInternal, err))
	}

	runs := execution.SuccessfulRuns()
	if len(runs) == 0 {
		return fail(module, 0, failure.Expectedf(failure.CategoryInvalidInput, "workflow has no successful executions to evaluate"))
	}

	payload := &QualityPayload{
		WorkflowID:   item.ID,
		WorkflowName: item.Spec.Name,
		Evaluations:  make([]OutputEvaluation, 0, len(runs)),
		Timestamp:    time.Now().UTC(),
	}

	for _, run := range runs {
		score, outcome, err := retry.Do(ctx, r.Retry, logger, "score_output", func(ctx context.Context) (*llmjudge.OutputScore, error) {
			return r.Judge.ScoreOutput(ctx, run.Output, item.Spec.Requirement)
		})
		scored := failure.Wrap(module, score, annotate(err, "failed to score output of input set %d", run.InputSet))
		if !scored.Ok() {
			logger.Warn("output judge failed", zap.Int("inputSet", run.InputSet), zap.String("kind", string(scored.Kind())), zap.Error(err))
			return propagate(scored, outcome.Attempts)
		}

		payload.Evaluations = append(payload.Evaluations, OutputEvaluation{
			InputSet: run.InputSet,
			Input:    run.Input,
			Output:   run.Output,
			Scores:   score,
			Overall:  score.Overall(),
			Attempts: outcome.Attempts,
		})
	}

	payload.Dimensions = AggregateDimensions(payload.Evaluations)
	payload.OverallScore = overallAverage(payload.Dimensions)
	payload.Assessment = Assessment(payload.OverallScore)

	return encode(module, payload)
}

// AggregateDimensions computes per-dimension statistics over evals.
func AggregateDimensions(evals []OutputEvaluation) map[string]DimensionStats {
	stats := make(map[string]DimensionStats, len(Dimensions))
	for _, dim := range Dimensions {
		s := DimensionStats{Min: math.Inf(1), Max: math.Inf(-1)}
		var sum float64
		for _, e := range evals {
			if e.Scores == nil {
				continue
			}
			v := e.Scores.Dimensions()[dim]
			sum += v
			s.Samples++
			s.Min = math.Min(s.Min, v)
			s.Max = math.Max(s.Max, v)
		}
		if s.Samples == 0 {
			continue
		}
		s.Average = sum / float64(s.Samples)
		s.Spread = s.Max - s.Min
		stats[dim] = s
	}
	return stats
}

func overallAverage(stats map[string]DimensionStats) float64 {
	if len(stats) == 0 {
		return 0
	}
	var sum float64
	for _, dim := range Dimensions {
		sum += stats[dim].Average
	}
	return sum / float64(len(stats))
}

// Assessment maps an overall score to a qualitative label.
func Assessment(score float64) string {
	switch {
	case score >= 8:
		return "Excellent"
	case score >= 7:
		return "Good"
	case score >= 6:
		return "Satisfactory"
	case score >= 5:
		return "Below Average"
	default:
		return "Poor"
	}
}

// QualityFromPayload decodes a layer 3 payload.
func QualityFromPayload(data json.RawMessage) (*QualityPayload, error) {
	payload := &QualityPayload{}
	if err := json.Unmarshal(data, payload); err != nil {
		return nil, fmt.Errorf("failed to decode quality result: %w", err)
	}
	return payload, nil
}
