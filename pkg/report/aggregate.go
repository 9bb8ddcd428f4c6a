package report

import (
	"encoding/json"
	"slices"
	"time"

	"k8s.io/utils/ptr"

	"github.com/mcpchecker/wfeval/pkg/failure"
	"github.com/mcpchecker/wfeval/pkg/layer"
	"github.com/mcpchecker/wfeval/pkg/scheduler"
)

const (
	minGenerationRate    = 0.8
	maxExecutionFailRate = 0.3
	minQualityScore      = 6.0
)

const (
	RecommendGeneration = "Low workflow generation success rate. Consider improving task planning logic."
	RecommendExecution  = "High execution failure rate. Review workflow execution logic and error handling."
	RecommendQuality    = "Low average output quality. Consider improving agent prompts and output validation."
	RecommendNone       = "Evaluation results look good! Continue monitoring performance."
)

// Metadata describes the run that produced a report.
type Metadata struct {
	RunID          string          `json:"runId"`
	Timestamp      time.Time       `json:"timestamp"`
	Duration       float64         `json:"totalExecutionTime"`
	LayersExecuted []int           `json:"layersExecuted"`
	Config         json.RawMessage `json:"config,omitempty"`
}

type LayerSummary struct {
	Layer            int     `json:"layer"`
	Name             string  `json:"name"`
	Total            int     `json:"total"`
	Succeeded        int     `json:"succeeded"`
	Failed           int     `json:"failed"`
	SuccessRate      float64 `json:"successRate"`
	ExpectedFailures int     `json:"expectedFailures"`
	UnknownFailures  int     `json:"unknownFailures"`
}

type ErrorDistribution struct {
	ByKind     map[failure.Kind]int     `json:"byKind"`
	ByCategory map[failure.Category]int `json:"byCategory"`
}

type Overall struct {
	TotalItems          int                `json:"totalTestCases"`
	WorkflowsGenerated  int                `json:"workflowsGenerated"`
	WorkflowsExecuted   int                `json:"workflowsExecuted"`
	OutputEvaluations   int                `json:"outputEvaluations"`
	PipelineSuccessRate float64            `json:"pipelineSuccessRate"`
	AverageQualityScore *float64           `json:"averageQualityScore,omitempty"`
	DimensionAverages   map[string]float64 `json:"dimensionAverages,omitempty"`
	Errors              ErrorDistribution  `json:"errorDistribution"`
}

// UnknownErrorDetail is the full detail of one unknown error.
type UnknownErrorDetail struct {
	Layer   int    `json:"layer"`
	ItemID  string `json:"itemId"`
	Module  string `json:"module"`
	Type    string `json:"errorType"`
	Message string `json:"message"`
	Trace   string `json:"trace"`
}

// Report is the comprehensive evaluation report.
type Report struct {
	Metadata        Metadata             `json:"evaluationMetadata"`
	Layers          []*LayerResult       `json:"layerResults"`
	Summaries       []LayerSummary       `json:"layerSummaries"`
	Overall         Overall              `json:"overallSummary"`
	UnknownErrors   []UnknownErrorDetail `json:"unknownErrors"`
	Recommendations []string             `json:"recommendations"`
}

// Layer returns the result of layer n, or nil.
func (r *Report) Layer(n int) *LayerResult {
	for _, l := range r.Layers {
		if l.Layer == n {
			return l
		}
	}
	return nil
}

// Aggregate builds a report from layer results. It does not modify results,
// leaves Metadata empty apart from the executed layers, and returns the same
// report for the same input.
func Aggregate(results []*LayerResult) *Report {
	layers := make([]*LayerResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			layers = append(layers, r)
		}
	}
	slices.SortStableFunc(layers, func(a, b *LayerResult) int { return a.Layer - b.Layer })

	rep := &Report{
		Layers:        layers,
		Summaries:     make([]LayerSummary, 0, len(layers)),
		UnknownErrors: []UnknownErrorDetail{},
		Overall: Overall{
			Errors: ErrorDistribution{
				ByKind:     map[failure.Kind]int{failure.KindExpected: 0, failure.KindUnknown: 0},
				ByCategory: map[failure.Category]int{},
			},
		},
	}

	for _, l := range layers {
		rep.Metadata.LayersExecuted = append(rep.Metadata.LayersExecuted, l.Layer)
		rep.Summaries = append(rep.Summaries, summarize(l))

		for _, item := range l.Items {
			if item.Status != scheduler.StatusFailed || item.Failure == nil {
				continue
			}
			rec := item.Failure
			rep.Overall.Errors.ByKind[rec.Kind]++
			rep.Overall.Errors.ByCategory[rec.Category]++
			if rec.Kind == failure.KindUnknown {
				rep.UnknownErrors = append(rep.UnknownErrors, UnknownErrorDetail{
					Layer:   l.Layer,
					ItemID:  item.ID,
					Module:  rec.Module,
					Type:    rec.Type,
					Message: rec.Message,
					Trace:   rec.Trace,
				})
			}
		}
	}

	structure := rep.Layer(layer.Structure)
	execution := rep.Layer(layer.Execution)
	quality := rep.Layer(layer.Quality)

	if len(layers) > 0 {
		rep.Overall.TotalItems = layers[0].Total
	}
	if structure != nil {
		rep.Overall.WorkflowsGenerated = structure.Succeeded
	}
	if execution != nil {
		rep.Overall.WorkflowsExecuted = execution.Succeeded
	}
	if quality != nil {
		rep.Overall.OutputEvaluations = quality.Succeeded
		rep.Overall.AverageQualityScore, rep.Overall.DimensionAverages = qualityAverages(quality)
	}

	switch {
	case structure != nil && execution != nil:
		if structure.Total > 0 {
			rep.Overall.PipelineSuccessRate = float64(execution.Succeeded) / float64(structure.Total)
		}
	case len(layers) > 0:
		rep.Overall.PipelineSuccessRate = layers[0].SuccessRate()
	}

	rep.Recommendations = recommendations(structure, execution, rep.Overall.AverageQualityScore)
	return rep
}

func summarize(l *LayerResult) LayerSummary {
	s := LayerSummary{
		Layer:       l.Layer,
		Name:        l.Name,
		Total:       l.Total,
		Succeeded:   l.Succeeded,
		Failed:      l.Failed,
		SuccessRate: l.SuccessRate(),
	}
	for _, item := range l.Items {
		if item.Failure == nil {
			continue
		}
		switch item.Failure.Kind {
		case failure.KindExpected:
			s.ExpectedFailures++
		case failure.KindUnknown:
			s.UnknownFailures++
		}
	}
	return s
}

// qualityAverages averages the overall and per-dimension scores over every
// successful layer 3 item. Payloads that do not decode are skipped.
func qualityAverages(l *LayerResult) (*float64, map[string]float64) {
	var (
		overall float64
		scored  int
		sums    = map[string]float64{}
		counts  = map[string]int{}
	)

	for _, item := range l.Items {
		if item.Status != scheduler.StatusSuccess {
			continue
		}
		payload, err := layer.QualityFromPayload(item.Payload)
		if err != nil {
			continue
		}
		overall += payload.OverallScore
		scored++
		for _, dim := range layer.Dimensions {
			if s, ok := payload.Dimensions[dim]; ok {
				sums[dim] += s.Average
				counts[dim]++
			}
		}
	}

	if scored == 0 {
		return nil, nil
	}

	dims := make(map[string]float64, len(counts))
	for _, dim := range layer.Dimensions {
		if counts[dim] > 0 {
			dims[dim] = sums[dim] / float64(counts[dim])
		}
	}
	return ptr.To(overall / float64(scored)), dims
}

func recommendations(structure, execution *LayerResult, quality *float64) []string {
	var recs []string
	if structure != nil && structure.Total > 0 && structure.SuccessRate() < minGenerationRate {
		recs = append(recs, RecommendGeneration)
	}
	if execution != nil && execution.Total > 0 && float64(execution.Failed) > float64(execution.Total)*maxExecutionFailRate {
		recs = append(recs, RecommendExecution)
	}
	if quality != nil && *quality < minQualityScore {
		recs = append(recs, RecommendQuality)
	}
	if len(recs) == 0 {
		recs = append(recs, RecommendNone)
	}
	return recs
}
