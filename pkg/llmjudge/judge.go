// Package llmjudge scores generated workflows and their outputs with an LLM.
package llmjudge

import (
	"context"
	"encoding/json"
	"fmt"
)

// StructureScore is the judge's assessment of a generated workflow graph. All
// scores are on a 0-10 scale.
type StructureScore struct {
	Score         float64  `json:"score"`
	Integrity     float64  `json:"structuralIntegrity"`
	IOMatching    float64  `json:"inputOutputMatching"`
	Decomposition float64  `json:"taskDecomposition"`
	Issues        []string `json:"issues,omitempty"`
	Reasoning     string   `json:"reasoning,omitempty"`
}

// Completeness is the judge's check of an output against the requirement's goals.
type Completeness struct {
	Complete     bool     `json:"complete"`
	MissingGoals []string `json:"missingGoals,omitempty"`
	Score        float64  `json:"score"`
}

// OutputScore is the judge's assessment of one workflow output.
type OutputScore struct {
	Coherence    float64      `json:"coherence"`
	Diversity    float64      `json:"diversity"`
	Usefulness   float64      `json:"usefulness"`
	Completeness Completeness `json:"completeness"`
	Reasoning    string       `json:"reasoning,omitempty"`
}

// Overall is the mean of the three open-ended dimensions and the completeness score.
func (o *OutputScore) Overall() float64 {
	return (o.Coherence + o.Diversity + o.Usefulness + o.Completeness.Score) / 4
}

// Dimensions returns the per-dimension scores keyed by dimension name.
func (o *OutputScore) Dimensions() map[string]float64 {
	return map[string]float64{
		DimensionCoherence:    o.Coherence,
		DimensionDiversity:    o.Diversity,
		DimensionUsefulness:   o.Usefulness,
		DimensionCompleteness: o.Completeness.Score,
	}
}

const (
	DimensionCoherence    = "coherence"
	DimensionDiversity    = "diversity"
	DimensionUsefulness   = "usefulness"
	DimensionCompleteness = "completeness"
)

// Judge scores workflows and outputs. Transient transport failures are returned as
// retryable failures; unparseable responses wrap ErrMalformedResponse.
type Judge interface {
	ScoreStructure(ctx context.Context, workflowJSON json.RawMessage, requirement string) (*StructureScore, error)
	ScoreOutput(ctx context.Context, output json.RawMessage, requirement string) (*OutputScore, error)
	ModelName() string
}

// New builds the judge selected by cfg.Provider.
func New(ctx context.Context, cfg Config) (Judge, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Provider {
	case ProviderOpenAI:
		return NewOpenAIJudge(cfg)
	case ProviderGemini:
		return NewGeminiJudge(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown judge provider '%s'", cfg.Provider)
	}
}
