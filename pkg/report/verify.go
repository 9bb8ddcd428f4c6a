package report

// Thresholds are minimum values a report must meet. Zero rates always pass; a
// negative MaxUnknownErrors disables the unknown error check.
type Thresholds struct {
	PipelineSuccessRate float64
	LayerSuccessRate    float64
	QualityScore        float64
	MaxUnknownErrors    int
}

const (
	CheckPipelineSuccessRate = "pipeline success rate"
	CheckQualityScore        = "average quality score"
	CheckUnknownErrors       = "unknown errors"
)

// Check is the outcome of one threshold comparison.
type Check struct {
	Name      string
	Actual    float64
	Threshold float64
	Passed    bool
	// Skipped is set when the report has nothing to compare.
	Skipped bool
}

// Verify compares rep against t. Layer success rates are checked for every
// layer in the report.
func Verify(rep *Report, t Thresholds) ([]Check, bool) {
	checks := []Check{{
		Name:      CheckPipelineSuccessRate,
		Actual:    rep.Overall.PipelineSuccessRate,
		Threshold: t.PipelineSuccessRate,
		Passed:    rep.Overall.PipelineSuccessRate >= t.PipelineSuccessRate,
	}}

	for _, s := range rep.Summaries {
		checks = append(checks, Check{
			Name:      "layer " + s.Name + " success rate",
			Actual:    s.SuccessRate,
			Threshold: t.LayerSuccessRate,
			Passed:    s.SuccessRate >= t.LayerSuccessRate,
		})
	}

	quality := Check{Name: CheckQualityScore, Threshold: t.QualityScore}
	if rep.Overall.AverageQualityScore == nil {
		quality.Skipped = true
		quality.Passed = true
	} else {
		quality.Actual = *rep.Overall.AverageQualityScore
		quality.Passed = quality.Actual >= t.QualityScore
	}
	checks = append(checks, quality)

	unknown := Check{
		Name:      CheckUnknownErrors,
		Actual:    float64(len(rep.UnknownErrors)),
		Threshold: float64(t.MaxUnknownErrors),
		Passed:    true,
	}
	if t.MaxUnknownErrors >= 0 {
		unknown.Passed = len(rep.UnknownErrors) <= t.MaxUnknownErrors
	}
	checks = append(checks, unknown)

	passed := true
	for _, c := range checks {
		passed = passed && c.Passed
	}
	return checks, passed
}
