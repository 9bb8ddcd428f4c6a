package testcase

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpchecker/wfeval/pkg/scheduler"
)

// Assertion checks one property of a finished run
type Assertion interface {
	Assert(t *testing.T, ctx *RunContext)
}

// RunSucceededAssertion checks that the command returned no error
type RunSucceededAssertion struct{}

func (a *RunSucceededAssertion) Assert(t *testing.T, ctx *RunContext) {
	t.Helper()
	require.NoError(t, ctx.CommandError, "expected wfeval run to succeed")
}

// RunFailedWithErrorAssertion checks the command error
type RunFailedWithErrorAssertion struct {
	Contains string
}

func (a *RunFailedWithErrorAssertion) Assert(t *testing.T, ctx *RunContext) {
	t.Helper()
	require.Error(t, ctx.CommandError, "expected wfeval run to fail")
	assert.Contains(t, ctx.CommandError.Error(), a.Contains)
}

// LayerCountsAssertion checks the outcome counts of one layer
type LayerCountsAssertion struct {
	Layer     int
	Succeeded int
	Failed    int
}

func (a *LayerCountsAssertion) Assert(t *testing.T, ctx *RunContext) {
	t.Helper()
	require.NotNil(t, ctx.Report, "expected a report")
	l := ctx.Report.Layer(a.Layer)
	require.NotNil(t, l, "layer %d missing from report", a.Layer)
	assert.Equal(t, a.Succeeded, l.Succeeded, "layer %d succeeded", a.Layer)
	assert.Equal(t, a.Failed, l.Failed, "layer %d failed", a.Layer)
}

// ItemFailedAssertion checks that an item failed with the given kind
type ItemFailedAssertion struct {
	Layer  int
	ItemID string
	Kind   string
}

func (a *ItemFailedAssertion) Assert(t *testing.T, ctx *RunContext) {
	t.Helper()
	require.NotNil(t, ctx.Report, "expected a report")
	l := ctx.Report.Layer(a.Layer)
	require.NotNil(t, l, "layer %d missing from report", a.Layer)

	for _, item := range l.Items {
		if item.ID != a.ItemID {
			continue
		}
		require.Equal(t, scheduler.StatusFailed, item.Status, "item %s", a.ItemID)
		require.NotNil(t, item.Failure, "item %s has no failure record", a.ItemID)
		assert.Equal(t, a.Kind, string(item.Failure.Kind), "item %s failure kind", a.ItemID)
		return
	}
	t.Errorf("item %s not found in layer %d", a.ItemID, a.Layer)
}

// UnknownErrorsAssertion checks the number of unknown errors
type UnknownErrorsAssertion struct {
	Count int
}

func (a *UnknownErrorsAssertion) Assert(t *testing.T, ctx *RunContext) {
	t.Helper()
	require.NotNil(t, ctx.Report, "expected a report")
	assert.Len(t, ctx.Report.UnknownErrors, a.Count)
}

// PipelineSuccessRateAssertion checks the overall pipeline rate
type PipelineSuccessRateAssertion struct {
	Rate float64
}

func (a *PipelineSuccessRateAssertion) Assert(t *testing.T, ctx *RunContext) {
	t.Helper()
	require.NotNil(t, ctx.Report, "expected a report")
	assert.InDelta(t, a.Rate, ctx.Report.Overall.PipelineSuccessRate, 1e-9)
}

// EngineCallsAssertion checks how many graphs the engine ran
type EngineCallsAssertion struct {
	Times int
}

func (a *EngineCallsAssertion) Assert(t *testing.T, ctx *RunContext) {
	t.Helper()
	if a.Times == 0 && ctx.Engine == nil {
		return
	}
	require.NotNil(t, ctx.Engine, "no mock engine configured")
	assert.Equal(t, a.Times, ctx.Engine.CallCount())
}

// LLMRequestsAssertion checks how many requests the mock model received
type LLMRequestsAssertion struct {
	Times int
}

func (a *LLMRequestsAssertion) Assert(t *testing.T, ctx *RunContext) {
	t.Helper()
	assert.Equal(t, a.Times, ctx.LLMServer.RequestCount())
}

// OutputContainsAssertion checks the command output
type OutputContainsAssertion struct {
	Substring string
}

func (a *OutputContainsAssertion) Assert(t *testing.T, ctx *RunContext) {
	t.Helper()
	if !strings.Contains(ctx.CommandOutput, a.Substring) {
		t.Errorf("expected output to contain %q, got:\n%s", a.Substring, ctx.CommandOutput)
	}
}

// OutputMatchesAssertion checks the command output against a regex
type OutputMatchesAssertion struct {
	Pattern string
}

func (a *OutputMatchesAssertion) Assert(t *testing.T, ctx *RunContext) {
	t.Helper()
	assert.Regexp(t, regexp.MustCompile(a.Pattern), ctx.CommandOutput)
}
