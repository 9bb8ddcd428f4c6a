package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpchecker/wfeval/pkg/failure"
	"github.com/mcpchecker/wfeval/pkg/layer"
	"github.com/mcpchecker/wfeval/pkg/llmjudge"
	"github.com/mcpchecker/wfeval/pkg/scheduler"
)

func expectedFailure(category failure.Category) *failure.Record {
	return &failure.Record{Kind: failure.KindExpected, Category: category, Module: "layer_1", Message: string(category)}
}

func unknownFailure(module string) *failure.Record {
	return &failure.Record{Kind: failure.KindUnknown, Category: failure.CategoryInternal, Module: module, Type: "*errors.errorString", Message: "boom", Trace: "error chain:\n  boom"}
}

func items(layerN int, statuses ...any) []*scheduler.Item {
	out := make([]*scheduler.Item, 0, len(statuses))
	for i, s := range statuses {
		item := &scheduler.Item{ID: string(rune('a' + i)), Layer: layerN}
		switch v := s.(type) {
		case json.RawMessage:
			item.Status = scheduler.StatusSuccess
			item.Output = v
		case *failure.Record:
			item.Status = scheduler.StatusFailed
			item.Failure = v
		}
		out = append(out, item)
	}
	return out
}

func qualityPayload(t *testing.T, overall float64, coherence float64) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(&layer.QualityPayload{
		OverallScore: overall,
		Dimensions: map[string]layer.DimensionStats{
			llmjudge.DimensionCoherence: {Average: coherence, Min: coherence, Max: coherence, Samples: 1},
		},
	})
	require.NoError(t, err)
	return data
}

var success = json.RawMessage(`{}`)

func TestNewLayerResult(t *testing.T) {
	r := NewLayerResult(1, "structure", items(1, success, expectedFailure(failure.CategoryInvalidInput), unknownFailure("layer_1"), success), 2*time.Second)

	assert.Equal(t, 4, r.Total)
	assert.Equal(t, 2, r.Succeeded)
	assert.Equal(t, 2, r.Failed)
	assert.Equal(t, 1, r.FailuresByKind[failure.KindExpected])
	assert.Equal(t, 1, r.FailuresByKind[failure.KindUnknown])
	successful := r.Successful()
	assert.Len(t, successful, 2)
	assert.Contains(t, successful, "a")
	assert.Contains(t, successful, "d")
	assert.InDelta(t, 0.5, r.SuccessRate(), 1e-9)
	assert.InDelta(t, 2.0, r.Duration, 1e-9)
}

func TestAggregate(t *testing.T) {
	structure := NewLayerResult(1, "structure", items(1, success, success, success, success, expectedFailure(failure.CategoryInvalidInput)), time.Second)
	execution := NewLayerResult(2, "execution", items(2, success, success, unknownFailure("layer_2"), expectedFailure(failure.CategoryTimeout)), time.Second)
	quality := NewLayerResult(3, "output", items(3, qualityPayload(t, 8, 9), qualityPayload(t, 4, 5)), time.Second)

	rep := Aggregate([]*LayerResult{quality, structure, execution})

	assert.Equal(t, []int{1, 2, 3}, rep.Metadata.LayersExecuted)
	require.Len(t, rep.Summaries, 3)
	assert.Equal(t, 1, rep.Summaries[0].ExpectedFailures)
	assert.Equal(t, 1, rep.Summaries[1].UnknownFailures)
	assert.Equal(t, 1, rep.Summaries[1].ExpectedFailures)

	assert.Equal(t, 5, rep.Overall.TotalItems)
	assert.Equal(t, 4, rep.Overall.WorkflowsGenerated)
	assert.Equal(t, 2, rep.Overall.WorkflowsExecuted)
	assert.Equal(t, 2, rep.Overall.OutputEvaluations)
	assert.InDelta(t, 0.4, rep.Overall.PipelineSuccessRate, 1e-9)
	require.NotNil(t, rep.Overall.AverageQualityScore)
	assert.InDelta(t, 6.0, *rep.Overall.AverageQualityScore, 1e-9)
	assert.InDelta(t, 7.0, rep.Overall.DimensionAverages[llmjudge.DimensionCoherence], 1e-9)

	assert.Equal(t, 2, rep.Overall.Errors.ByKind[failure.KindExpected])
	assert.Equal(t, 1, rep.Overall.Errors.ByKind[failure.KindUnknown])
	assert.Equal(t, 1, rep.Overall.Errors.ByCategory[failure.CategoryTimeout])
	assert.Equal(t, 1, rep.Overall.Errors.ByCategory[failure.CategoryInternal])

	require.Len(t, rep.UnknownErrors, 1)
	assert.Equal(t, UnknownErrorDetail{
		Layer:   2,
		ItemID:  "c",
		Module:  "layer_2",
		Type:    "*errors.errorString",
		Message: "boom",
		Trace:   "error chain:\n  boom",
	}, rep.UnknownErrors[0])

	// 2 of 4 executions failed, which is above 30%.
	assert.Equal(t, []string{RecommendExecution}, rep.Recommendations)
}

func TestAggregateIsIdempotent(t *testing.T) {
	results := []*LayerResult{
		NewLayerResult(2, "execution", items(2, success, unknownFailure("layer_2")), time.Second),
		NewLayerResult(1, "structure", items(1, success, success, expectedFailure(failure.CategoryValidation)), time.Second),
		NewLayerResult(3, "output", items(3, qualityPayload(t, 5, 5)), time.Second),
	}
	before, err := json.Marshal(results)
	require.NoError(t, err)

	first := Aggregate(results)
	second := Aggregate(results)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Aggregate() is not deterministic (-first +second):\n%s", diff)
	}

	after, err := json.Marshal(results)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after), "Aggregate must not modify its input")
	assert.Equal(t, 2, results[0].Layer, "Aggregate must not reorder its input")
}

func TestPipelineSuccessRate(t *testing.T) {
	tt := map[string]struct {
		results  []*LayerResult
		expected float64
	}{
		"no layers": {
			results:  nil,
			expected: 0,
		},
		"structure only": {
			results:  []*LayerResult{NewLayerResult(1, "structure", items(1, success, expectedFailure(failure.CategoryValidation)), 0)},
			expected: 0.5,
		},
		"execution only": {
			results:  []*LayerResult{NewLayerResult(2, "execution", items(2, success, success, success, expectedFailure(failure.CategoryTimeout)), 0)},
			expected: 0.75,
		},
		"structure and execution": {
			results: []*LayerResult{
				NewLayerResult(1, "structure", items(1, success, success, success, success), 0),
				NewLayerResult(2, "execution", items(2, success, expectedFailure(failure.CategoryTimeout), expectedFailure(failure.CategoryTimeout), expectedFailure(failure.CategoryTimeout)), 0),
			},
			expected: 0.25,
		},
	}

	for tn, tc := range tt {
		t.Run(tn, func(t *testing.T) {
			rep := Aggregate(tc.results)
			assert.InDelta(t, tc.expected, rep.Overall.PipelineSuccessRate, 1e-9)
		})
	}
}

func TestRecommendations(t *testing.T) {
	tt := map[string]struct {
		results  []*LayerResult
		expected []string
	}{
		"healthy": {
			results: []*LayerResult{
				NewLayerResult(1, "structure", items(1, success, success, success, success, success), 0),
				NewLayerResult(2, "execution", items(2, success, success, success, success, success), 0),
			},
			expected: []string{RecommendNone},
		},
		"low generation": {
			results: []*LayerResult{
				NewLayerResult(1, "structure", items(1, success, expectedFailure(failure.CategoryValidation)), 0),
			},
			expected: []string{RecommendGeneration},
		},
		"low quality": {
			results: []*LayerResult{
				NewLayerResult(3, "output", items(3, qualityPayload(t, 4, 4)), 0),
			},
			expected: []string{RecommendQuality},
		},
		"quality layer without scores": {
			results: []*LayerResult{
				NewLayerResult(3, "output", items(3, unknownFailure("layer_3")), 0),
			},
			expected: []string{RecommendNone},
		},
	}

	for tn, tc := range tt {
		t.Run(tn, func(t *testing.T) {
			assert.Equal(t, tc.expected, Aggregate(tc.results).Recommendations)
		})
	}
}

func TestStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()

	lr := NewLayerResult(1, "structure", items(1, success, expectedFailure(failure.CategoryValidation)), time.Second)
	path, err := WriteLayerResult(dir, lr)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "results", "layer_1_structure_evaluation.json"), path)

	loaded, err := LoadLayer(dir, 1, "structure")
	require.NoError(t, err)
	assert.Equal(t, lr.Successful(), loaded.Successful())
	assert.Equal(t, lr.FailuresByKind, loaded.FailuresByKind)

	missing, err := LoadLayer(dir, 2, "execution")
	require.NoError(t, err)
	assert.Nil(t, missing)

	older := Aggregate([]*LayerResult{lr})
	older.Metadata.Timestamp = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	newer := Aggregate([]*LayerResult{lr})
	newer.Metadata.Timestamp = older.Metadata.Timestamp.Add(time.Hour)
	newer.Metadata.RunID = "newer"

	_, err = WriteReport(dir, older)
	require.NoError(t, err)
	newerPath, err := WriteReport(dir, newer)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "results", "comprehensive_evaluation_report_20260102_040405.000000000.json"), newerPath)

	latest, err := LatestReport(dir)
	require.NoError(t, err)
	assert.Equal(t, newerPath, latest)

	rep, err := Load(latest)
	require.NoError(t, err)
	assert.Equal(t, "newer", rep.Metadata.RunID)
	assert.Equal(t, newer.Overall.PipelineSuccessRate, rep.Overall.PipelineSuccessRate)

	files, err := Files(dir)
	require.NoError(t, err)
	assert.Len(t, files, 3)

	require.NoError(t, Clean(dir))
	files, err = Files(dir)
	require.NoError(t, err)
	assert.Empty(t, files)

	_, err = LatestReport(dir)
	assert.Error(t, err)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o644))

	_, err := Load(bad)
	assert.ErrorContains(t, err, "failed to parse report JSON")

	_, err = LoadLayerResult(bad)
	assert.ErrorContains(t, err, "failed to parse layer results")

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestVerify(t *testing.T) {
	rep := Aggregate([]*LayerResult{
		NewLayerResult(1, "structure", items(1, success, success, success, expectedFailure(failure.CategoryValidation)), 0),
		NewLayerResult(2, "execution", items(2, success, success, unknownFailure("layer_2")), 0),
	})

	tt := map[string]struct {
		thresholds Thresholds
		expected   bool
	}{
		"no thresholds": {
			thresholds: Thresholds{MaxUnknownErrors: -1},
			expected:   true,
		},
		"pipeline met": {
			thresholds: Thresholds{PipelineSuccessRate: 0.5, MaxUnknownErrors: 1},
			expected:   true,
		},
		"pipeline not met": {
			thresholds: Thresholds{PipelineSuccessRate: 0.6, MaxUnknownErrors: -1},
			expected:   false,
		},
		"layer rate not met": {
			thresholds: Thresholds{LayerSuccessRate: 0.7, MaxUnknownErrors: -1},
			expected:   false,
		},
		"unknown errors not allowed": {
			thresholds: Thresholds{},
			expected:   false,
		},
		"quality skipped without layer 3": {
			thresholds: Thresholds{QualityScore: 9, MaxUnknownErrors: -1},
			expected:   true,
		},
	}

	for tn, tc := range tt {
		t.Run(tn, func(t *testing.T) {
			checks, passed := Verify(rep, tc.thresholds)
			assert.Equal(t, tc.expected, passed)
			assert.Len(t, checks, 5)
		})
	}
}

func TestWriteReportSameSecond(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tt := map[string]struct {
		offsets []time.Duration
	}{
		"milliseconds apart": {offsets: []time.Duration{0, 250 * time.Millisecond, 999 * time.Millisecond}},
		"nanoseconds apart":  {offsets: []time.Duration{10, 11}},
	}

	for tn, tc := range tt {
		t.Run(tn, func(t *testing.T) {
			dir := filepath.Join(dir, strings.ReplaceAll(tn, " ", "_"))
			var paths []string
			for i, off := range tc.offsets {
				rep := Aggregate(nil)
				rep.Metadata.Timestamp = base.Add(off)
				rep.Metadata.RunID = fmt.Sprintf("run-%d", i)
				path, err := WriteReport(dir, rep)
				require.NoError(t, err)
				paths = append(paths, path)
			}

			files, err := Files(dir)
			require.NoError(t, err)
			assert.Len(t, files, len(tc.offsets))

			latest, err := LatestReport(dir)
			require.NoError(t, err)
			assert.Equal(t, paths[len(paths)-1], latest)

			rep, err := Load(latest)
			require.NoError(t, err)
			assert.Equal(t, fmt.Sprintf("run-%d", len(tc.offsets)-1), rep.Metadata.RunID)
		})
	}
}
