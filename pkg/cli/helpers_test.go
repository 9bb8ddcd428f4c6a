package cli

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/mcpchecker/wfeval/pkg/failure"
	"github.com/mcpchecker/wfeval/pkg/layer"
	"github.com/mcpchecker/wfeval/pkg/report"
	"github.com/mcpchecker/wfeval/pkg/scheduler"
)

var emptyPayload = json.RawMessage(`{}`)

func succeeded(id string, layerN int, payload json.RawMessage) *scheduler.Item {
	return &scheduler.Item{ID: id, Layer: layerN, Status: scheduler.StatusSuccess, Output: payload}
}

func failed(id string, layerN int, kind failure.Kind) *scheduler.Item {
	return &scheduler.Item{ID: id, Layer: layerN, Status: scheduler.StatusFailed, Failure: &failure.Record{
		Kind:     kind,
		Category: failure.CategoryValidation,
		Module:   layer.Module(layerN),
		Type:     "*errors.errorString",
		Message:  "workflow rejected",
		Trace:    "error chain:\n  0: *errors.errorString: workflow rejected",
	}}
}

func layerResult(layerN int, items ...*scheduler.Item) *report.LayerResult {
	return report.NewLayerResult(layerN, layer.Names[layerN], items, time.Second)
}

// sampleReport has 3 workflows: c fails generation, b fails execution with an
// unknown error.
func sampleReport() *report.Report {
	return report.Aggregate([]*report.LayerResult{
		layerResult(layer.Structure,
			succeeded("wf-a", layer.Structure, emptyPayload),
			succeeded("wf-b", layer.Structure, emptyPayload),
			failed("wf-c", layer.Structure, failure.KindExpected),
		),
		layerResult(layer.Execution,
			succeeded("wf-a", layer.Execution, emptyPayload),
			failed("wf-b", layer.Execution, failure.KindUnknown),
		),
	})
}

// sampleReportImproved fixes both failures of sampleReport.
func sampleReportImproved() *report.Report {
	return report.Aggregate([]*report.LayerResult{
		layerResult(layer.Structure,
			succeeded("wf-a", layer.Structure, emptyPayload),
			succeeded("wf-b", layer.Structure, emptyPayload),
			succeeded("wf-c", layer.Structure, emptyPayload),
		),
		layerResult(layer.Execution,
			succeeded("wf-a", layer.Execution, emptyPayload),
			succeeded("wf-b", layer.Execution, emptyPayload),
			succeeded("wf-c", layer.Execution, emptyPayload),
		),
	})
}

// createTestReportFile writes rep to a fresh output directory and returns the
// directory and the report path.
func createTestReportFile(t *testing.T, rep *report.Report) (string, string) {
	t.Helper()

	dir := t.TempDir()
	path, err := report.WriteReport(dir, rep)
	if err != nil {
		t.Fatalf("failed to write report: %v", err)
	}
	return dir, path
}
