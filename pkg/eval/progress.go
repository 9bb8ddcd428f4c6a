package eval

import (
	"github.com/mcpchecker/wfeval/pkg/report"
	"github.com/mcpchecker/wfeval/pkg/scheduler"
)

type EventType string

const (
	EventEvalStart     EventType = "eval_start"
	EventLayerStart    EventType = "layer_start"
	EventBatchComplete EventType = "batch_complete"
	EventLayerComplete EventType = "layer_complete"
	EventEvalComplete  EventType = "eval_complete"
)

// ProgressEvent reports pipeline progress. Only the fields relevant to Type are set.
type ProgressEvent struct {
	Type    EventType
	Message string
	RunID   string

	Layer int
	Name  string
	// Total is the number of items in the layer; Resumed of them were already
	// recorded in the checkpoint.
	Total   int
	Resumed int

	Batch  *scheduler.BatchProgress
	Result *report.LayerResult
	Report *report.Report
	// ReportPath is set on EventEvalComplete.
	ReportPath string
}

type ProgressCallback func(event ProgressEvent)

func NoopProgressCallback(ProgressEvent) {}
