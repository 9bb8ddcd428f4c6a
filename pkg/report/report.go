// Package report builds, persists and loads per-layer results and the
// comprehensive evaluation report.
package report

import (
	"encoding/json"
	"time"

	"github.com/mcpchecker/wfeval/pkg/failure"
	"github.com/mcpchecker/wfeval/pkg/scheduler"
)

// ItemResult is the terminal outcome of one item in a layer.
type ItemResult struct {
	ID      string           `json:"id"`
	Status  scheduler.Status `json:"status"`
	Payload json.RawMessage  `json:"payload,omitempty"`
	Failure *failure.Record  `json:"failure,omitempty"`
}

// LayerResult holds every item outcome of one layer, in input order.
type LayerResult struct {
	Layer          int                  `json:"layer"`
	Name           string               `json:"name"`
	Total          int                  `json:"total"`
	Succeeded      int                  `json:"succeeded"`
	Failed         int                  `json:"failed"`
	FailuresByKind map[failure.Kind]int `json:"failuresByKind"`
	Items          []ItemResult         `json:"items"`
	Duration       float64              `json:"durationSeconds"`
	Timestamp      time.Time            `json:"timestamp"`
}

// NewLayerResult builds the result of a layer from its items. Items that never
// reached a terminal status are counted in Total only.
func NewLayerResult(layer int, name string, items []*scheduler.Item, duration time.Duration) *LayerResult {
	r := &LayerResult{
		Layer:          layer,
		Name:           name,
		Total:          len(items),
		FailuresByKind: map[failure.Kind]int{failure.KindExpected: 0, failure.KindUnknown: 0},
		Items:          make([]ItemResult, 0, len(items)),
		Duration:       duration.Seconds(),
		Timestamp:      time.Now().UTC(),
	}

	for _, item := range items {
		res := ItemResult{ID: item.ID, Status: item.Status}
		switch item.Status {
		case scheduler.StatusSuccess:
			r.Succeeded++
			res.Payload = item.Output
		case scheduler.StatusFailed:
			r.Failed++
			res.Failure = item.Failure
			if item.Failure != nil {
				r.FailuresByKind[item.Failure.Kind]++
			}
		}
		r.Items = append(r.Items, res)
	}

	return r
}

// SuccessRate is Succeeded over Total, zero for an empty layer.
func (r *LayerResult) SuccessRate() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Succeeded) / float64(r.Total)
}

// Successful returns the payload of every successful item keyed by id.
func (r *LayerResult) Successful() map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, r.Succeeded)
	for _, item := range r.Items {
		if item.Status == scheduler.StatusSuccess {
			out[item.ID] = item.Payload
		}
	}
	return out
}
