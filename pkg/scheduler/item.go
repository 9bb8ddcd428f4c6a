package scheduler

import (
	"encoding/json"

	"github.com/mcpchecker/wfeval/pkg/failure"
	"github.com/mcpchecker/wfeval/pkg/workflow"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Item is one unit of work in a layer. Only the worker that owns an item mutates it
// while it is running.
type Item struct {
	ID    string
	Layer int
	Spec  *workflow.Spec
	// Prior is the successful output of the same item in the previous layer.
	Prior json.RawMessage

	Status  Status
	Output  json.RawMessage
	Failure *failure.Record
}

// NewItems builds pending items for layer, one per spec, pairing each with its
// prior-layer output when priors is non-nil.
func NewItems(layer int, specs []*workflow.Spec, priors map[string]json.RawMessage) []*Item {
	items := make([]*Item, 0, len(specs))
	for _, s := range specs {
		item := &Item{ID: s.ID, Layer: layer, Spec: s, Status: StatusPending}
		if priors != nil {
			item.Prior = priors[s.ID]
		}
		items = append(items, item)
	}
	return items
}

// Terminal reports whether the item finished.
func (i *Item) Terminal() bool {
	return i.Status == StatusSuccess || i.Status == StatusFailed
}
