// Package checkpoint persists per-layer evaluation progress so an interrupted run
// resumes without redoing finished items.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/mcpchecker/wfeval/pkg/failure"
)

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"

	// Dir is the checkpoint directory below the output directory.
	Dir = "checkpoints"
)

// Entry is the persisted progress of one layer.
type Entry struct {
	Layer       int                        `json:"layer"`
	RunID       string                     `json:"runId"`
	Completed   map[string]json.RawMessage `json:"completed"`
	Failed      map[string]*failure.Record `json:"failed"`
	BatchCursor int                        `json:"batchCursor"`
	TotalItems  int                        `json:"totalItems"`
	UpdatedAt   time.Time                  `json:"updatedAt"`
}

// NewEntry returns an empty entry for layer.
func NewEntry(layer int, runID string, total int) *Entry {
	return &Entry{
		Layer:      layer,
		RunID:      runID,
		Completed:  make(map[string]json.RawMessage),
		Failed:     make(map[string]*failure.Record),
		TotalItems: total,
	}
}

// Done reports whether id already has a terminal outcome.
func (e *Entry) Done(id string) bool {
	if _, ok := e.Completed[id]; ok {
		return true
	}
	_, ok := e.Failed[id]
	return ok
}

// Remaining returns the ids without a terminal outcome, preserving order.
func (e *Entry) Remaining(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !e.Done(id) {
			out = append(out, id)
		}
	}
	return out
}

// RecordSuccess stores the output of a successful item.
func (e *Entry) RecordSuccess(id string, output json.RawMessage) {
	if e.Done(id) {
		return
	}
	e.Completed[id] = output
}

// RecordFailure stores the failure of an item.
func (e *Entry) RecordFailure(id string, rec *failure.Record) {
	if e.Done(id) {
		return
	}
	e.Failed[id] = rec
}

// Processed is the number of items with a terminal outcome.
func (e *Entry) Processed() int {
	return len(e.Completed) + len(e.Failed)
}

func (e *Entry) normalize() {
	if e.Completed == nil {
		e.Completed = make(map[string]json.RawMessage)
	}
	if e.Failed == nil {
		e.Failed = make(map[string]*failure.Record)
	}
}

// Store persists one Entry per layer.
type Store interface {
	// Load returns nil, nil when the layer has no checkpoint.
	Load(layer int) (*Entry, error)
	// Save atomically replaces the checkpoint of entry.Layer.
	Save(entry *Entry) error
	Clear(layer int) error
	ClearAll() error
	Close() error
}

// Open returns the store for backend rooted at outputDir.
func Open(backend, outputDir string) (Store, error) {
	dir := filepath.Join(outputDir, Dir)
	switch backend {
	case "", BackendFile:
		return NewFileStore(dir), nil
	case BackendSQLite:
		return NewSQLiteStore(filepath.Join(dir, "checkpoints.db"))
	default:
		return nil, fmt.Errorf("unknown checkpoint backend '%s'", backend)
	}
}
