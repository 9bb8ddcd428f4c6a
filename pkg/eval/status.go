package eval

import (
	"errors"
	"fmt"
	"os"

	"github.com/mcpchecker/wfeval/pkg/checkpoint"
	"github.com/mcpchecker/wfeval/pkg/config"
	"github.com/mcpchecker/wfeval/pkg/layer"
	"github.com/mcpchecker/wfeval/pkg/report"
	"github.com/mcpchecker/wfeval/pkg/scheduler"
	"github.com/mcpchecker/wfeval/pkg/workflow"
)

// LayerStatus is the persisted progress of one layer.
type LayerStatus struct {
	Layer       int    `json:"layer"`
	Name        string `json:"name"`
	RunID       string `json:"runId,omitempty"`
	Total       int    `json:"total"`
	Completed   int    `json:"completed"`
	Failed      int    `json:"failed"`
	Batches     int    `json:"batches"`
	HasResults  bool   `json:"hasResults"`
	ResultsFile string `json:"resultsFile,omitempty"`
}

// Remaining is the number of items the next run of the layer still has to process.
func (s LayerStatus) Remaining() int {
	return max(0, s.Total-s.Completed-s.Failed)
}

// Status describes the checkpoints and result files under an output directory.
type Status struct {
	OutputDir    string        `json:"outputDir"`
	Layers       []LayerStatus `json:"layers"`
	LatestReport string        `json:"latestReport,omitempty"`
}

// Plan is what a run would do, computed without calling any collaborator.
type Plan struct {
	Workflows int           `json:"workflows"`
	Skipped   []string      `json:"skipped,omitempty"`
	Workers   int           `json:"workers"`
	BatchSize int           `json:"batchSize"`
	Layers    []LayerStatus `json:"layers"`
}

// ReadStatus reports checkpoint progress and result files for every layer.
func ReadStatus(cfg config.Config) (*Status, error) {
	st := &Status{OutputDir: cfg.OutputDir}

	layers, err := readLayers(cfg, []int{layer.Structure, layer.Execution, layer.Quality})
	if err != nil {
		return nil, err
	}
	st.Layers = layers

	if latest, err := report.LatestReport(cfg.OutputDir); err == nil {
		st.LatestReport = latest
	}
	return st, nil
}

// Plan reports what Run would do for dataset with the pipeline's configuration.
func (p *Pipeline) Plan(dataset *workflow.Dataset) (*Plan, error) {
	return NewPlan(p.cfg, dataset, p.probe)
}

// NewPlan reports what a run of cfg would do for dataset without building any
// collaborator. Checkpoints are read but never created.
func NewPlan(cfg config.Config, dataset *workflow.Dataset, probe scheduler.MemoryProbe) (*Plan, error) {
	plan := &Plan{
		Workflows: len(dataset.Specs),
		Workers:   workerCount(cfg, probe),
		BatchSize: cfg.BatchSize,
	}
	for _, s := range dataset.Skipped {
		plan.Skipped = append(plan.Skipped, fmt.Sprintf("%s: %v", s.File, s.Err))
	}

	layers, err := readLayers(cfg, cfg.SortedLayers())
	if err != nil {
		return nil, err
	}
	for i := range layers {
		if layers[i].Layer == layer.Structure && layers[i].Total == 0 {
			layers[i].Total = len(dataset.Specs)
		}
	}
	plan.Layers = layers

	return plan, nil
}

// Clean removes every checkpoint and result file of cfg's output directory.
func Clean(cfg config.Config, store checkpoint.Store) error {
	var errs []error
	if err := store.ClearAll(); err != nil {
		errs = append(errs, fmt.Errorf("failed to clear checkpoints: %w", err))
	}
	if err := report.Clean(cfg.OutputDir); err != nil {
		errs = append(errs, fmt.Errorf("failed to remove results: %w", err))
	}
	return errors.Join(errs...)
}

func readLayers(cfg config.Config, layers []int) ([]LayerStatus, error) {
	var store checkpoint.Store
	if _, err := os.Stat(cfg.CheckpointDir()); err == nil {
		s, err := checkpoint.Open(cfg.CheckpointBackend, cfg.OutputDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open checkpoint store: %w", err)
		}
		defer s.Close()
		store = s
	}

	out := make([]LayerStatus, 0, len(layers))
	for _, n := range layers {
		ls := LayerStatus{Layer: n, Name: layer.Names[n]}

		if store != nil {
			entry, err := store.Load(n)
			if err != nil {
				return nil, fmt.Errorf("failed to load layer %d checkpoint: %w", n, err)
			}
			if entry != nil {
				ls.RunID = entry.RunID
				ls.Total = entry.TotalItems
				ls.Completed = len(entry.Completed)
				ls.Failed = len(entry.Failed)
				ls.Batches = entry.BatchCursor
			}
		}

		path := report.LayerFile(cfg.OutputDir, n, ls.Name)
		if _, err := os.Stat(path); err == nil {
			ls.HasResults = true
			ls.ResultsFile = path
		}

		out = append(out, ls)
	}
	return out, nil
}
