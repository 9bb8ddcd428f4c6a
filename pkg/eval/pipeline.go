// Package eval orchestrates the evaluation layers over a dataset: it runs each
// enabled layer through the batch scheduler with checkpointing, hands the
// successful outputs of one layer to the next, and writes the final report.
package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mcpchecker/wfeval/pkg/checkpoint"
	"github.com/mcpchecker/wfeval/pkg/config"
	"github.com/mcpchecker/wfeval/pkg/layer"
	"github.com/mcpchecker/wfeval/pkg/report"
	"github.com/mcpchecker/wfeval/pkg/scheduler"
	"github.com/mcpchecker/wfeval/pkg/workflow"
)

// RunOptions adjust a single run.
type RunOptions struct {
	// Clean removes checkpoints and results before running.
	Clean bool
	// QualityInputs are layer 2 payloads keyed by workflow id, used when
	// layer 3 runs without layer 2.
	QualityInputs map[string]json.RawMessage
	Progress      ProgressCallback
}

type Pipeline struct {
	cfg    config.Config
	deps   Collaborators
	logger *zap.Logger
	probe  scheduler.MemoryProbe
}

type Option func(*Pipeline)

// WithMemoryProbe replaces the system memory probe.
func WithMemoryProbe(probe scheduler.MemoryProbe) Option {
	return func(p *Pipeline) {
		p.probe = probe
	}
}

// NewPipeline validates cfg and checks that deps covers the enabled layers.
func NewPipeline(cfg config.Config, deps Collaborators, logger *zap.Logger, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := deps.validate(cfg.Layers); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Pipeline{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		probe:  scheduler.SystemMemory,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Config returns the pipeline's configuration.
func (p *Pipeline) Config() config.Config {
	return p.cfg
}

// Run evaluates dataset through every enabled layer and writes the comprehensive
// report, returning it and its path. Item failures are recorded in the report;
// an error is returned only for cancellation, storage failures or missing layer
// inputs.
func (p *Pipeline) Run(ctx context.Context, dataset *workflow.Dataset, opts RunOptions) (*report.Report, string, error) {
	progress := opts.Progress
	if progress == nil {
		progress = NoopProgressCallback
	}

	runID := uuid.NewString()
	start := time.Now()
	logger := p.logger.With(zap.String("runId", runID))

	store, err := checkpoint.Open(p.cfg.CheckpointBackend, p.cfg.OutputDir)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open checkpoint store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close checkpoint store", zap.Error(err))
		}
	}()

	if opts.Clean {
		if err := Clean(p.cfg, store); err != nil {
			return nil, "", err
		}
		logger.Info("removed previous checkpoints and results")
	}

	workers := workerCount(p.cfg, p.probe)
	logger.Info("starting evaluation",
		zap.Int("workflows", len(dataset.Specs)),
		zap.Ints("layers", p.cfg.SortedLayers()),
		zap.Int("workers", workers),
		zap.Int("batchSize", p.cfg.BatchSize))

	progress(ProgressEvent{
		Type:    EventEvalStart,
		Message: "Starting evaluation",
		RunID:   runID,
		Total:   len(dataset.Specs),
	})

	var (
		results []*report.LayerResult
		prior   *report.LayerResult
	)
	for _, n := range p.cfg.SortedLayers() {
		items, err := p.layerItems(n, dataset, prior, opts)
		if err != nil {
			return nil, "", err
		}

		lr, err := p.runLayer(ctx, logger, store, runID, n, items, workers, progress)
		if err != nil {
			return nil, "", err
		}

		results = append(results, lr)
		prior = lr
	}

	rep := report.Aggregate(results)
	rep.Metadata.RunID = runID
	rep.Metadata.Timestamp = start.UTC()
	rep.Metadata.Duration = time.Since(start).Seconds()
	if cfgJSON, err := json.Marshal(p.cfg); err == nil {
		rep.Metadata.Config = cfgJSON
	}

	path, err := report.WriteReport(p.cfg.OutputDir, rep)
	if err != nil {
		return nil, "", err
	}

	logger.Info("evaluation complete",
		zap.String("report", path),
		zap.Float64("pipelineSuccessRate", rep.Overall.PipelineSuccessRate),
		zap.Int("unknownErrors", len(rep.UnknownErrors)))

	progress(ProgressEvent{
		Type:       EventEvalComplete,
		Message:    "Evaluation complete",
		RunID:      runID,
		Report:     rep,
		ReportPath: path,
	})

	return rep, path, nil
}

func (p *Pipeline) runLayer(
	ctx context.Context,
	logger *zap.Logger,
	store checkpoint.Store,
	runID string,
	n int,
	items []*scheduler.Item,
	workers int,
	progress ProgressCallback,
) (*report.LayerResult, error) {
	runner := p.runner(n, logger)
	logger = logger.With(zap.Int("layer", n), zap.String("name", runner.Name()))

	entry, err := store.Load(n)
	if err != nil {
		return nil, fmt.Errorf("failed to load layer %d checkpoint: %w", n, err)
	}
	if entry == nil {
		entry = checkpoint.NewEntry(n, runID, len(items))
	}

	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	resumed := len(items) - len(entry.Remaining(ids))

	progress(ProgressEvent{
		Type:    EventLayerStart,
		Message: fmt.Sprintf("Starting layer %d: %s", n, runner.Name()),
		RunID:   runID,
		Layer:   n,
		Name:    runner.Name(),
		Total:   len(items),
		Resumed: resumed,
	})

	sched := scheduler.New(scheduler.Options{
		MaxWorkers:      workers,
		BatchSize:       p.cfg.BatchSize,
		Store:           store,
		Logger:          logger,
		MemoryProbe:     p.probe,
		MemoryPerWorker: p.cfg.MemoryPerWorker(),
		OnBatch: func(b scheduler.BatchProgress) {
			progress(ProgressEvent{
				Type:    EventBatchComplete,
				Message: fmt.Sprintf("Layer %d batch %d complete (%d/%d)", n, b.Batch, b.Processed, b.Total),
				RunID:   runID,
				Layer:   n,
				Name:    runner.Name(),
				Total:   b.Total,
				Batch:   &b,
			})
		},
	})

	start := time.Now()
	if err := sched.Run(ctx, entry, items, runner.Process); err != nil {
		return nil, fmt.Errorf("layer %d interrupted: %w", n, err)
	}

	lr := report.NewLayerResult(n, runner.Name(), items, time.Since(start))
	if _, err := report.WriteLayerResult(p.cfg.OutputDir, lr); err != nil {
		return nil, err
	}

	logger.Info("layer complete",
		zap.Int("total", lr.Total),
		zap.Int("succeeded", lr.Succeeded),
		zap.Int("failed", lr.Failed))

	progress(ProgressEvent{
		Type:    EventLayerComplete,
		Message: fmt.Sprintf("Completed layer %d: %s", n, runner.Name()),
		RunID:   runID,
		Layer:   n,
		Name:    runner.Name(),
		Total:   lr.Total,
		Result:  lr,
	})

	return lr, nil
}

// layerItems builds the input items of layer n. Layer 1 takes the whole
// dataset; later layers take only workflows that succeeded in the previous
// layer, read from this run or from persisted results.
func (p *Pipeline) layerItems(n int, dataset *workflow.Dataset, prior *report.LayerResult, opts RunOptions) ([]*scheduler.Item, error) {
	if n == layer.Structure {
		return scheduler.NewItems(n, dataset.Specs, nil), nil
	}

	var payloads map[string]json.RawMessage
	switch {
	case prior != nil && prior.Layer == n-1:
		payloads = prior.Successful()
	case n == layer.Execution:
		persisted, err := report.LoadLayer(p.cfg.OutputDir, layer.Structure, layer.Names[layer.Structure])
		if err != nil {
			return nil, err
		}
		if persisted == nil {
			return nil, fmt.Errorf("layer 2 needs layer 1 results: run layer 1 first or include it in the layers")
		}
		payloads = persisted.Successful()
	case n == layer.Quality:
		if len(opts.QualityInputs) == 0 {
			return nil, fmt.Errorf("layer 3 needs execution results: run layer 2 first or supply them")
		}
		payloads = opts.QualityInputs
	}

	specs := make([]*workflow.Spec, 0, len(payloads))
	for _, s := range dataset.Specs {
		if _, ok := payloads[s.ID]; ok {
			specs = append(specs, s)
		}
	}
	return scheduler.NewItems(n, specs, payloads), nil
}

func (p *Pipeline) runner(n int, logger *zap.Logger) layer.Runner {
	policy := p.cfg.RetryPolicy()
	named := logger.Named(layer.Names[n])

	switch n {
	case layer.Structure:
		return &layer.StructureRunner{
			Generator: p.deps.Generator,
			Judge:     p.deps.Judge,
			Retry:     policy,
			Gate:      p.cfg.StructureGate,
			Logger:    named,
		}
	case layer.Execution:
		return &layer.ExecutionRunner{
			Engine:    p.deps.Engine,
			Retry:     policy,
			Timeout:   p.cfg.ExecutionTimeout.Duration,
			InputSets: p.cfg.InputSets,
			Logger:    named,
		}
	default:
		return &layer.QualityRunner{
			Judge:  p.deps.Judge,
			Retry:  policy,
			Logger: named,
		}
	}
}

func workerCount(cfg config.Config, probe scheduler.MemoryProbe) int {
	if cfg.MaxProcesses > 0 {
		return cfg.MaxProcesses
	}
	return scheduler.OptimalWorkers(probe, cfg.MemoryPerWorker())
}
