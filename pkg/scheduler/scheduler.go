// Package scheduler fans layer items out over a bounded worker pool in contiguous
// batches and checkpoints progress after every batch.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mcpchecker/wfeval/pkg/checkpoint"
	"github.com/mcpchecker/wfeval/pkg/failure"
)

const (
	DefaultMaxWorkers = 4
	DefaultBatchSize  = 10

	// DefaultMemoryPerWorker is the headroom assumed for one worker.
	DefaultMemoryPerWorker uint64 = 512 << 20
)

// WorkFunc processes one item. It must honor ctx cancellation.
type WorkFunc func(ctx context.Context, item *Item) failure.Result[json.RawMessage]

// MemoryProbe returns the currently available memory in bytes.
type MemoryProbe func() (uint64, error)

// BatchProgress is reported after each checkpointed batch.
type BatchProgress struct {
	Layer     int
	Batch     int
	Size      int
	Succeeded int
	Failed    int
	Processed int
	Total     int
}

type Options struct {
	MaxWorkers      int
	BatchSize       int
	Store           checkpoint.Store
	Logger          *zap.Logger
	MemoryProbe     MemoryProbe
	MemoryPerWorker uint64
	OnBatch         func(BatchProgress)
}

type Scheduler struct {
	opts Options
}

func New(opts Options) *Scheduler {
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = DefaultMaxWorkers
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Scheduler{opts: opts}
}

// Run processes every item not already recorded in entry. Items already recorded
// take their status and payload from entry without running. Remaining items run
// in batches of at most BatchSize on at most MaxWorkers goroutines; after each
// batch the outcomes are merged into entry and saved before the next batch
// starts. An item failure or panic never aborts a batch.
//
// Cancellation is checked between batches. A batch interrupted by cancellation is
// discarded without a checkpoint write and its items are reset to pending. A
// checkpoint write failure aborts the run.
func (s *Scheduler) Run(ctx context.Context, entry *checkpoint.Entry, items []*Item, fn WorkFunc) error {
	logger := s.opts.Logger.With(zap.Int("layer", entry.Layer))

	remaining := make([]*Item, 0, len(items))
	for _, item := range items {
		if out, ok := entry.Completed[item.ID]; ok {
			item.Status = StatusSuccess
			item.Output = out
			continue
		}
		if rec, ok := entry.Failed[item.ID]; ok {
			item.Status = StatusFailed
			item.Failure = rec
			continue
		}
		item.Status = StatusPending
		remaining = append(remaining, item)
	}

	entry.TotalItems = len(items)
	if skipped := len(items) - len(remaining); skipped > 0 {
		logger.Info("resuming from checkpoint",
			zap.Int("done", skipped),
			zap.Int("remaining", len(remaining)))
	}

	for pos := 0; pos < len(remaining); {
		if err := ctx.Err(); err != nil {
			return err
		}

		workers, batchSize := s.capacity(logger)
		end := min(pos+batchSize, len(remaining))
		batch := remaining[pos:end]

		logger.Debug("starting batch",
			zap.Int("batch", entry.BatchCursor+1),
			zap.Int("size", len(batch)),
			zap.Int("workers", workers))

		g := new(errgroup.Group)
		g.SetLimit(workers)
		for _, item := range batch {
			g.Go(func() error {
				s.runItem(ctx, item, fn)
				return nil
			})
		}
		_ = g.Wait()

		if err := ctx.Err(); err != nil {
			for _, item := range batch {
				item.Status = StatusPending
				item.Output = nil
				item.Failure = nil
			}
			logger.Warn("batch interrupted, discarding results", zap.Int("size", len(batch)))
			return err
		}

		progress := BatchProgress{Layer: entry.Layer, Size: len(batch), Total: len(items)}
		for _, item := range batch {
			switch item.Status {
			case StatusSuccess:
				entry.RecordSuccess(item.ID, item.Output)
				progress.Succeeded++
			default:
				entry.RecordFailure(item.ID, item.Failure)
				progress.Failed++
			}
		}
		entry.BatchCursor++

		if s.opts.Store != nil {
			if err := s.opts.Store.Save(entry); err != nil {
				return fmt.Errorf("failed to checkpoint batch %d: %w", entry.BatchCursor, err)
			}
		}

		progress.Batch = entry.BatchCursor
		progress.Processed = entry.Processed()
		if s.opts.OnBatch != nil {
			s.opts.OnBatch(progress)
		}

		pos = end
	}

	return nil
}

func (s *Scheduler) runItem(ctx context.Context, item *Item, fn WorkFunc) {
	item.Status = StatusRunning

	res := func() (res failure.Result[json.RawMessage]) {
		defer func() {
			if r := recover(); r != nil {
				res = failure.Fail[json.RawMessage](failure.Classify(fmt.Sprintf("layer_%d", item.Layer), failure.FromPanic(r)))
			}
		}()
		return fn(ctx, item)
	}()

	if res.Ok() {
		item.Status = StatusSuccess
		item.Output = res.Value
		return
	}

	item.Status = StatusFailed
	item.Failure = res.Failure
	s.opts.Logger.Debug("item failed",
		zap.String("item", item.ID),
		zap.Int("layer", item.Layer),
		zap.String("kind", string(res.Failure.Kind)),
		zap.String("category", string(res.Failure.Category)),
		zap.String("message", res.Failure.Message))
}

// capacity returns the worker count and batch size for the next batch, reduced
// when the memory probe reports less headroom than the configured workers need.
func (s *Scheduler) capacity(logger *zap.Logger) (int, int) {
	workers, batchSize := s.opts.MaxWorkers, s.opts.BatchSize
	if s.opts.MemoryProbe == nil || s.opts.MemoryPerWorker == 0 {
		return workers, batchSize
	}

	free, err := s.opts.MemoryProbe()
	if err != nil {
		logger.Debug("memory probe unavailable", zap.Error(err))
		return workers, batchSize
	}

	need := s.opts.MemoryPerWorker * uint64(workers)
	if free >= need {
		return workers, batchSize
	}

	reducedWorkers := max(1, int(free/s.opts.MemoryPerWorker))
	reducedBatch := max(1, batchSize/2)
	logger.Warn("memory pressure, reducing concurrency",
		zap.Uint64("freeBytes", free),
		zap.Uint64("neededBytes", need),
		zap.Int("workers", reducedWorkers),
		zap.Int("batchSize", reducedBatch))

	return reducedWorkers, reducedBatch
}

// OptimalWorkers returns min(75% of CPUs, available memory / memoryPerWorker),
// never less than 1.
func OptimalWorkers(probe MemoryProbe, memoryPerWorker uint64) int {
	workers := max(1, runtime.NumCPU()*3/4)
	if probe == nil || memoryPerWorker == 0 {
		return workers
	}

	free, err := probe()
	if err != nil {
		return workers
	}

	return max(1, min(workers, int(free/memoryPerWorker)))
}
