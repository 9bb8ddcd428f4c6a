package layer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mcpchecker/wfeval/pkg/engine"
	"github.com/mcpchecker/wfeval/pkg/failure"
	"github.com/mcpchecker/wfeval/pkg/retry"
	"github.com/mcpchecker/wfeval/pkg/scheduler"
	"github.com/mcpchecker/wfeval/pkg/workflow"
)

const (
	DefaultExecutionTimeout = 300 * time.Second
	DefaultInputSets        = 3
)

// ExecutionRun is one execution of a workflow with one input set.
type ExecutionRun struct {
	InputSet      int             `json:"inputSet"`
	Success       bool            `json:"success"`
	Input         map[string]any  `json:"input"`
	Output        json.RawMessage `json:"output,omitempty"`
	Error         *failure.Record `json:"error,omitempty"`
	Attempts      int             `json:"attempts"`
	ExecutionTime float64         `json:"executionTime"`
}

type ExecutionStatistics struct {
	Total                int     `json:"totalExecutions"`
	Succeeded            int     `json:"successfulExecutions"`
	Failed               int     `json:"failedExecutions"`
	SuccessRate          float64 `json:"successRate"`
	AverageExecutionTime float64 `json:"averageExecutionTime"`
}

// ExecutionPayload is the layer 2 output for one workflow.
type ExecutionPayload struct {
	WorkflowID   string               `json:"workflowId"`
	WorkflowName string               `json:"workflowName,omitempty"`
	Runs         []ExecutionRun       `json:"executionResults"`
	Statistics   ExecutionStatistics  `json:"statistics"`
	ErrorsByKind map[failure.Kind]int `json:"errorsByKind,omitempty"`
	Timestamp    time.Time            `json:"timestamp"`
}

// SuccessfulRuns returns the runs that produced an output.
func (p *ExecutionPayload) SuccessfulRuns() []ExecutionRun {
	var runs []ExecutionRun
	for _, r := range p.Runs {
		if r.Success {
			runs = append(runs, r)
		}
	}
	return runs
}

type ExecutionRunner struct {
	Engine engine.Engine
	Retry  retry.Policy
	// Timeout bounds each engine call.
	Timeout time.Duration
	// InputSets is the number of sample input sets generated when a workflow
	// has no caller-supplied test inputs.
	InputSets int
	Logger    *zap.Logger
}

var _ Runner = &ExecutionRunner{}

func (r *ExecutionRunner) Layer() int   { return Execution }
func (r *ExecutionRunner) Name() string { return Names[Execution] }

func (r *ExecutionRunner) Process(ctx context.Context, item *scheduler.Item) failure.Result[json.RawMessage] {
	module := Module(Execution)
	logger := loggerOrNop(r.Logger).With(zap.String("item", item.ID))
	spec := item.Spec

	graph, err := GraphFromPayload(item.Prior)
	if err != nil {
		return fail(module, 0, failure.Unknown(failure.CategoryInternal, err))
	}

	sets := spec.TestInputs
	if len(sets) == 0 {
		n := r.InputSets
		if n <= 0 {
			n = DefaultInputSets
		}
		sets = workflow.SampleInputs(spec.Inputs, n)
	}

	payload := &ExecutionPayload{
		WorkflowID:   item.ID,
		WorkflowName: spec.Name,
		Runs:         make([]ExecutionRun, 0, len(sets)),
		Timestamp:    time.Now().UTC(),
	}

	var first *failure.Record
	var totalTime float64
	for i, set := range sets {
		run := r.execute(ctx, logger, graph, spec.Inputs, set)
		run.InputSet = i + 1
		payload.Runs = append(payload.Runs, run)

		if run.Success {
			payload.Statistics.Succeeded++
			totalTime += run.ExecutionTime
			continue
		}
		payload.Statistics.Failed++
		if payload.ErrorsByKind == nil {
			payload.ErrorsByKind = make(map[failure.Kind]int)
		}
		payload.ErrorsByKind[run.Error.Kind]++
		if first == nil {
			first = run.Error
		}
		if ctx.Err() != nil {
			break
		}
	}

	stats := &payload.Statistics
	stats.Total = len(payload.Runs)
	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Succeeded) / float64(stats.Total)
	}
	if stats.Succeeded > 0 {
		stats.AverageExecutionTime = totalTime / float64(stats.Succeeded)
	}

	if stats.Succeeded == 0 {
		if first == nil {
			return fail(module, 0, failure.Expectedf(failure.CategoryInvalidInput, "workflow has no input sets to execute"))
		}
		return failure.Fail[json.RawMessage](first)
	}

	return encode(module, payload)
}

func (r *ExecutionRunner) execute(ctx context.Context, logger *zap.Logger, graph *workflow.Graph, decls []workflow.FieldDecl, values map[string]any) ExecutionRun {
	module := Module(Execution)
	run := ExecutionRun{Input: values}
	start := time.Now()

	bound, err := workflow.Bind(decls, values)
	if err != nil {
		run.Error = failure.Classify(module, failure.Expected(failure.CategoryInvalidInput, fmt.Errorf("%w: %w", engine.ErrInvalidBinding, err)))
		return run
	}
	run.Input = bound

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultExecutionTimeout
	}

	out, outcome, err := retry.Do(ctx, r.Retry, logger, "execute", func(ctx context.Context) (json.RawMessage, error) {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		out, err := r.Engine.Execute(callCtx, graph, bound)
		if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, failure.Expected(failure.CategoryTimeout, fmt.Errorf("execution exceeded %s: %w", timeout, err))
		}
		return out, err
	})
	run.Attempts = outcome.Attempts
	run.ExecutionTime = time.Since(start).Seconds()
	executed := failure.Wrap(module, out, err)
	if !executed.Ok() {
		if engine.IsEngineError(err) {
			logger.Info("engine rejected execution", zap.String("kind", string(executed.Kind())), zap.Error(err))
		} else {
			logger.Warn("engine call failed", zap.String("kind", string(executed.Kind())), zap.Error(err))
		}
		run.Error = executed.Failure.WithAttempts(outcome.Attempts)
		return run
	}

	run.Success = true
	run.Output = executed.Value
	return run
}

// ExecutionFromPayload decodes a layer 2 payload.
func ExecutionFromPayload(data json.RawMessage) (*ExecutionPayload, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("no execution result for this workflow")
	}
	payload := &ExecutionPayload{}
	if err := json.Unmarshal(data, payload); err != nil {
		return nil, fmt.Errorf("failed to decode execution result: %w", err)
	}
	return payload, nil
}
