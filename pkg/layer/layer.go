// Package layer implements the three evaluation layers run by the pipeline:
// structure, execution and output quality.
package layer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mcpchecker/wfeval/pkg/failure"
	"github.com/mcpchecker/wfeval/pkg/scheduler"
)

const (
	Structure = 1
	Execution = 2
	Quality   = 3
)

// Names maps each layer to the name used in result file names.
var Names = map[int]string{
	Structure: "structure",
	Execution: "execution",
	Quality:   "output",
}

// Runner processes one item of a layer. Process never panics across the
// boundary on expected input; the scheduler recovers anything else.
type Runner interface {
	Layer() int
	Name() string
	Process(ctx context.Context, item *scheduler.Item) failure.Result[json.RawMessage]
}

// Module is the module name recorded on failures raised by layer.
func Module(layer int) string {
	return fmt.Sprintf("layer_%d", layer)
}

// Valid reports whether n names a layer.
func Valid(n int) bool {
	_, ok := Names[n]
	return ok
}

func encode[T any](module string, payload T) failure.Result[json.RawMessage] {
	data, err := json.Marshal(payload)
	if err != nil {
		return failure.Fail[json.RawMessage](failure.Classify(module, fmt.Errorf("failed to encode payload: %w", err)))
	}
	return failure.Ok(json.RawMessage(data))
}

func fail(module string, attempts int, err error) failure.Result[json.RawMessage] {
	return propagate(failure.Wrap[json.RawMessage](module, nil, err), attempts)
}

// propagate turns a failed collaborator result into the layer result.
func propagate[T any](res failure.Result[T], attempts int) failure.Result[json.RawMessage] {
	return failure.Fail[json.RawMessage](res.Failure.WithAttempts(attempts))
}

// annotate prefixes a non-nil err with context; nil stays nil.
func annotate(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
