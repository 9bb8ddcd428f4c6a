package eval

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mcpchecker/wfeval/pkg/config"
	"github.com/mcpchecker/wfeval/pkg/engine"
	"github.com/mcpchecker/wfeval/pkg/generator"
	"github.com/mcpchecker/wfeval/pkg/layer"
	"github.com/mcpchecker/wfeval/pkg/llmjudge"
)

// Collaborators are the external services the layers call. Only those needed by
// the enabled layers must be set.
type Collaborators struct {
	Generator generator.Generator
	Engine    engine.Engine
	Judge     llmjudge.Judge
}

func (c Collaborators) validate(layers []int) error {
	var errs []error
	for _, n := range layers {
		switch n {
		case layer.Structure:
			if c.Generator == nil {
				errs = append(errs, fmt.Errorf("layer 1 requires a workflow generator"))
			}
			if c.Judge == nil {
				errs = append(errs, fmt.Errorf("layer 1 requires a judge"))
			}
		case layer.Execution:
			if c.Engine == nil {
				errs = append(errs, fmt.Errorf("layer 2 requires an execution engine"))
			}
		case layer.Quality:
			if c.Judge == nil {
				errs = append(errs, fmt.Errorf("layer 3 requires a judge"))
			}
		}
	}
	return errors.Join(errs...)
}

// NewCollaborators builds the default adapters for the layers enabled in cfg:
// the OpenAI generator, the configured judge and the MCP engine client. The
// returned cleanup closes the engine session.
func NewCollaborators(ctx context.Context, cfg config.Config, logger *zap.Logger) (Collaborators, func(), error) {
	var deps Collaborators
	cleanup := func() {}

	if cfg.RunsLayer(layer.Structure) {
		gen, err := generator.NewOpenAIGenerator(cfg.GeneratorConfig())
		if err != nil {
			return deps, cleanup, fmt.Errorf("failed to create workflow generator: %w", err)
		}
		deps.Generator = gen
	}

	if cfg.RunsLayer(layer.Structure) || cfg.RunsLayer(layer.Quality) {
		judge, err := llmjudge.New(ctx, cfg.JudgeConfig())
		if err != nil {
			return deps, cleanup, fmt.Errorf("failed to create judge: %w", err)
		}
		deps.Judge = judge
	}

	if cfg.RunsLayer(layer.Execution) {
		eng, err := engine.NewMCPEngine(cfg.Engine, logger.Named("engine"))
		if err != nil {
			return deps, cleanup, fmt.Errorf("failed to create execution engine client: %w", err)
		}
		deps.Engine = eng
		cleanup = func() {
			if err := eng.Close(); err != nil {
				logger.Debug("failed to close engine session", zap.Error(err))
			}
		}
	}

	return deps, cleanup, nil
}
