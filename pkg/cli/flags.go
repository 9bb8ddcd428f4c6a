package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mcpchecker/wfeval/pkg/config"
	"github.com/mcpchecker/wfeval/pkg/engine"
)

// configFlags are the command line overrides applied on top of the defaults,
// the EVAL_* environment and the --config file, in that order.
type configFlags struct {
	file              string
	dataDir           string
	outputDir         string
	checkpointBackend string

	layers       string
	maxProcesses int
	batchSize    int
	engineURL    string
}

func (f *configFlags) addStorageFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.file, "config", "c", "", "EvalConfig file (YAML or JSON)")
	cmd.Flags().StringVar(&f.outputDir, "output-dir", "", "Directory for checkpoints, results and reports")
	cmd.Flags().StringVar(&f.checkpointBackend, "checkpoint-backend", "", "Checkpoint backend (file, sqlite)")
}

func (f *configFlags) addRunFlags(cmd *cobra.Command) {
	f.addStorageFlags(cmd)
	cmd.Flags().StringVar(&f.dataDir, "data-dir", "", "Directory of workflow spec files")
	cmd.Flags().StringVar(&f.layers, "layers", "", "Comma separated layers to run (e.g. 1,2,3)")
	cmd.Flags().IntVar(&f.maxProcesses, "max-processes", 0, "Maximum concurrent items (0 = pick from CPUs and memory)")
	cmd.Flags().IntVar(&f.batchSize, "batch-size", 0, "Items per checkpointed batch")
	cmd.Flags().StringVar(&f.engineURL, "engine-url", "", "Streamable HTTP endpoint of the execution engine")
}

// load builds the validated configuration for cmd.
func (f *configFlags) load(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.FromEnv(config.Default(), os.LookupEnv)
	if err != nil {
		return config.Config{}, err
	}

	if f.file != "" {
		cfg, err = config.FromFile(cfg, f.file)
		if err != nil {
			return config.Config{}, err
		}
	}

	changed := cmd.Flags().Changed
	if changed("data-dir") {
		cfg.DataDir = f.dataDir
	}
	if changed("output-dir") {
		cfg.OutputDir = f.outputDir
	}
	if changed("checkpoint-backend") {
		cfg.CheckpointBackend = f.checkpointBackend
	}
	if changed("layers") {
		layers, err := config.ParseLayers(f.layers)
		if err != nil {
			return config.Config{}, fmt.Errorf("invalid --layers: %w", err)
		}
		cfg.Layers = layers
	}
	if changed("max-processes") {
		cfg.MaxProcesses = f.maxProcesses
	}
	if changed("batch-size") {
		cfg.BatchSize = f.batchSize
	}
	if changed("engine-url") {
		cfg.Engine = engine.Config{URL: f.engineURL, Headers: cfg.Engine.Headers, Tool: cfg.Engine.Tool}
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
