// Package config holds the evaluation configuration: built-in defaults,
// EVAL_* environment overrides and an optional EvalConfig file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"k8s.io/utils/ptr"
	"sigs.k8s.io/yaml"

	"github.com/mcpchecker/wfeval/pkg/checkpoint"
	"github.com/mcpchecker/wfeval/pkg/engine"
	"github.com/mcpchecker/wfeval/pkg/layer"
	"github.com/mcpchecker/wfeval/pkg/llmjudge"
	"github.com/mcpchecker/wfeval/pkg/retry"
	"github.com/mcpchecker/wfeval/pkg/scheduler"
	"github.com/mcpchecker/wfeval/pkg/util"
)

const (
	Kind = "EvalConfig"

	DefaultDataDir   = "workflow_generation_eval_data"
	DefaultOutputDir = "evaluation_output"
	DefaultEngineURL = "http://localhost:8090/mcp"
)

const (
	EnvMaxProcesses = "EVAL_MAX_PROCESSES"
	EnvBatchSize    = "EVAL_BATCH_SIZE"
	EnvMaxRetries   = "EVAL_MAX_RETRIES"
	EnvLayers       = "EVAL_LAYERS"
	EnvJudgeModel   = "EVAL_JUDGE_MODEL"
	EnvEngineURL    = "EVAL_ENGINE_URL"
)

// Config is the complete evaluation configuration. It is built once and not
// modified by the pipeline.
type Config struct {
	util.TypeMeta `json:",inline"`

	DataDir   string `json:"dataDir"`
	OutputDir string `json:"outputDir"`

	// MaxProcesses bounds concurrent items. Zero or less picks a count from the
	// available CPUs and memory.
	MaxProcesses      int `json:"maxProcesses"`
	BatchSize         int `json:"batchSize"`
	MemoryPerWorkerMB int `json:"memoryPerWorkerMB"`

	MaxRetries    int      `json:"maxRetries"`
	RetryDelay    Duration `json:"retryDelay"`
	BackoffFactor float64  `json:"backoffFactor"`
	// RetryUnknown also retries unknown errors.
	RetryUnknown bool `json:"retryUnknown"`

	ExecutionTimeout Duration `json:"executionTimeout"`
	JudgeTimeout     Duration `json:"judgeTimeout"`
	InputSets        int      `json:"inputSets"`

	Layers            []int               `json:"layers"`
	CheckpointBackend string              `json:"checkpointBackend"`
	StructureGate     layer.StructureGate `json:"structureGate"`

	Judge     llmjudge.Config `json:"judge"`
	Generator llmjudge.Config `json:"generator"`
	Engine    engine.Config   `json:"engine"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		TypeMeta: util.TypeMeta{
			APIVersion: util.APIVersionV1Alpha1,
			Kind:       Kind,
		},
		DataDir:           DefaultDataDir,
		OutputDir:         DefaultOutputDir,
		MaxProcesses:      scheduler.DefaultMaxWorkers,
		BatchSize:         scheduler.DefaultBatchSize,
		MemoryPerWorkerMB: int(scheduler.DefaultMemoryPerWorker >> 20),
		MaxRetries:        3,
		RetryDelay:        Seconds(2),
		BackoffFactor:     2,
		ExecutionTimeout:  Duration{layer.DefaultExecutionTimeout},
		JudgeTimeout:      Duration{llmjudge.DefaultTimeout},
		InputSets:         layer.DefaultInputSets,
		Layers:            []int{layer.Structure, layer.Execution, layer.Quality},
		CheckpointBackend: checkpoint.BackendFile,
		StructureGate:     layer.StructureGate{Enabled: false, MinScore: 5},
		Judge: llmjudge.Config{
			Provider:    llmjudge.ProviderOpenAI,
			Model:       llmjudge.DefaultModel,
			Temperature: ptr.To(llmjudge.DefaultTemperature),
		},
		Generator: llmjudge.Config{
			Provider:    llmjudge.ProviderOpenAI,
			Model:       llmjudge.DefaultModel,
			Temperature: ptr.To(0.2),
		},
		Engine: engine.Config{
			URL: DefaultEngineURL,
		},
	}
}

func (c *Config) UnmarshalJSON(data []byte) error {
	type Doppleganger Config

	tmp := (*Doppleganger)(c)
	return util.UnmarshalWithKind(data, tmp, Kind)
}

// Load builds the configuration from defaults, then the environment, then the
// file at path when path is not empty. The result is validated.
func Load(path string) (Config, error) {
	cfg, err := FromEnv(Default(), os.LookupEnv)
	if err != nil {
		return Config{}, err
	}

	if path != "" {
		cfg, err = FromFile(cfg, path)
		if err != nil {
			return Config{}, err
		}
	}

	return cfg, cfg.Validate()
}

// FromEnv applies EVAL_* overrides to base.
func FromEnv(base Config, lookup func(string) (string, bool)) (Config, error) {
	cfg := base.clone()
	var errs []error

	intVar := func(name string, target *int) {
		v, ok := lookup(name)
		if !ok || v == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s '%s': %w", name, v, err))
			return
		}
		*target = n
	}

	intVar(EnvMaxProcesses, &cfg.MaxProcesses)
	intVar(EnvBatchSize, &cfg.BatchSize)
	intVar(EnvMaxRetries, &cfg.MaxRetries)

	if v, ok := lookup(EnvLayers); ok && v != "" {
		layers, err := ParseLayers(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", EnvLayers, err))
		} else {
			cfg.Layers = layers
		}
	}
	if v, ok := lookup(EnvJudgeModel); ok && v != "" {
		cfg.Judge.Model = v
	}
	if v, ok := lookup(EnvEngineURL); ok && v != "" {
		cfg.Engine = engine.Config{URL: v, Headers: cfg.Engine.Headers}
	}

	return cfg, errors.Join(errs...)
}

// FromFile overlays the EvalConfig file at path onto base. Fields missing from
// the file keep their base value. Relative directories are resolved against the
// file's directory.
func FromFile(base Config, path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for '%s': %w", path, err)
	}

	return Read(base, data, filepath.Dir(absPath))
}

// Read overlays a YAML or JSON EvalConfig document onto base.
func Read(base Config, data []byte, basePath string) (Config, error) {
	cfg := base.clone()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	// only directories set by the file are relative to it
	paths := struct {
		DataDir   *string `json:"dataDir"`
		OutputDir *string `json:"outputDir"`
	}{}
	if err := yaml.Unmarshal(data, &paths); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if paths.DataDir != nil {
		resolvePath(&cfg.DataDir, basePath)
	}
	if paths.OutputDir != nil {
		resolvePath(&cfg.OutputDir, basePath)
	}

	return cfg, nil
}

func resolvePath(p *string, basePath string) {
	if *p == "" || filepath.IsAbs(*p) || basePath == "" {
		return
	}
	*p = filepath.Join(basePath, *p)
}

// ParseLayers parses a comma separated layer list such as "1,2,3".
func ParseLayers(s string) ([]int, error) {
	var layers []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid layer '%s'", part)
		}
		layers = append(layers, n)
	}
	if len(layers) == 0 {
		return nil, fmt.Errorf("no layers given")
	}
	return layers, nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	errs := []error{c.TypeMeta.Validate(Kind)}

	if c.DataDir == "" {
		errs = append(errs, fmt.Errorf("dataDir is required"))
	}
	if c.OutputDir == "" {
		errs = append(errs, fmt.Errorf("outputDir is required"))
	}
	if c.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("batchSize must be at least 1, got %d", c.BatchSize))
	}
	if c.MemoryPerWorkerMB < 0 {
		errs = append(errs, fmt.Errorf("memoryPerWorkerMB must not be negative"))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("maxRetries must not be negative, got %d", c.MaxRetries))
	}
	if c.RetryDelay.Duration < 0 {
		errs = append(errs, fmt.Errorf("retryDelay must not be negative"))
	}
	if c.BackoffFactor < 1 {
		errs = append(errs, fmt.Errorf("backoffFactor must be at least 1, got %v", c.BackoffFactor))
	}
	if c.ExecutionTimeout.Duration <= 0 {
		errs = append(errs, fmt.Errorf("executionTimeout must be positive"))
	}
	if c.JudgeTimeout.Duration <= 0 {
		errs = append(errs, fmt.Errorf("judgeTimeout must be positive"))
	}
	if c.InputSets < 1 {
		errs = append(errs, fmt.Errorf("inputSets must be at least 1, got %d", c.InputSets))
	}

	if len(c.Layers) == 0 {
		errs = append(errs, fmt.Errorf("at least one layer is required"))
	}
	seen := map[int]bool{}
	for _, l := range c.Layers {
		if !layer.Valid(l) {
			errs = append(errs, fmt.Errorf("unknown layer %d: expected 1, 2 or 3", l))
		}
		if seen[l] {
			errs = append(errs, fmt.Errorf("layer %d listed more than once", l))
		}
		seen[l] = true
	}

	switch c.CheckpointBackend {
	case checkpoint.BackendFile, checkpoint.BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown checkpointBackend '%s': expected %s or %s", c.CheckpointBackend, checkpoint.BackendFile, checkpoint.BackendSQLite))
	}

	if c.StructureGate.Enabled && (c.StructureGate.MinScore < 0 || c.StructureGate.MinScore > 10) {
		errs = append(errs, fmt.Errorf("structureGate.minScore must be between 0 and 10"))
	}

	if err := c.Judge.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("judge: %w", err))
	}
	if err := c.Generator.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("generator: %w", err))
	}
	if c.Generator.Provider != "" && c.Generator.Provider != llmjudge.ProviderOpenAI {
		errs = append(errs, fmt.Errorf("generator: only the %s provider is supported", llmjudge.ProviderOpenAI))
	}
	if c.RunsLayer(layer.Execution) {
		if err := c.Engine.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("engine: %w", err))
		}
	}

	return errors.Join(errs...)
}

// RunsLayer reports whether layer n is enabled.
func (c *Config) RunsLayer(n int) bool {
	return slices.Contains(c.Layers, n)
}

// SortedLayers returns the enabled layers in execution order.
func (c *Config) SortedLayers() []int {
	layers := slices.Clone(c.Layers)
	slices.Sort(layers)
	return layers
}

func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxRetries:    c.MaxRetries,
		Delay:         c.RetryDelay.Duration,
		BackoffFactor: c.BackoffFactor,
		RetryUnknown:  c.RetryUnknown,
	}
}

// JudgeConfig returns the judge config with defaults and the judge timeout applied.
func (c *Config) JudgeConfig() llmjudge.Config {
	j := c.Judge
	j.Timeout = c.JudgeTimeout.Duration
	return j.WithDefaults()
}

// GeneratorConfig returns the generator config with defaults applied. The
// generator shares the judge timeout.
func (c *Config) GeneratorConfig() llmjudge.Config {
	g := c.Generator
	g.Timeout = c.JudgeTimeout.Duration
	return g.WithDefaults()
}

// MemoryPerWorker is MemoryPerWorkerMB in bytes.
func (c *Config) MemoryPerWorker() uint64 {
	return uint64(c.MemoryPerWorkerMB) << 20
}

// CheckpointDir is where checkpoints for this configuration live.
func (c *Config) CheckpointDir() string {
	return filepath.Join(c.OutputDir, checkpoint.Dir)
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// WriteSample writes the default configuration to path.
func WriteSample(path string) error {
	cfg := Default()
	data, err := cfg.Marshal()
	if err != nil {
		return fmt.Errorf("failed to render sample config: %w", err)
	}
	if err := util.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write sample config: %w", err)
	}
	return nil
}

func (c Config) clone() Config {
	c.Layers = slices.Clone(c.Layers)
	c.Engine.Args = slices.Clone(c.Engine.Args)
	c.Engine.Env = cloneMap(c.Engine.Env)
	c.Engine.Headers = cloneMap(c.Engine.Headers)
	if c.Judge.Temperature != nil {
		c.Judge.Temperature = ptr.To(*c.Judge.Temperature)
	}
	if c.Generator.Temperature != nil {
		c.Generator.Temperature = ptr.To(*c.Generator.Temperature)
	}
	return c
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Summary is a short human readable description of the effective settings.
func (c *Config) Summary() string {
	return fmt.Sprintf("layers=%v workers=%d batch=%d retries=%d delay=%s timeout=%s backend=%s",
		c.SortedLayers(), c.MaxProcesses, c.BatchSize, c.MaxRetries,
		c.RetryDelay.Round(time.Millisecond), c.ExecutionTimeout.Duration, c.CheckpointBackend)
}
