package testcase

import (
	"fmt"
	"os"
	"path/filepath"

	"sigs.k8s.io/yaml"

	"github.com/mcpchecker/wfeval/pkg/config"
	"github.com/mcpchecker/wfeval/pkg/util"
)

// EnvAPIKey names the API key variable the generated config points the
// generator and judge at.
const EnvAPIKey = "WFEVAL_E2E_API_KEY"

// ConfigBuilder configures the eval config file written for a test case
type ConfigBuilder struct {
	layers       []int
	maxProcesses int
	batchSize    int
	inputSets    int
	maxRetries   int
	extra        map[string]any
}

// NewConfigBuilder creates a config running every layer with small batches
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{
		layers:       []int{1, 2, 3},
		maxProcesses: 2,
		batchSize:    5,
		inputSets:    1,
		maxRetries:   1,
		extra:        make(map[string]any),
	}
}

// Layers sets the enabled layers
func (b *ConfigBuilder) Layers(layers ...int) *ConfigBuilder {
	b.layers = layers
	return b
}

// MaxProcesses sets the worker count
func (b *ConfigBuilder) MaxProcesses(n int) *ConfigBuilder {
	b.maxProcesses = n
	return b
}

// BatchSize sets the checkpoint batch size
func (b *ConfigBuilder) BatchSize(n int) *ConfigBuilder {
	b.batchSize = n
	return b
}

// InputSets sets the number of sample input sets per workflow
func (b *ConfigBuilder) InputSets(n int) *ConfigBuilder {
	b.inputSets = n
	return b
}

// MaxRetries sets the retry budget for transient errors
func (b *ConfigBuilder) MaxRetries(n int) *ConfigBuilder {
	b.maxRetries = n
	return b
}

// Set writes an arbitrary top level key
func (b *ConfigBuilder) Set(key string, value any) *ConfigBuilder {
	b.extra[key] = value
	return b
}

// Build returns the config document
func (b *ConfigBuilder) Build(dataDir, outputDir, llmURL, engineURL string) map[string]any {
	model := map[string]any{
		"provider":  "openai",
		"model":     "gpt-4o",
		"baseUrl":   llmURL,
		"apiKeyEnv": EnvAPIKey,
	}

	doc := map[string]any{
		"apiVersion":    util.APIVersionV1Alpha1,
		"kind":          config.Kind,
		"dataDir":       dataDir,
		"outputDir":     outputDir,
		"layers":        b.layers,
		"maxProcesses":  b.maxProcesses,
		"batchSize":     b.batchSize,
		"inputSets":     b.inputSets,
		"maxRetries":    b.maxRetries,
		"retryDelay":    "10ms",
		"backoffFactor": 1,
		"judge":         model,
		"generator":     model,
	}
	if engineURL != "" {
		doc["engine"] = map[string]any{"url": engineURL}
	}
	for k, v := range b.extra {
		doc[k] = v
	}
	return doc
}

// Write writes the config document to dir/eval-config.yaml
func (b *ConfigBuilder) Write(dir, dataDir, outputDir, llmURL, engineURL string) (string, error) {
	data, err := yaml.Marshal(b.Build(dataDir, outputDir, llmURL, engineURL))
	if err != nil {
		return "", fmt.Errorf("failed to marshal eval config: %w", err)
	}

	path := filepath.Join(dir, "eval-config.yaml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write eval config: %w", err)
	}
	return path, nil
}
