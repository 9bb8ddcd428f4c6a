package testcase

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mcpchecker/wfeval/functional/servers/engine"
	"github.com/mcpchecker/wfeval/functional/servers/openai"
	"github.com/mcpchecker/wfeval/pkg/cli"
	"github.com/mcpchecker/wfeval/pkg/report"
)

// Runner orchestrates the execution of a test case
type Runner struct {
	tc *TestCase
	t  *testing.T

	// Runtime state
	llmServer *openai.MockOpenAIServer
	engine    *engine.MockEngine
	engineURL string

	dir        string
	dataDir    string
	outputDir  string
	configFile string
}

// RunContext is what assertions inspect after the command ran
type RunContext struct {
	CommandOutput string
	CommandError  error

	OutputDir string
	Report    *report.Report

	Engine    *engine.MockEngine
	LLMServer *openai.MockOpenAIServer
}

// Run executes the test case
func (r *Runner) Run() {
	r.t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := r.setup(); err != nil {
		r.t.Fatalf("test setup failed: %v", err)
	}
	defer r.cleanup()

	if err := r.generateFiles(); err != nil {
		r.t.Fatalf("config generation failed: %v", err)
	}

	runCtx := r.runWfeval(ctx)

	r.runAssertions(runCtx)
}

func (r *Runner) setup() error {
	r.dir = r.t.TempDir()
	r.dataDir = filepath.Join(r.dir, "specs")
	r.outputDir = filepath.Join(r.dir, "output")

	llm := r.tc.llm
	if llm == nil {
		llm = NewLLMBuilder()
	}
	r.llmServer = llm.Build()
	r.llmServer.Start()

	if r.tc.engine != nil {
		r.engine = r.tc.engine.Build()
		url, err := r.engine.Start()
		if err != nil {
			r.llmServer.Close()
			return err
		}
		r.engineURL = url
	}

	r.t.Setenv(EnvAPIKey, "sk-mock-key")
	return nil
}

func (r *Runner) cleanup() {
	if r.engine != nil {
		if err := r.engine.Stop(); err != nil {
			r.t.Logf("failed to stop mock engine: %v", err)
		}
	}
	r.llmServer.Close()
}

func (r *Runner) generateFiles() error {
	if err := r.tc.dataset.Write(r.dataDir); err != nil {
		return err
	}

	var err error
	r.configFile, err = r.tc.config.Write(r.dir, r.dataDir, r.outputDir, r.llmServer.URL(), r.engineURL)
	return err
}

// runWfeval runs the root command in process, as the binary would.
func (r *Runner) runWfeval(ctx context.Context) *RunContext {
	runCtx := &RunContext{
		OutputDir: r.outputDir,
		Engine:    r.engine,
		LLMServer: r.llmServer,
	}

	var out bytes.Buffer
	cmd := cli.NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"run", "--config", r.configFile}, r.tc.args...))

	runCtx.CommandError = cmd.ExecuteContext(ctx)
	runCtx.CommandOutput = out.String()

	if runCtx.CommandError != nil {
		r.t.Logf("wfeval run failed: %v", runCtx.CommandError)
		r.t.Logf("command output:\n%s", runCtx.CommandOutput)
	}

	path, err := report.LatestReport(r.outputDir)
	if err != nil {
		r.t.Logf("no report written: %v", err)
		return runCtx
	}
	rep, err := report.Load(path)
	if err != nil {
		r.t.Logf("warning: failed to parse report: %v", err)
		return runCtx
	}
	runCtx.Report = rep

	return runCtx
}

func (r *Runner) runAssertions(ctx *RunContext) {
	for _, assertion := range r.tc.assertions {
		assertion.Assert(r.t, ctx)
	}
}
