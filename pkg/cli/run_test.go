package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mcpchecker/wfeval/pkg/eval"
)

const specFile = `workflow_id: %s
workflow_name: summarize
workflow_requirement: Summarize the article
workflow_inputs:
  - name: article
    type: string
workflow_outputs:
  - name: summary
    type: string
`

func writeDataset(t *testing.T, ids ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, id := range ids {
		content := fmt.Sprintf(specFile, id)
		if err := os.WriteFile(filepath.Join(dir, id+".yaml"), []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write spec: %v", err)
		}
	}
	return dir
}

func TestRunCommandDryRun(t *testing.T) {
	dataDir := writeDataset(t, "wf-a", "wf-b", "wf-c")
	outputDir := t.TempDir()

	cmd := NewRunCmd()
	cmd.SetArgs([]string{"--dry-run", "--data-dir", dataDir, "--output-dir", outputDir, "--layers", "1,2", "--max-processes", "2", "--batch-size", "2"})

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("dry run failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"Workflows:        3", "Workers:          2", "Batch size:       2", "Layer 1 (structure): 3 items, 3 remaining", "Layer 2 (execution)"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Layer 3") {
		t.Errorf("layer 3 is not enabled, got:\n%s", out)
	}
}

func TestRunCommandDryRunJSON(t *testing.T) {
	dataDir := writeDataset(t, "wf-a")

	cmd := NewRunCmd()
	cmd.SetArgs([]string{"--dry-run", "-o", "json", "--data-dir", dataDir, "--output-dir", t.TempDir(), "--layers", "1"})

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("dry run failed: %v", err)
	}

	var plan eval.Plan
	if err := json.Unmarshal(buf.Bytes(), &plan); err != nil {
		t.Fatalf("plan JSON does not parse: %v", err)
	}
	if plan.Workflows != 1 || len(plan.Layers) != 1 {
		t.Errorf("unexpected plan: %+v", plan)
	}
}

func TestRunCommandErrors(t *testing.T) {
	dataDir := writeDataset(t, "wf-a")

	tests := map[string]struct {
		args      []string
		expectErr string
	}{
		"invalid layers": {
			args:      []string{"--dry-run", "--data-dir", dataDir, "--layers", "1,4"},
			expectErr: "invalid",
		},
		"missing data dir": {
			args:      []string{"--dry-run", "--data-dir", filepath.Join(dataDir, "missing")},
			expectErr: "failed to read data directory",
		},
		"invalid batch size": {
			args:      []string{"--dry-run", "--data-dir", dataDir, "--batch-size", "0"},
			expectErr: "batchSize must be at least 1",
		},
		"missing config file": {
			args:      []string{"--dry-run", "--config", filepath.Join(dataDir, "missing.yaml")},
			expectErr: "failed to read config file",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			cmd := NewRunCmd()
			cmd.SetArgs(append(tc.args, "--output-dir", t.TempDir()))
			cmd.SetOut(new(bytes.Buffer))
			cmd.SetErr(new(bytes.Buffer))

			err := cmd.Execute()
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tc.expectErr) {
				t.Errorf("expected error containing %q, got %v", tc.expectErr, err)
			}
		})
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := NewRootCmd()
	for _, name := range []string{"run", "status", "clean", "init-config", "verify", "summary", "diff", "view"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("expected subcommand %q to be registered", name)
		}
	}
}

func TestRootCommandLeavesErrorReportingToCaller(t *testing.T) {
	dataDir := writeDataset(t, "wf-a")

	root := NewRootCmd()
	root.SetArgs([]string{"run", "--dry-run", "--data-dir", filepath.Join(dataDir, "missing"), "--output-dir", t.TempDir()})
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "failed to read data directory") {
		t.Errorf("unexpected error: %v", err)
	}
	for name, buf := range map[string]*bytes.Buffer{"stdout": stdout, "stderr": stderr} {
		if strings.Contains(buf.String(), "Error:") {
			t.Errorf("expected %s to carry no error line, got %q", name, buf.String())
		}
	}
}
