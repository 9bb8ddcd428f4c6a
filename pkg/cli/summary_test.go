package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mcpchecker/wfeval/pkg/report"
)

func TestSummaryCommand(t *testing.T) {
	_, filePath := createTestReportFile(t, sampleReport())

	cmd := NewSummaryCmd()
	cmd.SetArgs([]string{filePath})

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)

	err := cmd.Execute()
	if err != nil {
		t.Fatalf("summary command failed: %v", err)
	}
	for _, want := range []string{"Layer 1: structure", "Layer 2: execution", "Unknown errors (1)", "Pipeline success rate: 33.3%"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("expected %q in output, got:\n%s", want, buf.String())
		}
	}
}

func TestSummaryCommandLatestReport(t *testing.T) {
	dir, _ := createTestReportFile(t, sampleReport())

	cmd := NewSummaryCmd()
	cmd.SetArgs([]string{"--output-dir", dir})

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("summary command without a report file failed: %v", err)
	}
	if !strings.Contains(buf.String(), filepath.Join(dir, report.Dir)) {
		t.Errorf("expected the latest report path in output, got:\n%s", buf.String())
	}
}

func TestSummaryCommandNoReport(t *testing.T) {
	cmd := NewSummaryCmd()
	cmd.SetArgs([]string{"--output-dir", t.TempDir()})
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))

	if err := cmd.Execute(); err == nil {
		t.Error("summary command should fail when no report exists")
	}
}

func TestSummaryCommandJSONOutput(t *testing.T) {
	_, filePath := createTestReportFile(t, sampleReport())

	cmd := NewSummaryCmd()
	cmd.SetArgs([]string{filePath, "--output", "json"})

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)

	err := cmd.Execute()
	if err != nil {
		t.Fatalf("summary command with --output json failed: %v", err)
	}

	var rep report.Report
	if err := json.Unmarshal(buf.Bytes(), &rep); err != nil {
		t.Fatalf("summary JSON output does not parse: %v", err)
	}
	if len(rep.Layers) != 2 {
		t.Errorf("expected 2 layers, got %d", len(rep.Layers))
	}
}

func TestSummaryCommandMarkdownOutput(t *testing.T) {
	_, filePath := createTestReportFile(t, sampleReport())

	cmd := NewSummaryCmd()
	cmd.SetArgs([]string{filePath, "--output", "markdown"})

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("summary command with --output markdown failed: %v", err)
	}
	if !strings.Contains(buf.String(), "| 2 execution | 1/2 | 1 | 50.0% | 1 |") {
		t.Errorf("unexpected markdown output:\n%s", buf.String())
	}
}

func TestSummaryCommandGitHubOutput(t *testing.T) {
	_, filePath := createTestReportFile(t, sampleReport())
	outputFile := filepath.Join(t.TempDir(), "github_output")
	t.Setenv("GITHUB_OUTPUT", outputFile)

	cmd := NewSummaryCmd()
	cmd.SetArgs([]string{filePath, "--github-output"})

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)

	err := cmd.Execute()
	if err != nil {
		t.Fatalf("summary command with --github-output failed: %v", err)
	}

	data, err := os.ReadFile(outputFile)
	if err != nil {
		t.Fatalf("failed to read GITHUB_OUTPUT file: %v", err)
	}
	for _, want := range []string{"pipeline-success-rate=0.3333", "layer-2-success-rate=0.5000", "unknown-errors=1"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("expected %q in GitHub output, got:\n%s", want, data)
		}
	}
}

func TestSummaryCommandEmptyReport(t *testing.T) {
	_, filePath := createTestReportFile(t, report.Aggregate(nil))

	cmd := NewSummaryCmd()
	cmd.SetArgs([]string{filePath})

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("summary command with an empty report failed: %v", err)
	}
}
