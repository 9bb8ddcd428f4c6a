package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestDiffCommand(t *testing.T) {
	_, baseFile := createTestReportFile(t, sampleReport())
	_, currentFile := createTestReportFile(t, sampleReportImproved())

	cmd := NewDiffCmd()
	cmd.SetArgs([]string{"--base", baseFile, "--current", currentFile})

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)

	err := cmd.Execute()
	if err != nil {
		t.Fatalf("diff command failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Improvements (2)") {
		t.Errorf("expected 2 improvements in output, got:\n%s", buf.String())
	}
}

func TestDiffCommandMarkdown(t *testing.T) {
	_, baseFile := createTestReportFile(t, sampleReport())
	_, currentFile := createTestReportFile(t, sampleReportImproved())

	cmd := NewDiffCmd()
	cmd.SetArgs([]string{"--base", baseFile, "--current", currentFile, "--output", "markdown"})

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)

	err := cmd.Execute()
	if err != nil {
		t.Fatalf("diff command with --output markdown failed: %v", err)
	}
	if !strings.Contains(buf.String(), "| Pipeline |") {
		t.Errorf("expected markdown table in output, got:\n%s", buf.String())
	}
}

func TestDiffCommandBaseNotFound(t *testing.T) {
	_, currentFile := createTestReportFile(t, sampleReport())

	cmd := NewDiffCmd()
	cmd.SetArgs([]string{"--base", "/nonexistent/path/base.json", "--current", currentFile})

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)

	err := cmd.Execute()
	if err == nil {
		t.Error("diff command should fail with nonexistent base file")
	}
}

func TestDiffCommandCurrentNotFound(t *testing.T) {
	_, baseFile := createTestReportFile(t, sampleReport())

	cmd := NewDiffCmd()
	cmd.SetArgs([]string{"--base", baseFile, "--current", "/nonexistent/path/current.json"})

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)

	err := cmd.Execute()
	if err == nil {
		t.Error("diff command should fail with nonexistent current file")
	}
}

func TestDiffCommandInvalidFormat(t *testing.T) {
	_, baseFile := createTestReportFile(t, sampleReport())

	cmd := NewDiffCmd()
	cmd.SetArgs([]string{"--base", baseFile, "--current", baseFile, "--output", "xml"})
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))

	if err := cmd.Execute(); err == nil {
		t.Error("diff command should fail with an unknown output format")
	}
}

func TestCalculateDiff(t *testing.T) {
	diff := calculateDiff(sampleReport(), sampleReportImproved())

	if len(diff.Regressions) != 0 {
		t.Errorf("expected no regressions, got %d", len(diff.Regressions))
	}

	improved := map[string]bool{}
	for _, d := range diff.Improvements {
		improved[d.ItemID] = true
	}
	if len(improved) != 2 || !improved["wf-b"] || !improved["wf-c"] {
		t.Errorf("expected wf-b (layer 2) and wf-c (layer 1) to improve, got %+v", diff.Improvements)
	}

	if len(diff.New) != 1 || diff.New[0].ItemID != "wf-c" || diff.New[0].Layer != 2 {
		t.Errorf("expected wf-c to be new in layer 2, got %+v", diff.New)
	}

	if len(diff.Layers) != 2 {
		t.Fatalf("expected 2 compared layers, got %d", len(diff.Layers))
	}
	if diff.Layers[1].HeadRate != 1.0 || diff.Layers[1].BaseRate != 0.5 {
		t.Errorf("unexpected layer 2 rates: %+v", diff.Layers[1])
	}

	reverse := calculateDiff(sampleReportImproved(), sampleReport())
	if len(reverse.Regressions) != 2 {
		t.Errorf("expected 2 regressions in reverse diff, got %d", len(reverse.Regressions))
	}
	if len(reverse.Removed) != 1 || reverse.Removed[0].ItemID != "wf-c" {
		t.Errorf("expected wf-c removed from layer 2, got %+v", reverse.Removed)
	}
}
