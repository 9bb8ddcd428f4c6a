package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mcpchecker/wfeval/pkg/layer"
	"github.com/mcpchecker/wfeval/pkg/report"
)

func TestVerifyCommandPassesThresholds(t *testing.T) {
	_, filePath := createTestReportFile(t, sampleReport())

	cmd := NewVerifyCmd()
	// Pipeline success rate is 1/3, layer rates are 2/3 and 1/2
	cmd.SetArgs([]string{filePath, "--pipeline", "0.3", "--layer", "0.5"})

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)

	err := cmd.Execute()
	if err != nil {
		t.Errorf("verify command should pass with low thresholds, got error: %v", err)
	}
	if !strings.Contains(buf.String(), "Result: PASSED") {
		t.Errorf("expected PASSED in output, got:\n%s", buf.String())
	}
}

func TestVerifyCommandFailsPipelineThreshold(t *testing.T) {
	_, filePath := createTestReportFile(t, sampleReport())

	cmd := NewVerifyCmd()
	cmd.SetArgs([]string{filePath, "--pipeline", "0.5"})

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)

	err := cmd.Execute()
	if err == nil {
		t.Error("verify command should fail with high pipeline threshold")
	}
	if !strings.Contains(buf.String(), "Result: FAILED") {
		t.Errorf("expected FAILED in output, got:\n%s", buf.String())
	}
}

func TestVerifyCommandFailsLayerThreshold(t *testing.T) {
	_, filePath := createTestReportFile(t, sampleReport())

	cmd := NewVerifyCmd()
	// Layer 2 success rate is 1/2
	cmd.SetArgs([]string{filePath, "--layer", "0.6"})

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)

	if err := cmd.Execute(); err == nil {
		t.Error("verify command should fail with high layer threshold")
	}
}

func TestVerifyCommandUnknownErrors(t *testing.T) {
	_, filePath := createTestReportFile(t, sampleReport())

	tests := map[string]struct {
		args       []string
		expectPass bool
	}{
		"no limit by default": {
			args:       nil,
			expectPass: true,
		},
		"limit met": {
			args:       []string{"--max-unknown", "1"},
			expectPass: true,
		},
		"limit exceeded": {
			args:       []string{"--max-unknown", "0"},
			expectPass: false,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			cmd := NewVerifyCmd()
			cmd.SetArgs(append([]string{filePath}, tc.args...))
			cmd.SetOut(new(bytes.Buffer))

			err := cmd.Execute()
			if tc.expectPass && err != nil {
				t.Errorf("expected pass, got error: %v", err)
			}
			if !tc.expectPass && err == nil {
				t.Error("expected failure")
			}
		})
	}
}

func TestVerifyCommandQualityThreshold(t *testing.T) {
	rep := sampleReport()
	_, filePath := createTestReportFile(t, rep)

	cmd := NewVerifyCmd()
	// No quality layer ran, so the quality check is skipped
	cmd.SetArgs([]string{filePath, "--quality", "9"})

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)

	if err := cmd.Execute(); err != nil {
		t.Errorf("quality threshold should be skipped without layer 3, got error: %v", err)
	}
	if !strings.Contains(buf.String(), "N/A") {
		t.Errorf("expected skipped quality check in output, got:\n%s", buf.String())
	}
	if rep.Layer(layer.Quality) != nil {
		t.Fatal("sample report must not contain layer 3")
	}
}

func TestVerifyCommandDefaultThresholds(t *testing.T) {
	_, filePath := createTestReportFile(t, sampleReport())

	cmd := NewVerifyCmd()
	// Default thresholds are 0.0, should always pass
	cmd.SetArgs([]string{filePath})

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)

	err := cmd.Execute()
	if err != nil {
		t.Errorf("verify command should pass with default thresholds, got error: %v", err)
	}
}

func TestVerifyCommandExactThreshold(t *testing.T) {
	_, filePath := createTestReportFile(t, sampleReportImproved())

	cmd := NewVerifyCmd()
	// Every rate is exactly 1.0, equal thresholds should pass (>= comparison)
	cmd.SetArgs([]string{filePath, "--pipeline", "1.0", "--layer", "1.0", "--max-unknown", "0"})

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)

	err := cmd.Execute()
	if err != nil {
		t.Errorf("verify command should pass with exact thresholds, got error: %v", err)
	}
}

func TestVerifyCommandFileNotFound(t *testing.T) {
	cmd := NewVerifyCmd()
	cmd.SetArgs([]string{"/nonexistent/path/report.json", "--pipeline", "0.5"})

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)

	err := cmd.Execute()
	if err == nil {
		t.Error("verify command should fail with nonexistent file")
	}
}

func TestVerifyCommandEmptyReport(t *testing.T) {
	_, filePath := createTestReportFile(t, report.Aggregate(nil))

	cmd := NewVerifyCmd()
	cmd.SetArgs([]string{filePath})
	cmd.SetOut(new(bytes.Buffer))

	if err := cmd.Execute(); err != nil {
		t.Errorf("verify command should pass an empty report with default thresholds, got error: %v", err)
	}
}
