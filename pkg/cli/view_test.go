package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mcpchecker/wfeval/pkg/failure"
	"github.com/mcpchecker/wfeval/pkg/layer"
	"github.com/mcpchecker/wfeval/pkg/report"
)

func writeExecutionResults(t *testing.T) string {
	t.Helper()

	payload, err := json.Marshal(&layer.ExecutionPayload{
		WorkflowID: "wf-a",
		Runs: []layer.ExecutionRun{
			{InputSet: 1, Success: true, Output: json.RawMessage(`{"summary": "short\nsummary"}`)},
			{InputSet: 2, Error: &failure.Record{Kind: failure.KindExpected, Category: failure.CategoryTimeout, Message: "deadline exceeded"}},
		},
		Statistics: layer.ExecutionStatistics{Total: 2, Succeeded: 1, Failed: 1, SuccessRate: 0.5},
	})
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}

	result := layerResult(layer.Execution,
		succeeded("wf-a", layer.Execution, payload),
		failed("wf-b", layer.Execution, failure.KindUnknown),
	)
	path, err := report.WriteLayerResult(t.TempDir(), result)
	if err != nil {
		t.Fatalf("failed to write layer results: %v", err)
	}
	return path
}

func TestViewCommand(t *testing.T) {
	path := writeExecutionResults(t)

	cmd := NewViewCmd()
	cmd.SetArgs([]string{path})

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("view command failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"Layer 2: execution (1/2 succeeded)", "Item: wf-a", "Runs: 1/2 succeeded", "✓ set 1", "✗ set 2", "Item: wf-b", "Kind: unknown_error/validation"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Trace:") {
		t.Error("trace should only be shown with --trace")
	}
}

func TestViewCommandFilters(t *testing.T) {
	path := writeExecutionResults(t)

	tests := map[string]struct {
		args      []string
		expectErr bool
		expect    []string
		reject    []string
	}{
		"failed only with trace": {
			args:   []string{"--failed", "--trace"},
			expect: []string{"Item: wf-b", "Trace:", "error chain:"},
			reject: []string{"Item: wf-a"},
		},
		"item filter": {
			args:   []string{"--item", "WF-A"},
			expect: []string{"Item: wf-a"},
			reject: []string{"Item: wf-b"},
		},
		"no match": {
			args:      []string{"--item", "missing"},
			expectErr: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			cmd := NewViewCmd()
			cmd.SetArgs(append([]string{path}, tc.args...))
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(new(bytes.Buffer))

			err := cmd.Execute()
			if tc.expectErr {
				if err == nil {
					t.Error("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("view command failed: %v", err)
			}
			for _, want := range tc.expect {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("expected %q in output, got:\n%s", want, buf.String())
				}
			}
			for _, unwanted := range tc.reject {
				if strings.Contains(buf.String(), unwanted) {
					t.Errorf("did not expect %q in output, got:\n%s", unwanted, buf.String())
				}
			}
		})
	}
}

func TestLimitMultiline(t *testing.T) {
	tests := map[string]struct {
		raw       string
		maxLines  int
		maxLength int
		expected  string
	}{
		"empty": {
			raw:      "\n",
			expected: "",
		},
		"unlimited": {
			raw:      "a\nb\nc",
			expected: "a\nb\nc",
		},
		"line limit": {
			raw:      "a\nb\nc\nd",
			maxLines: 2,
			expected: "a\nb\n… (+2 lines)",
		},
		"wrapped": {
			raw:       "one two three",
			maxLength: 8,
			expected:  "one two\nthree",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got := limitMultiline(tc.raw, tc.maxLines, tc.maxLength)
			if got != tc.expected {
				t.Errorf("limitMultiline(%q) = %q, want %q", tc.raw, got, tc.expected)
			}
		})
	}
}

func TestTruncateString(t *testing.T) {
	if got := truncateString("hello world", 6); got != "hello…" {
		t.Errorf("unexpected truncation: %q", got)
	}
	if got := truncateString("short", 10); got != "short" {
		t.Errorf("short strings must not change: %q", got)
	}
	if got := truncateString("anything", 0); got != "anything" {
		t.Errorf("zero limit must not truncate: %q", got)
	}
}
