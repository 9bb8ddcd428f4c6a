package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mcpchecker/wfeval/pkg/layer"
	"github.com/mcpchecker/wfeval/pkg/report"
	"github.com/mcpchecker/wfeval/pkg/scheduler"
)

const (
	defaultMaxTraceLines = 12
	defaultMaxLineLength = 100
)

// NewViewCmd creates the view command for rendering layer results.
func NewViewCmd() *cobra.Command {
	var (
		itemFilter    string
		failedOnly    bool
		showTrace     bool
		maxTraceLines = defaultMaxTraceLines
		maxLineLength = defaultMaxLineLength
	)

	cmd := &cobra.Command{
		Use:   "view <layer-results-file>",
		Short: "Pretty-print the item outcomes of a layer results file",
		Long: `Render a layer_<n>_<name>_evaluation.json file written by "wfeval run" in a
human-friendly format.

Examples:
  wfeval view evaluation_output/results/layer_2_execution_evaluation.json
  wfeval view --failed --trace --item wf-12 evaluation_output/results/layer_1_structure_evaluation.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := report.LoadLayerResult(args[0])
			if err != nil {
				return err
			}

			items := filterItems(result.Items, itemFilter, failedOnly)
			if len(items) == 0 {
				if itemFilter == "" && !failedOnly {
					return errors.New("no items found in results")
				}
				return fmt.Errorf("no items matched filter %q", itemFilter)
			}

			out := cmd.OutOrStdout()
			_, _ = color.New(color.Bold).Fprintf(out, "Layer %d: %s (%d/%d succeeded)\n\n", result.Layer, result.Name, result.Succeeded, result.Total)
			for idx, item := range items {
				if idx > 0 {
					fmt.Fprintln(out)
				}
				printItem(out, result.Layer, item, viewOptions{
					showTrace:     showTrace,
					maxTraceLines: maxTraceLines,
					maxLineLength: maxLineLength,
				})
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&itemFilter, "item", "", "Only show items whose id contains this value")
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "Only show failed items")
	cmd.Flags().BoolVar(&showTrace, "trace", false, "Include the error chain and stack of failures")
	cmd.Flags().IntVar(&maxTraceLines, "max-trace-lines", maxTraceLines, "Maximum trace lines to display (0 = unlimited)")
	cmd.Flags().IntVar(&maxLineLength, "max-line-length", maxLineLength, "Maximum characters per line")

	return cmd
}

type viewOptions struct {
	showTrace     bool
	maxTraceLines int
	maxLineLength int
}

func filterItems(items []report.ItemResult, filter string, failedOnly bool) []report.ItemResult {
	filter = strings.ToLower(filter)
	filtered := make([]report.ItemResult, 0, len(items))
	for _, item := range items {
		if failedOnly && item.Status != scheduler.StatusFailed {
			continue
		}
		if filter != "" && !strings.Contains(strings.ToLower(item.ID), filter) {
			continue
		}
		filtered = append(filtered, item)
	}
	return filtered
}

func printItem(out io.Writer, layerN int, item report.ItemResult, opts viewOptions) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)

	_, _ = bold.Fprintf(out, "Item: %s\n", item.ID)

	switch item.Status {
	case scheduler.StatusSuccess:
		_, _ = green.Fprintln(out, "  Status: SUCCESS")
		printPayload(out, layerN, item.Payload, opts)
	case scheduler.StatusFailed:
		_, _ = red.Fprintln(out, "  Status: FAILED")
	default:
		_, _ = yellow.Fprintf(out, "  Status: %s\n", strings.ToUpper(string(item.Status)))
	}

	if f := item.Failure; f != nil {
		fmt.Fprintf(out, "  Kind: %s/%s\n", f.Kind, f.Category)
		fmt.Fprintf(out, "  Module: %s\n", f.Module)
		if f.Type != "" {
			fmt.Fprintf(out, "  Type: %s\n", f.Type)
		}
		if f.Attempts > 0 {
			fmt.Fprintf(out, "  Attempts: %d\n", f.Attempts)
		}
		printMultilineField(out, "Error", limitMultiline(f.Message, 0, opts.maxLineLength))
		if opts.showTrace && f.Trace != "" {
			printMultilineField(out, "Trace", limitMultiline(f.Trace, opts.maxTraceLines, opts.maxLineLength))
		}
	}
}

func printPayload(out io.Writer, layerN int, payload json.RawMessage, opts viewOptions) {
	switch layerN {
	case layer.Structure:
		p := &layer.StructurePayload{}
		if err := json.Unmarshal(payload, p); err != nil {
			return
		}
		if p.GenerationAttempts > 1 {
			fmt.Fprintf(out, "  Generation attempts: %d\n", p.GenerationAttempts)
		}
		if s := p.Evaluation; s != nil {
			fmt.Fprintf(out, "  Structure score: %.1f (integrity %.1f, io matching %.1f, decomposition %.1f)\n",
				s.Score, s.Integrity, s.IOMatching, s.Decomposition)
			for _, issue := range s.Issues {
				fmt.Fprintf(out, "    - %s\n", truncateString(issue, opts.maxLineLength))
			}
		}
		if p.JudgeError != nil {
			fmt.Fprintf(out, "  Judge error: %s\n", truncateString(p.JudgeError.Message, opts.maxLineLength))
		}

	case layer.Execution:
		p, err := layer.ExecutionFromPayload(payload)
		if err != nil {
			return
		}
		fmt.Fprintf(out, "  Runs: %d/%d succeeded (avg %.2fs)\n", p.Statistics.Succeeded, p.Statistics.Total, p.Statistics.AverageExecutionTime)
		for _, run := range p.Runs {
			if run.Success {
				fmt.Fprintf(out, "    ✓ set %d: %s\n", run.InputSet, truncateString(normalizeWhitespace(string(run.Output)), opts.maxLineLength))
			} else if run.Error != nil {
				fmt.Fprintf(out, "    ✗ set %d: %s/%s %s\n", run.InputSet, run.Error.Kind, run.Error.Category, truncateString(run.Error.Message, opts.maxLineLength))
			}
		}

	case layer.Quality:
		p, err := layer.QualityFromPayload(payload)
		if err != nil {
			return
		}
		fmt.Fprintf(out, "  Quality: %.2f (%s)\n", p.OverallScore, p.Assessment)
		for _, dim := range layer.Dimensions {
			if s, ok := p.Dimensions[dim]; ok {
				fmt.Fprintf(out, "    %-13s avg %.1f  min %.1f  max %.1f\n", dim+":", s.Average, s.Min, s.Max)
			}
		}
	}
}

func limitMultiline(raw string, maxLines, maxLineLength int) string {
	raw = strings.TrimRight(raw, "\n")
	if raw == "" {
		return ""
	}

	lines := strings.Split(raw, "\n")
	limited := make([]string, 0, len(lines))
	for idx, line := range lines {
		if maxLines > 0 && idx >= maxLines {
			limited = append(limited, fmt.Sprintf("… (+%d lines)", len(lines)-idx))
			break
		}
		if maxLineLength > 0 {
			limited = append(limited, strings.Split(wrapText(line, maxLineLength), "\n")...)
		} else {
			limited = append(limited, line)
		}
	}
	return strings.Join(limited, "\n")
}

func truncateString(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 1 {
		return s[:max]
	}
	return fmt.Sprintf("%s…", strings.TrimSpace(s[:max-1]))
}

func indentBlock(block, indent string) string {
	lines := strings.Split(block, "\n")
	for i, line := range lines {
		lines[i] = indent + line
	}
	return strings.Join(lines, "\n")
}

func normalizeWhitespace(in string) string {
	in = strings.ReplaceAll(in, "\n", " ")
	in = strings.ReplaceAll(in, "\t", " ")
	return strings.Join(strings.Fields(in), " ")
}

func wrapText(s string, width int) string {
	if width <= 0 || len(s) <= width {
		return s
	}

	var b strings.Builder
	lineLen := 0
	for _, word := range strings.Fields(s) {
		if lineLen > 0 && lineLen+1+len(word) > width {
			b.WriteString("\n")
			lineLen = 0
		} else if lineLen > 0 {
			b.WriteString(" ")
			lineLen++
		}
		b.WriteString(word)
		lineLen += len(word)
	}
	return b.String()
}

func printMultilineField(out io.Writer, label, value string) {
	if value == "" {
		return
	}
	if !strings.Contains(value, "\n") {
		fmt.Fprintf(out, "  %s: %s\n", label, value)
		return
	}
	fmt.Fprintf(out, "  %s:\n", label)
	fmt.Fprintln(out, indentBlock(value, "    "))
}
