package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mcpchecker/wfeval/pkg/report"
)

// NewSummaryCmd creates the summary command
func NewSummaryCmd() *cobra.Command {
	var (
		flags        configFlags
		outputFormat string
		githubOutput bool
	)

	cmd := &cobra.Command{
		Use:   "summary [report-file]",
		Short: "Summarize an evaluation report",
		Long: `Print the layer summaries, quality scores, error distribution and
recommendations of a comprehensive evaluation report.

Without a report file the latest report in the output directory is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := reportPath(cmd, &flags, args)
			if err != nil {
				return err
			}

			rep, err := report.Load(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if githubOutput {
				return writeGitHubOutput(out, rep)
			}

			switch outputFormat {
			case "json":
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				return encoder.Encode(rep)
			case "text":
				fmt.Fprintf(out, "Report: %s\n", path)
				printReport(out, rep)
				return nil
			case "markdown":
				printMarkdownReport(out, rep)
				return nil
			default:
				return fmt.Errorf("unknown output format: %s", outputFormat)
			}
		},
	}

	flags.addStorageFlags(cmd)
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "text", "Output format (text, json, markdown)")
	cmd.Flags().BoolVar(&githubOutput, "github-output", false, "Write key=value pairs for GitHub Actions ($GITHUB_OUTPUT when set)")

	return cmd
}

// reportPath returns args[0], or the latest report of the configured output
// directory.
func reportPath(cmd *cobra.Command, flags *configFlags, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	cfg, err := flags.load(cmd)
	if err != nil {
		return "", err
	}
	return report.LatestReport(cfg.OutputDir)
}

func printReport(out io.Writer, rep *report.Report) {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)
	bold := color.New(color.Bold)

	fmt.Fprintln(out)
	_, _ = bold.Fprintln(out, "=== Results Summary ===")
	fmt.Fprintln(out)

	for _, s := range rep.Summaries {
		fmt.Fprintf(out, "Layer %d: %s\n", s.Layer, s.Name)
		c := yellow
		switch {
		case s.Failed == 0:
			c = green
		case s.Succeeded == 0:
			c = red
		}
		_, _ = c.Fprintf(out, "  Succeeded: %d/%d (%.1f%%)\n", s.Succeeded, s.Total, s.SuccessRate*100)
		if s.Failed > 0 {
			fmt.Fprintf(out, "  Failed:    %d (expected %d, unknown %d)\n", s.Failed, s.ExpectedFailures, s.UnknownFailures)
		}
		fmt.Fprintln(out)
	}

	_, _ = bold.Fprintln(out, "=== Overall Statistics ===")
	o := rep.Overall
	fmt.Fprintf(out, "Test cases:            %d\n", o.TotalItems)
	fmt.Fprintf(out, "Workflows generated:   %d\n", o.WorkflowsGenerated)
	fmt.Fprintf(out, "Workflows executed:    %d\n", o.WorkflowsExecuted)
	fmt.Fprintf(out, "Outputs evaluated:     %d\n", o.OutputEvaluations)
	fmt.Fprintf(out, "Pipeline success rate: %.1f%%\n", o.PipelineSuccessRate*100)
	if o.AverageQualityScore != nil {
		fmt.Fprintf(out, "Average quality score: %.2f/10\n", *o.AverageQualityScore)
		for _, dim := range sortedKeys(o.DimensionAverages) {
			fmt.Fprintf(out, "  %-13s %.2f\n", dim+":", o.DimensionAverages[dim])
		}
	}

	if len(o.Errors.ByCategory) > 0 {
		fmt.Fprintln(out)
		_, _ = bold.Fprintln(out, "=== Errors ===")
		for _, kind := range sortedKeys(o.Errors.ByKind) {
			fmt.Fprintf(out, "%s: %d\n", kind, o.Errors.ByKind[kind])
		}
		for _, category := range sortedKeys(o.Errors.ByCategory) {
			fmt.Fprintf(out, "  %s: %d\n", category, o.Errors.ByCategory[category])
		}
	}

	if len(rep.UnknownErrors) > 0 {
		fmt.Fprintln(out)
		_, _ = red.Fprintf(out, "Unknown errors (%d):\n", len(rep.UnknownErrors))
		for _, e := range rep.UnknownErrors {
			fmt.Fprintf(out, "  - layer %d %s (%s): %s\n", e.Layer, e.ItemID, e.Type, truncateString(e.Message, defaultMaxLineLength))
		}
	}

	if len(rep.Recommendations) > 0 {
		fmt.Fprintln(out)
		_, _ = bold.Fprintln(out, "=== Recommendations ===")
		for _, r := range rep.Recommendations {
			fmt.Fprintf(out, "- %s\n", r)
		}
	}
}

func printMarkdownReport(out io.Writer, rep *report.Report) {
	fmt.Fprintln(out, "### 📊 Workflow Evaluation")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "| Layer | Succeeded | Failed | Success Rate | Unknown Errors |")
	fmt.Fprintln(out, "|-------|-----------|--------|--------------|----------------|")
	for _, s := range rep.Summaries {
		fmt.Fprintf(out, "| %d %s | %d/%d | %d | %.1f%% | %d |\n",
			s.Layer, s.Name, s.Succeeded, s.Total, s.Failed, s.SuccessRate*100, s.UnknownFailures)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "**Pipeline success rate:** %.1f%%\n", rep.Overall.PipelineSuccessRate*100)
	if q := rep.Overall.AverageQualityScore; q != nil {
		fmt.Fprintf(out, "\n**Average quality score:** %.2f/10\n", *q)
	}
	if len(rep.Recommendations) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "#### Recommendations")
		for _, r := range rep.Recommendations {
			fmt.Fprintf(out, "- %s\n", r)
		}
	}
}

func writeGitHubOutput(out io.Writer, rep *report.Report) error {
	if path := os.Getenv("GITHUB_OUTPUT"); path != "" {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open GITHUB_OUTPUT: %w", err)
		}
		defer f.Close()
		out = f
	}

	fmt.Fprintf(out, "pipeline-success-rate=%.4f\n", rep.Overall.PipelineSuccessRate)
	for _, s := range rep.Summaries {
		fmt.Fprintf(out, "layer-%d-success-rate=%.4f\n", s.Layer, s.SuccessRate)
	}
	if q := rep.Overall.AverageQualityScore; q != nil {
		fmt.Fprintf(out, "quality-score=%.2f\n", *q)
	}
	fmt.Fprintf(out, "unknown-errors=%d\n", len(rep.UnknownErrors))
	return nil
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
