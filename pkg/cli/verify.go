// Package cli provides the wfeval commands for running evaluations and
// inspecting their reports.
package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mcpchecker/wfeval/pkg/report"
)

// NewVerifyCmd creates the verify command
func NewVerifyCmd() *cobra.Command {
	var thresholds report.Thresholds

	cmd := &cobra.Command{
		Use:   "verify <report-file>",
		Short: "Verify an evaluation report meets thresholds",
		Long: `Verify that an evaluation report meets minimum success rate and quality thresholds.

Exits with code 0 if all thresholds are met, code 1 otherwise.
Use 'wfeval summary' to view the detailed report.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, err := report.Load(args[0])
			if err != nil {
				return fmt.Errorf("failed to load report: %w", err)
			}

			checks, passed := report.Verify(rep, thresholds)
			outputVerifyResults(cmd.OutOrStdout(), checks, passed)

			if !passed {
				// silent error (SilenceErrors: true), sets exit code 1
				return fmt.Errorf("thresholds not met")
			}

			return nil
		},
	}

	cmd.Flags().Float64Var(&thresholds.PipelineSuccessRate, "pipeline", 0.0, "Minimum pipeline success rate (0.0-1.0)")
	cmd.Flags().Float64Var(&thresholds.LayerSuccessRate, "layer", 0.0, "Minimum success rate of every layer (0.0-1.0)")
	cmd.Flags().Float64Var(&thresholds.QualityScore, "quality", 0.0, "Minimum average quality score (0-10)")
	cmd.Flags().IntVar(&thresholds.MaxUnknownErrors, "max-unknown", -1, "Maximum unknown errors (-1 = no limit)")

	return cmd
}

func outputVerifyResults(out io.Writer, checks []report.Check, passed bool) {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	bold := color.New(color.Bold)

	_, _ = bold.Fprintln(out, "=== Threshold Verification ===")
	fmt.Fprintln(out)

	for _, c := range checks {
		name := fmt.Sprintf("%-32s", c.Name+":")
		switch {
		case c.Skipped:
			fmt.Fprintf(out, "%s N/A\n", name)
		case c.Name == report.CheckUnknownErrors && c.Threshold < 0:
			fmt.Fprintf(out, "%s %d (no limit)\n", name, int(c.Actual))
		case c.Name == report.CheckUnknownErrors && c.Passed:
			_, _ = green.Fprintf(out, "%s %d <= %d ✓\n", name, int(c.Actual), int(c.Threshold))
		case c.Name == report.CheckUnknownErrors:
			_, _ = red.Fprintf(out, "%s %d > %d ✗\n", name, int(c.Actual), int(c.Threshold))
		case c.Passed:
			_, _ = green.Fprintf(out, "%s %s >= %s ✓\n", name, formatMetric(c.Name, c.Actual), formatMetric(c.Name, c.Threshold))
		default:
			_, _ = red.Fprintf(out, "%s %s < %s ✗\n", name, formatMetric(c.Name, c.Actual), formatMetric(c.Name, c.Threshold))
		}
	}

	fmt.Fprintln(out)
	if passed {
		_, _ = green.Fprintln(out, "Result: PASSED")
	} else {
		_, _ = red.Fprintln(out, "Result: FAILED")
	}
}

func formatMetric(name string, v float64) string {
	if name == report.CheckQualityScore {
		return fmt.Sprintf("%.2f", v)
	}
	return fmt.Sprintf("%.2f%%", v*100)
}
