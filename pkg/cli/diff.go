package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mcpchecker/wfeval/pkg/report"
	"github.com/mcpchecker/wfeval/pkg/scheduler"
)

// DiffResult holds the comparison between two evaluation reports
type DiffResult struct {
	Base         *report.Report
	Head         *report.Report
	Layers       []LayerDiff
	Regressions  []ItemDiff
	Improvements []ItemDiff
	New          []ItemDiff
	Removed      []ItemDiff
}

// LayerDiff compares the success rate of one layer present in either report.
type LayerDiff struct {
	Layer    int
	Name     string
	BaseRate float64
	HeadRate float64
	InBase   bool
	InHead   bool
}

// ItemDiff holds the diff for a single item of one layer
type ItemDiff struct {
	Layer         int
	ItemID        string
	BasePassed    bool
	HeadPassed    bool
	FailureReason string
}

// NewDiffCmd creates the diff command
func NewDiffCmd() *cobra.Command {
	var outputFormat string
	var baseFile string
	var currentFile string

	cmd := &cobra.Command{
		Use:   "diff --base <report-file> --current <report-file>",
		Short: "Compare two evaluation reports",
		Long: `Compare evaluation reports between two runs (e.g., main vs PR).

Shows per-item regressions and improvements in every layer along with the
change in layer success rates, pipeline success rate and quality score.

Example:
  wfeval diff --base report-main.json --current report-pr.json
  wfeval diff --base report-main.json --current report-pr.json --output markdown`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := report.Load(baseFile)
			if err != nil {
				return fmt.Errorf("failed to load base report: %w", err)
			}

			current, err := report.Load(currentFile)
			if err != nil {
				return fmt.Errorf("failed to load current report: %w", err)
			}

			diff := calculateDiff(base, current)

			switch outputFormat {
			case "text":
				outputTextDiff(cmd.OutOrStdout(), diff)
			case "markdown":
				outputMarkdownDiff(cmd.OutOrStdout(), diff)
			default:
				return fmt.Errorf("unknown output format: %s", outputFormat)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&baseFile, "base", "", "Base report file (e.g., main branch)")
	cmd.Flags().StringVar(&currentFile, "current", "", "Current report file (e.g., PR branch)")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "text", "Output format (text, markdown)")

	_ = cmd.MarkFlagRequired("base")
	_ = cmd.MarkFlagRequired("current")

	return cmd
}

func calculateDiff(base, head *report.Report) DiffResult {
	diff := DiffResult{
		Base:         base,
		Head:         head,
		Regressions:  make([]ItemDiff, 0),
		Improvements: make([]ItemDiff, 0),
		New:          make([]ItemDiff, 0),
		Removed:      make([]ItemDiff, 0),
	}

	for n := 1; n <= 3; n++ {
		b, h := base.Layer(n), head.Layer(n)
		if b == nil && h == nil {
			continue
		}

		ld := LayerDiff{Layer: n, InBase: b != nil, InHead: h != nil}
		if b != nil {
			ld.Name = b.Name
			ld.BaseRate = b.SuccessRate()
		}
		if h != nil {
			ld.Name = h.Name
			ld.HeadRate = h.SuccessRate()
		}
		diff.Layers = append(diff.Layers, ld)

		if b == nil || h == nil {
			continue
		}

		baseItems := make(map[string]report.ItemResult, len(b.Items))
		for _, item := range b.Items {
			baseItems[item.ID] = item
		}
		headItems := make(map[string]bool, len(h.Items))

		for _, item := range h.Items {
			headItems[item.ID] = true
			headPassed := item.Status == scheduler.StatusSuccess

			baseItem, exists := baseItems[item.ID]
			if !exists {
				diff.New = append(diff.New, ItemDiff{Layer: n, ItemID: item.ID, HeadPassed: headPassed})
				continue
			}

			basePassed := baseItem.Status == scheduler.StatusSuccess
			itemDiff := ItemDiff{Layer: n, ItemID: item.ID, BasePassed: basePassed, HeadPassed: headPassed}
			if item.Failure != nil {
				itemDiff.FailureReason = fmt.Sprintf("%s/%s: %s", item.Failure.Kind, item.Failure.Category, item.Failure.Message)
			}

			if basePassed && !headPassed {
				diff.Regressions = append(diff.Regressions, itemDiff)
			} else if !basePassed && headPassed {
				diff.Improvements = append(diff.Improvements, itemDiff)
			}
		}

		for _, item := range b.Items {
			if !headItems[item.ID] {
				diff.Removed = append(diff.Removed, ItemDiff{Layer: n, ItemID: item.ID, BasePassed: item.Status == scheduler.StatusSuccess})
			}
		}
	}

	return diff
}

func outputTextDiff(out io.Writer, diff DiffResult) {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)
	bold := color.New(color.Bold)

	_, _ = bold.Fprintln(out, "=== Evaluation Diff ===")
	fmt.Fprintln(out)

	if len(diff.Regressions) > 0 {
		_, _ = red.Fprintf(out, "Regressions (%d):\n", len(diff.Regressions))
		for _, r := range diff.Regressions {
			_, _ = red.Fprintf(out, "  ✗ layer %d %s: PASSED → FAILED\n", r.Layer, r.ItemID)
			if r.FailureReason != "" {
				fmt.Fprintf(out, "      %s\n", truncateString(r.FailureReason, defaultMaxLineLength))
			}
		}
		fmt.Fprintln(out)
	}

	if len(diff.Improvements) > 0 {
		_, _ = green.Fprintf(out, "Improvements (%d):\n", len(diff.Improvements))
		for _, r := range diff.Improvements {
			_, _ = green.Fprintf(out, "  ✓ layer %d %s: FAILED → PASSED\n", r.Layer, r.ItemID)
		}
		fmt.Fprintln(out)
	}

	if len(diff.New) > 0 {
		_, _ = yellow.Fprintf(out, "New Items (%d):\n", len(diff.New))
		for _, r := range diff.New {
			if r.HeadPassed {
				_, _ = green.Fprintf(out, "  + layer %d %s: PASSED\n", r.Layer, r.ItemID)
			} else {
				_, _ = red.Fprintf(out, "  + layer %d %s: FAILED\n", r.Layer, r.ItemID)
			}
		}
		fmt.Fprintln(out)
	}

	if len(diff.Removed) > 0 {
		_, _ = yellow.Fprintf(out, "Removed Items (%d):\n", len(diff.Removed))
		for _, r := range diff.Removed {
			fmt.Fprintf(out, "  - layer %d %s\n", r.Layer, r.ItemID)
		}
		fmt.Fprintln(out)
	}

	_, _ = bold.Fprintln(out, "=== Summary ===")
	fmt.Fprintln(out)

	fmt.Fprintf(out, "%-22s %-11s %-11s Change\n", "", "Base", "Head")
	for _, l := range diff.Layers {
		fmt.Fprintf(out, "%-22s %-11s %-11s ", fmt.Sprintf("Layer %d %s:", l.Layer, l.Name), rateOrNA(l.BaseRate, l.InBase), rateOrNA(l.HeadRate, l.InHead))
		if l.InBase && l.InHead {
			printChange(out, l.HeadRate-l.BaseRate)
		} else {
			fmt.Fprintln(out, "n/a")
		}
	}

	baseRate, headRate := diff.Base.Overall.PipelineSuccessRate, diff.Head.Overall.PipelineSuccessRate
	fmt.Fprintf(out, "%-22s %-11s %-11s ", "Pipeline:", rateOrNA(baseRate, true), rateOrNA(headRate, true))
	printChange(out, headRate-baseRate)

	if bq, hq := diff.Base.Overall.AverageQualityScore, diff.Head.Overall.AverageQualityScore; bq != nil && hq != nil {
		fmt.Fprintf(out, "%-22s %-11.2f %-11.2f %+.2f\n", "Quality:", *bq, *hq, *hq-*bq)
	}
}

func rateOrNA(rate float64, present bool) string {
	if !present {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", rate*100)
}

func printChange(out io.Writer, change float64) {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	if change > 0 {
		_, _ = green.Fprintf(out, "+%.1f%%\n", change*100)
	} else if change < 0 {
		_, _ = red.Fprintf(out, "%.1f%%\n", change*100)
	} else {
		fmt.Fprintln(out, "0.0%")
	}
}

func outputMarkdownDiff(out io.Writer, diff DiffResult) {
	fmt.Fprintln(out, "### 📊 Evaluation Results")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "| Metric | Base | Head | Change |")
	fmt.Fprintln(out, "|--------|------|------|--------|")
	for _, l := range diff.Layers {
		change := "n/a"
		if l.InBase && l.InHead {
			change = formatChangeMarkdown(l.HeadRate - l.BaseRate)
		}
		fmt.Fprintf(out, "| Layer %d %s | %s | %s | %s |\n", l.Layer, l.Name, rateOrNA(l.BaseRate, l.InBase), rateOrNA(l.HeadRate, l.InHead), change)
	}
	baseRate, headRate := diff.Base.Overall.PipelineSuccessRate, diff.Head.Overall.PipelineSuccessRate
	fmt.Fprintf(out, "| Pipeline | %.1f%% | %.1f%% | %s |\n", baseRate*100, headRate*100, formatChangeMarkdown(headRate-baseRate))

	if len(diff.Regressions) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "#### ❌ Regressions (%d)\n", len(diff.Regressions))
		for _, r := range diff.Regressions {
			fmt.Fprintf(out, "- layer %d `%s`: PASSED → FAILED", r.Layer, r.ItemID)
			if r.FailureReason != "" {
				fmt.Fprintf(out, " - %s", truncateString(r.FailureReason, defaultMaxLineLength))
			}
			fmt.Fprintln(out)
		}
	}

	if len(diff.Improvements) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "#### ✅ Improvements (%d)\n", len(diff.Improvements))
		for _, r := range diff.Improvements {
			fmt.Fprintf(out, "- layer %d `%s`: FAILED → PASSED\n", r.Layer, r.ItemID)
		}
	}

	if len(diff.New) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "#### 🆕 New Items (%d)\n", len(diff.New))
		for _, r := range diff.New {
			status := "PASSED"
			if !r.HeadPassed {
				status = "FAILED"
			}
			fmt.Fprintf(out, "- layer %d `%s`: %s\n", r.Layer, r.ItemID, status)
		}
	}

	if len(diff.Removed) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "#### 🗑️ Removed Items (%d)\n", len(diff.Removed))
		for _, r := range diff.Removed {
			fmt.Fprintf(out, "- layer %d `%s`\n", r.Layer, r.ItemID)
		}
	}
}

func formatChangeMarkdown(change float64) string {
	if change > 0 {
		return fmt.Sprintf("🟢 +%.1f%%", change*100)
	} else if change < 0 {
		return fmt.Sprintf("🔴 %.1f%%", change*100)
	}
	return "➖ 0.0%"
}
