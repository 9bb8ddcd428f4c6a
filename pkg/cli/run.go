package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mcpchecker/wfeval/pkg/config"
	"github.com/mcpchecker/wfeval/pkg/eval"
	"github.com/mcpchecker/wfeval/pkg/report"
	"github.com/mcpchecker/wfeval/pkg/scheduler"
	"github.com/mcpchecker/wfeval/pkg/util"
	"github.com/mcpchecker/wfeval/pkg/workflow"
)

// NewRunCmd creates the run command
func NewRunCmd() *cobra.Command {
	var (
		flags            configFlags
		outputFormat     string
		clean            bool
		dryRun           bool
		executionResults string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the evaluation pipeline",
		Long: `Run the enabled evaluation layers over every workflow spec in the data directory.

Settings come from the built-in defaults, then EVAL_* environment variables, then
the --config file, then command line flags.

Examples:
  wfeval run --layers 1,2 --data-dir ./specs
  wfeval run --config eval.yaml --clean
  wfeval run --layers 3 --execution-results evaluation_output/results/layer_2_execution_evaluation.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := util.LoggerFrom(ctx)
			out := cmd.OutOrStdout()

			cfg, err := flags.load(cmd)
			if err != nil {
				return err
			}

			dataset, err := workflow.LoadDir(cfg.DataDir)
			if err != nil {
				return err
			}
			for _, s := range dataset.Skipped {
				logger.Warn("skipping invalid workflow spec", zap.String("file", s.File), zap.Error(s.Err))
			}

			if dryRun {
				plan, err := eval.NewPlan(cfg, dataset, scheduler.SystemMemory)
				if err != nil {
					return err
				}
				return displayPlan(out, cfg, plan, outputFormat)
			}

			opts := eval.RunOptions{Clean: clean}
			if executionResults != "" {
				prior, err := report.LoadLayerResult(executionResults)
				if err != nil {
					return err
				}
				opts.QualityInputs = prior.Successful()
			}

			deps, cleanup, err := eval.NewCollaborators(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			pipeline, err := eval.NewPipeline(cfg, deps, logger)
			if err != nil {
				return err
			}

			display := newProgressDisplay(out, util.IsVerbose(ctx))
			if outputFormat == "text" {
				opts.Progress = display.handleProgress
			}

			rep, path, err := pipeline.Run(ctx, dataset, opts)
			if err != nil {
				return fmt.Errorf("evaluation failed: %w", err)
			}

			if err := displayReport(out, rep, outputFormat); err != nil {
				return err
			}
			if outputFormat == "text" {
				fmt.Fprintf(out, "\n📄 Report saved to: %s\n", path)
			}
			return nil
		},
	}

	flags.addRunFlags(cmd)
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "text", "Output format (text, json)")
	cmd.Flags().BoolVar(&clean, "clean", false, "Remove checkpoints and results before running")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would run without calling any service")
	cmd.Flags().StringVar(&executionResults, "execution-results", "", "Layer 2 results file used as layer 3 input when layer 2 does not run")

	return cmd
}

// progressDisplay handles interactive progress display
type progressDisplay struct {
	out     io.Writer
	verbose bool
	green   *color.Color
	red     *color.Color
	yellow  *color.Color
	cyan    *color.Color
	bold    *color.Color
}

func newProgressDisplay(out io.Writer, verbose bool) *progressDisplay {
	return &progressDisplay{
		out:     out,
		verbose: verbose,
		green:   color.New(color.FgGreen),
		red:     color.New(color.FgRed),
		yellow:  color.New(color.FgYellow),
		cyan:    color.New(color.FgCyan),
		bold:    color.New(color.Bold),
	}
}

func (d *progressDisplay) handleProgress(event eval.ProgressEvent) {
	switch event.Type {
	case eval.EventEvalStart:
		_, _ = d.bold.Fprintln(d.out, "\n=== Starting Evaluation ===")
		fmt.Fprintf(d.out, "Workflows: %d\n", event.Total)
		if d.verbose {
			fmt.Fprintf(d.out, "Run: %s\n", event.RunID)
		}

	case eval.EventLayerStart:
		fmt.Fprintln(d.out)
		_, _ = d.cyan.Fprintf(d.out, "Layer %d: %s\n", event.Layer, event.Name)
		fmt.Fprintf(d.out, "  Items: %d\n", event.Total)
		if event.Resumed > 0 {
			_, _ = d.yellow.Fprintf(d.out, "  Resuming: %d already done\n", event.Resumed)
		}

	case eval.EventBatchComplete:
		b := event.Batch
		if b == nil {
			return
		}
		if b.Failed == 0 {
			_, _ = d.green.Fprintf(d.out, "  → Batch %d: %d/%d ✓\n", b.Batch, b.Processed, b.Total)
		} else {
			_, _ = d.yellow.Fprintf(d.out, "  → Batch %d: %d/%d (%d failed)\n", b.Batch, b.Processed, b.Total, b.Failed)
		}

	case eval.EventLayerComplete:
		r := event.Result
		if r == nil {
			return
		}
		switch {
		case r.Failed == 0:
			_, _ = d.green.Fprintf(d.out, "  ✓ %d/%d succeeded\n", r.Succeeded, r.Total)
		case r.Succeeded == 0:
			_, _ = d.red.Fprintf(d.out, "  ✗ %d/%d succeeded\n", r.Succeeded, r.Total)
		default:
			_, _ = d.yellow.Fprintf(d.out, "  ~ %d/%d succeeded\n", r.Succeeded, r.Total)
		}
		if d.verbose {
			for _, item := range r.Items {
				if item.Failure != nil {
					fmt.Fprintf(d.out, "    - %s: %s/%s: %s\n", item.ID, item.Failure.Kind, item.Failure.Category, truncateString(item.Failure.Message, defaultMaxLineLength))
				}
			}
		}

	case eval.EventEvalComplete:
		fmt.Fprintln(d.out)
		_, _ = d.bold.Fprintln(d.out, "=== Evaluation Complete ===")
	}
}

func displayReport(out io.Writer, rep *report.Report, format string) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(rep)

	case "text":
		printReport(out, rep)
		return nil

	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}

func displayPlan(out io.Writer, cfg config.Config, plan *eval.Plan, format string) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(plan)
	case "text":
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}

	bold := color.New(color.Bold)
	_, _ = bold.Fprintln(out, "=== Dry Run ===")
	fmt.Fprintf(out, "Data directory:   %s\n", cfg.DataDir)
	fmt.Fprintf(out, "Output directory: %s\n", cfg.OutputDir)
	fmt.Fprintf(out, "Workflows:        %d\n", plan.Workflows)
	fmt.Fprintf(out, "Workers:          %d\n", plan.Workers)
	fmt.Fprintf(out, "Batch size:       %d\n", plan.BatchSize)
	for _, s := range plan.Skipped {
		fmt.Fprintf(out, "Skipped:          %s\n", s)
	}
	fmt.Fprintln(out)
	for _, l := range plan.Layers {
		fmt.Fprintf(out, "Layer %d (%s): %d items, %d remaining\n", l.Layer, l.Name, l.Total, l.Remaining())
	}
	return nil
}
