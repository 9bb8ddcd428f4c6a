package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mcpchecker/wfeval/pkg/util"
)

// NewRootCmd creates the root wfeval command
func NewRootCmd() *cobra.Command {
	var (
		verbose bool
		logger  *zap.Logger
	)

	rootCmd := &cobra.Command{
		Use:   "wfeval",
		Short: "Workflow generation evaluation pipeline",
		Long: `wfeval evaluates an LLM workflow generator in three layers:

  1. structure: generate a workflow for every spec and judge its structure
  2. execution: run every generated workflow on an execution engine
  3. output:    judge the quality of every successful execution output

Progress is checkpointed after every batch so an interrupted run resumes where
it stopped. Results and the comprehensive report are written to the output
directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config := zap.NewProductionConfig()
			if verbose {
				config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			var err error
			logger, err = config.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = util.WithLogger(ctx, logger)
			ctx = util.WithVerbose(ctx, verbose)
			cmd.SetContext(ctx)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging and detailed progress")

	rootCmd.AddCommand(NewRunCmd())
	rootCmd.AddCommand(NewStatusCmd())
	rootCmd.AddCommand(NewCleanCmd())
	rootCmd.AddCommand(NewInitConfigCmd())
	rootCmd.AddCommand(NewVerifyCmd())
	rootCmd.AddCommand(NewSummaryCmd())
	rootCmd.AddCommand(NewDiffCmd())
	rootCmd.AddCommand(NewViewCmd())

	return rootCmd
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}
