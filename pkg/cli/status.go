package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mcpchecker/wfeval/pkg/checkpoint"
	"github.com/mcpchecker/wfeval/pkg/config"
	"github.com/mcpchecker/wfeval/pkg/eval"
	"github.com/mcpchecker/wfeval/pkg/util"
)

// NewStatusCmd creates the status command
func NewStatusCmd() *cobra.Command {
	var (
		flags        configFlags
		outputFormat string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show checkpoint progress and result files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load(cmd)
			if err != nil {
				return err
			}

			st, err := eval.ReadStatus(cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch outputFormat {
			case "json":
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				return encoder.Encode(st)
			case "text":
			default:
				return fmt.Errorf("unknown output format: %s", outputFormat)
			}

			green := color.New(color.FgGreen)
			yellow := color.New(color.FgYellow)
			bold := color.New(color.Bold)

			_, _ = bold.Fprintf(out, "=== Status: %s ===\n", st.OutputDir)
			for _, l := range st.Layers {
				fmt.Fprintf(out, "\nLayer %d: %s\n", l.Layer, l.Name)
				switch {
				case l.Total == 0:
					fmt.Fprintln(out, "  Checkpoint: none")
				case l.Remaining() == 0:
					_, _ = green.Fprintf(out, "  Checkpoint: complete (%d succeeded, %d failed, %d batches)\n", l.Completed, l.Failed, l.Batches)
				default:
					_, _ = yellow.Fprintf(out, "  Checkpoint: %d/%d done, %d remaining\n", l.Completed+l.Failed, l.Total, l.Remaining())
				}
				if l.HasResults {
					fmt.Fprintf(out, "  Results: %s\n", l.ResultsFile)
				}
			}
			if st.LatestReport != "" {
				fmt.Fprintf(out, "\nLatest report: %s\n", st.LatestReport)
			}
			return nil
		},
	}

	flags.addStorageFlags(cmd)
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "text", "Output format (text, json)")

	return cmd
}

// NewCleanCmd creates the clean command
func NewCleanCmd() *cobra.Command {
	var flags configFlags

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove checkpoints, results and reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load(cmd)
			if err != nil {
				return err
			}

			store, err := checkpoint.Open(cfg.CheckpointBackend, cfg.OutputDir)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := eval.Clean(cfg, store); err != nil {
				return err
			}

			util.LoggerFrom(cmd.Context()).Info("removed checkpoints and results")
			fmt.Fprintf(cmd.OutOrStdout(), "Cleaned %s\n", cfg.OutputDir)
			return nil
		},
	}

	flags.addStorageFlags(cmd)

	return cmd
}

// NewInitConfigCmd creates the init-config command
func NewInitConfigCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init-config [path]",
		Short: "Write a sample EvalConfig file",
		Long: `Write the built-in configuration as an EvalConfig YAML file that can be
edited and passed to 'wfeval run --config'.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "eval-config.yaml"
			if len(args) == 1 {
				path = args[0]
			}

			if !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("'%s' already exists, use --force to overwrite", path)
				} else if !errors.Is(err, os.ErrNotExist) {
					return err
				}
			}

			if err := config.WriteSample(path); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")

	return cmd
}
