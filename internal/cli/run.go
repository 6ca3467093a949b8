package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Joseph-Mutua/fastweigh-intelligence/internal/pipeline"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Entities []string
	Start    string
	End      string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one full pipeline run",
		Long: `Run sync, model, report, and alerts in sequence, writing a JSON run
manifest under the output directory. A partial sync failure does not stop
the run; whatever landed is still modeled and evaluated.

Example:
  fastweigh run --config tenant.yaml
  fastweigh run --entities tickets --start 2026-01-01`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(opts, cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Entities, "entities", nil, "entities to sync (default: all configured)")
	cmd.Flags().StringVar(&opts.Start, "start", "", "explicit window start (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringVar(&opts.End, "end", "", "explicit window end (YYYY-MM-DD or RFC3339, default: now)")

	return cmd
}

func runPipeline(opts *RunOptions, cmd *cobra.Command) error {
	log := setupLogger(opts.RootOptions)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}

	startAt, err := parseTimeFlag(opts.Start)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --start", err)
	}
	endAt, err := parseTimeFlag(opts.End)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --end", err)
	}

	wh, err := openWarehouse(cfg)
	if err != nil {
		return err
	}
	defer wh.Close()

	runner, err := pipeline.NewRunner(cfg, wh, pipeline.WithLogger(log))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build pipeline", err)
	}

	result, runErr := runner.Run(cmd.Context(), opts.Entities, startAt, endAt)

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	if result != nil {
		if opts.Format == "json" {
			if err := formatter.Success(result); err != nil {
				return err
			}
		} else {
			if err := formatter.Success(formatRunResult(result)); err != nil {
				return err
			}
		}
	}

	if runErr != nil {
		return WrapExitError(ExitFailure, "pipeline run completed with errors", runErr)
	}
	return nil
}

func formatRunResult(result *pipeline.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s finished in %s\n", result.RunID, result.FinishedAt.Sub(result.StartedAt))
	b.WriteString(formatCounts(result.SyncCounts))
	if result.ReportDir != "" {
		fmt.Fprintf(&b, "\nreports: %s", result.ReportDir)
	}
	fmt.Fprintf(&b, "\nfindings: %d", len(result.Findings))
	return b.String()
}
