package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Joseph-Mutua/fastweigh-intelligence/internal/pipeline"
)

// ScheduleOptions holds flags for the schedule command.
type ScheduleOptions struct {
	*RootOptions
	Interval time.Duration
}

// NewScheduleCommand creates the schedule command.
func NewScheduleCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScheduleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the full pipeline on a fixed interval",
		Long: `Run the pipeline immediately and then again every interval until
interrupted. A failed run is logged and the schedule continues; the
watermarks make the next run pick up where the failed one left off.

Example:
  fastweigh schedule --config tenant.yaml --interval 1h`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchedule(opts, cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.Interval, "interval", time.Hour, "time between pipeline runs")

	return cmd
}

func runSchedule(opts *ScheduleOptions, cmd *cobra.Command) error {
	log := setupLogger(opts.RootOptions)

	if opts.Interval <= 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("interval must be positive, got %s", opts.Interval))
	}

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
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

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			log.Info("received signal, stopping schedule", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Scheduler started, running every %s. Press Ctrl-C to stop.\n", opts.Interval)

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for {
		if result, err := runner.Run(ctx, nil, nil, nil); err != nil {
			if ctx.Err() != nil {
				log.Info("schedule stopped")
				return nil
			}
			log.Error("scheduled run failed", "error", err)
		} else {
			log.Info("scheduled run finished", "run_id", result.RunID, "findings", len(result.Findings))
		}

		select {
		case <-ctx.Done():
			log.Info("schedule stopped")
			return nil
		case <-ticker.C:
		}
	}
}
