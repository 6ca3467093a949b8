// Package cli wires the tenant configuration, warehouse, and pipeline
// stages into cobra commands. Each stage is runnable on its own (sync,
// model, alerts, report) and as a full run (run, schedule).
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Joseph-Mutua/fastweigh-intelligence/internal/config"
	"github.com/Joseph-Mutua/fastweigh-intelligence/internal/warehouse"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
	Format     string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the fastweigh CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "fastweigh",
		Short: "Fastweigh operational intelligence pipeline",
		Long:  "Extracts operational records from the Fastweigh GraphQL API into a local warehouse, rebuilds daily KPI aggregates, and evaluates alert thresholds.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "config.yaml", "path to tenant configuration")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	// Add subcommands
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewModelCommand(opts))
	cmd.AddCommand(NewAlertsCommand(opts))
	cmd.AddCommand(NewReportCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewScheduleCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// setupLogger configures the process logger from the verbose flag and
// returns it. Logs always go to stderr so JSON output stays parseable.
func setupLogger(opts *RootOptions) *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)
	return log
}

// loadConfig reads the tenant configuration, mapping failures to command
// errors.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	return cfg, nil
}

// openWarehouse opens the tenant warehouse, mapping failures to command
// errors.
func openWarehouse(cfg *config.Config) (*warehouse.Warehouse, error) {
	wh, err := warehouse.Open(cfg.WarehousePath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open warehouse", err)
	}
	return wh, nil
}
