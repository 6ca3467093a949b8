package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Joseph-Mutua/fastweigh-intelligence/internal/reports"
)

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Export the daily aggregates as CSV files",
		Long: `Write one CSV per gold table into a timestamped directory under the
configured output directory, mirroring to the shared drive when one is
configured.

Requires a prior model rebuild.

Example:
  fastweigh report --config tenant.yaml`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(rootOpts, cmd)
		},
	}
	return cmd
}

func runReport(opts *RootOptions, cmd *cobra.Command) error {
	log := setupLogger(opts)

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	wh, err := openWarehouse(cfg)
	if err != nil {
		return err
	}
	defer wh.Close()

	exportOpts := []reports.Option{reports.WithLogger(log)}
	if cfg.SharedDrivePath != "" {
		exportOpts = append(exportOpts, reports.WithSharedDrive(cfg.SharedDrivePath))
	}

	exporter := reports.NewExporter(wh, cfg.OutputDir, exportOpts...)
	result, err := exporter.Export(cmd.Context())
	if err != nil {
		return WrapExitError(ExitFailure, "report export failed", err)
	}

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	if opts.Format == "json" {
		return formatter.Success(result)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "exported %d report(s) to %s", len(result.Files), result.Dir)
	return formatter.Success(b.String())
}
