package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Joseph-Mutua/fastweigh-intelligence/internal/transform"
)

// NewModelCommand creates the model command.
func NewModelCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Rebuild normalized entities and daily aggregates",
		Long: `Rebuild the silver (normalized entity) and gold (daily aggregate)
tables from the bronze event log. The rebuild is a full replacement and
is idempotent: identical bronze input yields identical tables.

Example:
  fastweigh model --config tenant.yaml`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModel(rootOpts, cmd)
		},
	}
	return cmd
}

func runModel(opts *RootOptions, cmd *cobra.Command) error {
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

	engine := transform.NewEngine(wh, cfg.DispatchSLAMinutes, transform.WithLogger(log))
	result, err := engine.Rebuild(cmd.Context())
	if err != nil {
		return WrapExitError(ExitFailure, "rebuild failed", err)
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
	return formatter.Success(formatRebuild(result))
}

func formatRebuild(result *transform.RebuildResult) string {
	var b strings.Builder
	b.WriteString("rebuild complete\n")
	for _, rows := range []map[string]int{result.SilverRows, result.GoldRows} {
		tables := make([]string, 0, len(rows))
		for table := range rows {
			tables = append(tables, table)
		}
		sort.Strings(tables)
		for _, table := range tables {
			fmt.Fprintf(&b, "%s: %d rows\n", table, rows[table])
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}
