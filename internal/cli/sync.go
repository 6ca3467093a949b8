package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Joseph-Mutua/fastweigh-intelligence/internal/extract"
	"github.com/Joseph-Mutua/fastweigh-intelligence/internal/graphql"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	Entities []string
	Start    string
	End      string
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Incrementally extract entities into the warehouse",
		Long: `Fetch updated records from the GraphQL API for each configured entity
and append them to the bronze event log, advancing per-entity watermarks.

Each entity syncs independently over non-overlapping windows; a failed
entity is logged and skipped while the rest continue.

Example:
  fastweigh sync --config tenant.yaml
  fastweigh sync --entities tickets,invoices --start 2026-01-01`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Entities, "entities", nil, "entities to sync (default: all configured)")
	cmd.Flags().StringVar(&opts.Start, "start", "", "explicit window start (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringVar(&opts.End, "end", "", "explicit window end (YYYY-MM-DD or RFC3339, default: now)")

	return cmd
}

func runSync(opts *SyncOptions, cmd *cobra.Command) error {
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

	apiKey, err := cfg.APIKey()
	if err != nil {
		return WrapExitError(ExitCommandError, "missing API key", err)
	}

	wh, err := openWarehouse(cfg)
	if err != nil {
		return err
	}
	defer wh.Close()

	client := graphql.NewClient(cfg.GraphQLEndpoint, apiKey, cfg.Timeout(), graphql.WithLogger(log))
	syncer := extract.NewSyncer(cfg, client, wh, log)

	counts, syncErr := syncer.SyncEntities(cmd.Context(), opts.Entities, startAt, endAt)

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	if opts.Format == "json" {
		if err := formatter.Success(counts); err != nil {
			return err
		}
	} else {
		if err := formatter.Success(formatCounts(counts)); err != nil {
			return err
		}
	}

	if syncErr != nil {
		return WrapExitError(ExitFailure, "sync completed with errors", syncErr)
	}
	return nil
}

// parseTimeFlag accepts a date or a full timestamp; empty means unset.
func parseTimeFlag(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("cannot parse %q as YYYY-MM-DD or RFC3339", value)
}

func formatCounts(counts map[string]int) string {
	entities := make([]string, 0, len(counts))
	for entity := range counts {
		entities = append(entities, entity)
	}
	sort.Strings(entities)

	var b strings.Builder
	total := 0
	for _, entity := range entities {
		fmt.Fprintf(&b, "%s: %d records\n", entity, counts[entity])
		total += counts[entity]
	}
	fmt.Fprintf(&b, "total: %d records", total)
	return b.String()
}
