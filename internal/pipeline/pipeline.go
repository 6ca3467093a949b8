// Package pipeline sequences a full intelligence run: incremental sync,
// warehouse rebuild, report export, and alert evaluation, with a JSON
// manifest recording what each run did. Stages run strictly in order
// against the single-writer warehouse connection.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/Joseph-Mutua/fastweigh-intelligence/internal/alerts"
	"github.com/Joseph-Mutua/fastweigh-intelligence/internal/config"
	"github.com/Joseph-Mutua/fastweigh-intelligence/internal/extract"
	"github.com/Joseph-Mutua/fastweigh-intelligence/internal/graphql"
	"github.com/Joseph-Mutua/fastweigh-intelligence/internal/reports"
	"github.com/Joseph-Mutua/fastweigh-intelligence/internal/transform"
	"github.com/Joseph-Mutua/fastweigh-intelligence/internal/warehouse"
)

// The stages, as the runner sees them.
type (
	syncStage interface {
		SyncEntities(ctx context.Context, entities []string, startAt, endAt *time.Time) (map[string]int, error)
	}
	modelStage interface {
		Rebuild(ctx context.Context) (*transform.RebuildResult, error)
	}
	reportStage interface {
		Export(ctx context.Context) (*reports.ExportResult, error)
	}
	alertStage interface {
		Run(ctx context.Context) ([]alerts.Finding, error)
	}
)

// Runner executes full pipeline runs.
type Runner struct {
	cfg      *config.Config
	wh       *warehouse.Warehouse
	syncer   syncStage
	modeler  modelStage
	exporter reportStage
	alerter  alertStage
	now      func() time.Time
	log      *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithLogger overrides the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *Runner) { r.log = log }
}

// WithStages replaces the stage implementations. Nil stages keep the
// defaults built from the config.
func WithStages(sync syncStage, model modelStage, report reportStage, alert alertStage) Option {
	return func(r *Runner) {
		if sync != nil {
			r.syncer = sync
		}
		if model != nil {
			r.modeler = model
		}
		if report != nil {
			r.exporter = report
		}
		if alert != nil {
			r.alerter = alert
		}
	}
}

// NewRunner builds a Runner with production stages wired from the tenant
// config. The API key env var must be set.
func NewRunner(cfg *config.Config, wh *warehouse.Warehouse, opts ...Option) (*Runner, error) {
	r := &Runner{
		cfg: cfg,
		wh:  wh,
		now: time.Now,
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.syncer == nil {
		apiKey, err := cfg.APIKey()
		if err != nil {
			return nil, err
		}
		client := graphql.NewClient(cfg.GraphQLEndpoint, apiKey, cfg.Timeout(),
			graphql.WithLogger(r.log))
		r.syncer = extract.NewSyncer(cfg, client, wh, r.log)
	}
	if r.modeler == nil {
		r.modeler = transform.NewEngine(wh, cfg.DispatchSLAMinutes,
			transform.WithClock(r.now), transform.WithLogger(r.log))
	}
	if r.exporter == nil {
		exportOpts := []reports.Option{
			reports.WithClock(r.now),
			reports.WithLogger(r.log),
		}
		if cfg.SharedDrivePath != "" {
			exportOpts = append(exportOpts, reports.WithSharedDrive(cfg.SharedDrivePath))
		}
		r.exporter = reports.NewExporter(wh, cfg.OutputDir, exportOpts...)
	}
	if r.alerter == nil {
		var notifiers []alerts.Notifier
		if cfg.Email.Enabled {
			notifiers = append(notifiers, alerts.NewEmailNotifier(cfg.Email))
		}
		if cfg.Webhook.Enabled {
			notifiers = append(notifiers, alerts.NewWebhookNotifier(cfg.Webhook, nil))
		}
		r.alerter = alerts.NewEngine(wh, cfg.TenantName, cfg.Alerts,
			alerts.WithNotifiers(notifiers...),
			alerts.WithClock(r.now),
			alerts.WithLogger(r.log))
	}
	return r, nil
}

// Result summarizes one full run.
type Result struct {
	RunID      string                   `json:"run_id"`
	Tenant     string                   `json:"tenant"`
	StartedAt  time.Time                `json:"started_at"`
	FinishedAt time.Time                `json:"finished_at"`
	SyncCounts map[string]int           `json:"sync_counts"`
	SyncError  string                   `json:"sync_error,omitempty"`
	Rebuild    *transform.RebuildResult `json:"rebuild,omitempty"`
	ReportDir  string                   `json:"report_dir,omitempty"`
	Findings   []alerts.Finding         `json:"findings,omitempty"`
}

// Run executes sync, rebuild, export, and alert evaluation in order.
//
// A partial sync failure does not stop the run: whatever landed in bronze
// still gets modeled, reported, and evaluated, and the sync error joins the
// returned error. A rebuild failure aborts, since the downstream stages
// would read stale or missing tables.
func (r *Runner) Run(ctx context.Context, entities []string, startAt, endAt *time.Time) (*Result, error) {
	runID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}

	result := &Result{
		RunID:     runID.String(),
		Tenant:    r.cfg.TenantName,
		StartedAt: r.now().UTC(),
	}
	r.log.Info("pipeline run started", "run_id", result.RunID, "tenant", result.Tenant)

	var failures []error

	counts, syncErr := r.syncer.SyncEntities(ctx, entities, startAt, endAt)
	result.SyncCounts = counts
	if syncErr != nil {
		result.SyncError = syncErr.Error()
		failures = append(failures, syncErr)
	}
	if err := r.writeManifest(result); err != nil {
		failures = append(failures, err)
	}

	rebuild, err := r.modeler.Rebuild(ctx)
	if err != nil {
		result.FinishedAt = r.now().UTC()
		failures = append(failures, err)
		return result, errors.Join(failures...)
	}
	result.Rebuild = rebuild

	export, err := r.exporter.Export(ctx)
	if err != nil {
		failures = append(failures, err)
	} else {
		result.ReportDir = export.Dir
	}

	findings, err := r.alerter.Run(ctx)
	if err != nil {
		failures = append(failures, err)
	} else {
		result.Findings = findings
	}

	result.FinishedAt = r.now().UTC()
	if err := r.writeManifest(result); err != nil {
		failures = append(failures, err)
	}

	r.log.Info("pipeline run finished",
		"run_id", result.RunID,
		"findings", len(result.Findings),
		"errors", len(failures))
	return result, errors.Join(failures...)
}

// writeManifest persists the run summary. Written once after sync, so a
// crash mid-rebuild still leaves a record, and again at the end with the
// full result.
func (r *Runner) writeManifest(result *Result) error {
	dir := filepath.Join(r.cfg.OutputDir, "manifests")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create manifest directory: %w", err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	path := filepath.Join(dir, "run-"+result.RunID+".json")
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
