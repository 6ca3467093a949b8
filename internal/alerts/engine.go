package alerts

import (
	"context"
	"log/slog"
	"time"

	"github.com/Joseph-Mutua/fastweigh-intelligence/internal/config"
	"github.com/Joseph-Mutua/fastweigh-intelligence/internal/warehouse"
)

// Engine evaluates the current aggregates, appends findings to the audit
// log, and fans them out to the configured notifiers.
type Engine struct {
	wh         *warehouse.Warehouse
	tenant     string
	thresholds config.Thresholds
	notifiers  []Notifier
	now        func() time.Time
	log        *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithNotifiers sets the delivery channels for triggered findings.
func WithNotifiers(notifiers ...Notifier) Option {
	return func(e *Engine) { e.notifiers = notifiers }
}

// WithClock overrides the wall clock used for triggered_at stamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger overrides the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// NewEngine returns an alert engine for one tenant's warehouse.
func NewEngine(wh *warehouse.Warehouse, tenant string, thresholds config.Thresholds, opts ...Option) *Engine {
	e := &Engine{
		wh:         wh,
		tenant:     tenant,
		thresholds: thresholds,
		now:        time.Now,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run evaluates the rules once. Findings are persisted before any notifier
// runs; a notifier failure is logged and does not fail the run, since the
// audit log already holds the canonical record.
func (e *Engine) Run(ctx context.Context) ([]Finding, error) {
	snap, err := LoadSnapshot(ctx, e.wh)
	if err != nil {
		return nil, err
	}

	findings := Evaluate(*snap, e.thresholds)
	if len(findings) == 0 {
		e.log.Info("alert evaluation complete", "findings", 0)
		return nil, nil
	}

	triggeredAt := e.now().UTC()
	events := make([]warehouse.AlertEvent, 0, len(findings))
	for _, f := range findings {
		events = append(events, warehouse.AlertEvent{
			Name:        f.Rule,
			Severity:    f.Severity,
			Details:     f.Detail,
			TriggeredAt: triggeredAt,
		})
	}
	if err := e.wh.AppendAlertEvents(ctx, events); err != nil {
		return nil, err
	}

	for _, n := range e.notifiers {
		if err := n.Notify(ctx, e.tenant, triggeredAt, findings); err != nil {
			e.log.Warn("alert notification failed", "error", err)
		}
	}

	e.log.Info("alert evaluation complete", "findings", len(findings))
	return findings, nil
}
