package warehouse

import (
	"context"
	"fmt"
	"time"
)

// AlertEvent is one row of the append-only alert audit log.
type AlertEvent struct {
	Name        string
	Severity    string
	Details     string
	TriggeredAt time.Time
}

// AppendAlertEvents records evaluated findings in the audit log. Findings
// are never deduplicated against prior triggers; a breach that persists
// across runs re-fires and re-appends.
func (w *Warehouse) AppendAlertEvents(ctx context.Context, events []AlertEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append alert events: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO alert_events (alert_name, severity, details, triggered_at)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("append alert events: prepare: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		if _, err := stmt.ExecContext(ctx, ev.Name, ev.Severity, ev.Details, ev.TriggeredAt.UTC()); err != nil {
			return fmt.Errorf("append alert events: insert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append alert events: commit: %w", err)
	}
	return nil
}
