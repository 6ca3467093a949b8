package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// LastSyncedAt returns the watermark for an entity, or ok=false when the
// entity has never completed a sync window.
func (w *Warehouse) LastSyncedAt(ctx context.Context, entity string) (time.Time, bool, error) {
	var ts time.Time
	err := w.db.QueryRowContext(ctx,
		"SELECT last_synced_at FROM sync_state WHERE entity = ?", entity,
	).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read watermark for %s: %w", entity, err)
	}
	return ts.UTC(), true, nil
}

// AdvanceWatermark upserts the entity's watermark. The stored value never
// decreases: advancing with an equal or earlier timestamp is a no-op, so
// the call is idempotent and safe to repeat after a partially retried
// window.
func (w *Warehouse) AdvanceWatermark(ctx context.Context, entity string, ts time.Time) error {
	_, err := w.db.ExecContext(ctx, `
		INSERT INTO sync_state (entity, last_synced_at)
		VALUES (?, ?)
		ON CONFLICT(entity) DO UPDATE SET last_synced_at = excluded.last_synced_at
		WHERE excluded.last_synced_at > sync_state.last_synced_at
	`, entity, ts.UTC())
	if err != nil {
		return fmt.Errorf("advance watermark for %s: %w", entity, err)
	}
	return nil
}
