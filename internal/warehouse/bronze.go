package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/Joseph-Mutua/fastweigh-intelligence/internal/payload"
)

// RawEvent is one bronze row: an unmodified fetched record plus its
// provenance (which entity, which sync window, when it was pulled).
type RawEvent struct {
	Entity          string
	PulledAt        time.Time
	WindowStart     time.Time
	WindowEnd       time.Time
	Record          payload.Record
	RecordUpdatedAt *time.Time
}

// AppendRawEvents inserts fetched records into the append-only bronze log
// in a single transaction and returns the number of rows written. Each
// record's "updated at" value is resolved best-effort via the configured
// dotted path; absent or unparsable values store as NULL.
//
// No uniqueness constraint applies. Re-fetching a window after a partial
// failure duplicates rows, which normalization tolerates downstream.
func (w *Warehouse) AppendRawEvents(
	ctx context.Context,
	entity string,
	windowStart, windowEnd time.Time,
	records []payload.Record,
	updatedAtPath string,
	pulledAt time.Time,
) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("append raw events: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bronze_events
		(entity, pulled_at, window_start, window_end, record_json, record_updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("append raw events: prepare: %w", err)
	}
	defer stmt.Close()

	for _, record := range records {
		data, err := payload.Encode(record)
		if err != nil {
			return 0, fmt.Errorf("append raw events: encode record: %w", err)
		}

		var updatedAt any
		if t := record.TimeAt(updatedAtPath); t != nil {
			updatedAt = t.UTC()
		}

		if _, err := stmt.ExecContext(ctx,
			entity, pulledAt.UTC(), windowStart.UTC(), windowEnd.UTC(), string(data), updatedAt,
		); err != nil {
			return 0, fmt.Errorf("append raw events: insert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("append raw events: commit: %w", err)
	}
	return len(records), nil
}

// ReadRawEvents returns all bronze rows for one entity kind, in insertion
// order. Used by the transformation engine's normalize phase.
func (w *Warehouse) ReadRawEvents(ctx context.Context, entity string) ([]RawEvent, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT entity, pulled_at, window_start, window_end, record_json, record_updated_at
		FROM bronze_events
		WHERE entity = ?
		ORDER BY rowid
	`, entity)
	if err != nil {
		return nil, fmt.Errorf("read raw events for %s: %w", entity, err)
	}
	defer rows.Close()

	var events []RawEvent
	for rows.Next() {
		var (
			ev        RawEvent
			data      string
			updatedAt *time.Time
		)
		if err := rows.Scan(&ev.Entity, &ev.PulledAt, &ev.WindowStart, &ev.WindowEnd, &data, &updatedAt); err != nil {
			return nil, fmt.Errorf("read raw events for %s: scan: %w", entity, err)
		}
		record, err := payload.Decode([]byte(data))
		if err != nil {
			return nil, fmt.Errorf("read raw events for %s: decode: %w", entity, err)
		}
		ev.Record = record
		if updatedAt != nil {
			u := updatedAt.UTC()
			ev.RecordUpdatedAt = &u
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read raw events for %s: %w", entity, err)
	}
	return events, nil
}
