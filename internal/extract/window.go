// Package extract drives incremental extraction: it plans the sequence of
// sync windows from watermarks and explicit bounds, fetches each window
// through the GraphQL client, lands the records in the bronze log, and
// advances the watermark once a window is fully stored.
package extract

import (
	"fmt"
	"time"

	"github.com/Joseph-Mutua/fastweigh-intelligence/internal/config"
)

// Window is a bounded time range [Start, End) covered by one pagination pass.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s)", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
}

// PlanWindows computes the consecutive, non-overlapping windows to sync.
//
// The effective start is the explicit start when given, else the entity's
// watermark, else end minus one window. Windows advance by size and are
// clamped to end, so together they cover [effective start, end) exactly.
// Zero windows are produced when the effective start is at or past end.
//
// A non-positive size is a configuration error; config validation rejects
// it before planning, and the guard here keeps the invariant local.
func PlanWindows(explicitStart *time.Time, end time.Time, watermark *time.Time, size time.Duration) ([]Window, error) {
	if size <= 0 {
		return nil, &config.Error{Message: fmt.Sprintf("window size must be positive, got %s", size)}
	}

	var cursor time.Time
	switch {
	case explicitStart != nil:
		cursor = explicitStart.UTC()
	case watermark != nil:
		cursor = watermark.UTC()
	default:
		cursor = end.UTC().Add(-size)
	}
	end = end.UTC()

	var windows []Window
	for cursor.Before(end) {
		next := cursor.Add(size)
		if next.After(end) {
			next = end
		}
		windows = append(windows, Window{Start: cursor, End: next})
		cursor = next
	}
	return windows, nil
}
