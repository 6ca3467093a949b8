package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2026, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestPlanWindows_CoversRangeExactly(t *testing.T) {
	start := day(10)
	end := day(15)

	windows, err := PlanWindows(&start, end, nil, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, windows, 5)

	// Contiguous, non-overlapping, union equals [start, end).
	assert.True(t, windows[0].Start.Equal(start))
	for i := 1; i < len(windows); i++ {
		assert.True(t, windows[i].Start.Equal(windows[i-1].End),
			"window %d must begin where window %d ends", i, i-1)
	}
	assert.True(t, windows[len(windows)-1].End.Equal(end))
}

func TestPlanWindows_ClampsFinalWindow(t *testing.T) {
	start := day(10)
	end := day(12).Add(6 * time.Hour)

	windows, err := PlanWindows(&start, end, nil, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, windows, 3)
	assert.Equal(t, 6*time.Hour, windows[2].End.Sub(windows[2].Start))
	assert.True(t, windows[2].End.Equal(end))
}

func TestPlanWindows_WatermarkAsStart(t *testing.T) {
	wm := day(13)
	end := day(15)

	windows, err := PlanWindows(nil, end, &wm, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, windows, 2)
	assert.True(t, windows[0].Start.Equal(wm))
}

func TestPlanWindows_ExplicitStartBeatsWatermark(t *testing.T) {
	start := day(14)
	wm := day(10)
	end := day(15)

	windows, err := PlanWindows(&start, end, &wm, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, windows, 1)
	assert.True(t, windows[0].Start.Equal(start))
}

func TestPlanWindows_DefaultsToOneWindowBack(t *testing.T) {
	end := day(15)

	windows, err := PlanWindows(nil, end, nil, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, windows, 1)
	assert.True(t, windows[0].Start.Equal(day(14)))
	assert.True(t, windows[0].End.Equal(end))
}

func TestPlanWindows_ZeroWhenStartNotBeforeEnd(t *testing.T) {
	end := day(15)

	for _, start := range []time.Time{day(15), day(16)} {
		windows, err := PlanWindows(&start, end, nil, 24*time.Hour)
		require.NoError(t, err)
		assert.Empty(t, windows)
	}
}

func TestPlanWindows_RejectsNonPositiveSize(t *testing.T) {
	start := day(10)

	for _, size := range []time.Duration{0, -time.Hour} {
		_, err := PlanWindows(&start, day(15), nil, size)
		assert.Error(t, err, "size %s", size)
	}
}

func TestPlanWindows_PropertySweep(t *testing.T) {
	sizes := []time.Duration{
		time.Hour,
		7 * time.Hour,
		24 * time.Hour,
		36 * time.Hour,
	}
	spans := []time.Duration{
		time.Minute,
		time.Hour,
		30 * time.Hour,
		240 * time.Hour,
	}

	for _, size := range sizes {
		for _, span := range spans {
			start := day(1)
			end := start.Add(span)

			windows, err := PlanWindows(&start, end, nil, size)
			require.NoError(t, err)
			require.NotEmpty(t, windows)

			assert.True(t, windows[0].Start.Equal(start))
			assert.True(t, windows[len(windows)-1].End.Equal(end))
			for i, w := range windows {
				assert.True(t, w.Start.Before(w.End), "size=%s span=%s window %d is empty", size, span, i)
				if i > 0 {
					assert.True(t, w.Start.Equal(windows[i-1].End),
						"size=%s span=%s gap or overlap at window %d", size, span, i)
				}
			}
		}
	}
}
