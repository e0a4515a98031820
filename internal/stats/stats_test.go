package stats

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStoreUpsertAndRecent(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, filepath.Join(t.TempDir(), "stats.db"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	require.NoError(t, s.Upsert(ctx, Daily{Day: "2024-01-01", ProlongedSeconds: 120, BreakCount: 2, LongestSeatedSeconds: 900}))
	require.NoError(t, s.Upsert(ctx, Daily{Day: "2024-01-02", ProlongedSeconds: 60, BreakCount: 1, LongestSeatedSeconds: 300}))
	// replace an existing day
	require.NoError(t, s.Upsert(ctx, Daily{Day: "2024-01-01", ProlongedSeconds: 180, BreakCount: 3, LongestSeatedSeconds: 950}))

	got, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "2024-01-02", got[0].Day)
	require.Equal(t, "2024-01-01", got[1].Day)
	require.Equal(t, 3, got[1].BreakCount)
	require.InDelta(t, 180, got[1].ProlongedSeconds, 0.001)
}

func TestStoreOpenEmptyPath(t *testing.T) {
	_, err := Open(context.Background(), "  ")
	require.Error(t, err)
}

func TestTrackerAccumulates(t *testing.T) {
	tr := NewTracker(nil, nil)
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	tr.SetNowFunc(func() time.Time { return now })

	tr.Observe(2*time.Second, true, false, 100)
	tr.Observe(2*time.Second, true, false, 200)
	tr.Observe(2*time.Second, false, true, 0)
	tr.Observe(2*time.Second, false, false, 50)

	d := tr.Today()
	require.Equal(t, "2024-03-01", d.Day)
	require.InDelta(t, 4, d.ProlongedSeconds, 0.001)
	require.Equal(t, 1, d.BreakCount)
	require.InDelta(t, 200, d.LongestSeatedSeconds, 0.001)
}

func TestTrackerRolloverFlushes(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, filepath.Join(t.TempDir(), "stats.db"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	tr := NewTracker(s, nil)
	now := time.Date(2024, 3, 1, 23, 59, 0, 0, time.UTC)
	tr.SetNowFunc(func() time.Time { return now })
	tr.Observe(time.Minute, true, true, 600)

	// day change on the next observation triggers the flush
	now = time.Date(2024, 3, 2, 0, 1, 0, 0, time.UTC)
	tr.Observe(2*time.Second, false, false, 10)

	rows, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "2024-03-01", rows[0].Day)
	require.InDelta(t, 60, rows[0].ProlongedSeconds, 0.001)
	require.Equal(t, 1, rows[0].BreakCount)

	d := tr.Today()
	require.Equal(t, "2024-03-02", d.Day)
	require.Equal(t, 0, d.BreakCount)
}

func TestTrackerCloseFlushesCurrentDay(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, filepath.Join(t.TempDir(), "stats.db"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	tr := NewTracker(s, nil)
	now := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	tr.SetNowFunc(func() time.Time { return now })
	tr.Observe(30*time.Second, true, false, 1200)
	tr.Close()

	rows, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "2024-03-05", rows[0].Day)
	require.InDelta(t, 1200, rows[0].LongestSeatedSeconds, 0.001)
}
