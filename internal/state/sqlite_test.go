package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLite_WatermarkRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	wm, err := s.GetWatermark(ctx, "gestora_renda_fixa")
	require.NoError(t, err)
	assert.Empty(t, wm)

	require.NoError(t, s.SetWatermark(ctx, "gestora_renda_fixa", "2024-03-01"))

	wm, err = s.GetWatermark(ctx, "gestora_renda_fixa")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", wm)
}

func TestSQLite_WatermarkOnlyAdvances(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetWatermark(ctx, "s", "2024-03-05"))
	require.NoError(t, s.SetWatermark(ctx, "s", "2024-03-01"))

	wm, err := s.GetWatermark(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-05", wm)

	require.NoError(t, s.SetWatermark(ctx, "s", "2024-03-10"))
	wm, err = s.GetWatermark(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-10", wm)
}

func TestSQLite_WatermarksPerStream(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetWatermark(ctx, "a", "2024-03-01"))
	require.NoError(t, s.SetWatermark(ctx, "b", "2024-04-01"))

	wm, err := s.GetWatermark(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", wm)
}

func TestSQLite_LogRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := Run{
		ID:         "run-1",
		Stream:     "gestora_renda_fixa",
		Records:    42,
		StartedAt:  time.Now().Add(-time.Minute),
		FinishedAt: time.Now(),
	}
	require.NoError(t, s.LogRun(ctx, run))

	var records int
	require.NoError(t, s.db.QueryRowContext(ctx,
		`SELECT records FROM sync_runs WHERE id = ?`, "run-1",
	).Scan(&records))
	assert.Equal(t, 42, records)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "dsn")
	assert.Error(t, err)
}

func TestOpen_DefaultsToSQLite(t *testing.T) {
	s, err := Open(context.Background(), "", filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	defer s.Close() //nolint:errcheck
	assert.IsType(t, &SQLiteStore{}, s)
}
