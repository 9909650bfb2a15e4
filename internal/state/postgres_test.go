package state

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return newPostgresWithPool(mock), mock
}

func TestPostgres_GetWatermark(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT watermark FROM watermarks").
		WithArgs("gestora_renda_fixa").
		WillReturnRows(pgxmock.NewRows([]string{"watermark"}).AddRow("2024-03-01"))

	wm, err := s.GetWatermark(context.Background(), "gestora_renda_fixa")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", wm)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetWatermark_Missing(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT watermark FROM watermarks").
		WithArgs("unknown").
		WillReturnRows(pgxmock.NewRows([]string{"watermark"}))

	wm, err := s.GetWatermark(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Empty(t, wm)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SetWatermark(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO watermarks").
		WithArgs("gestora_renda_fixa", "2024-03-01").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SetWatermark(context.Background(), "gestora_renda_fixa", "2024-03-01")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_LogRun(t *testing.T) {
	s, mock := newMockStore(t)

	started := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	finished := started.Add(time.Minute)

	mock.ExpectExec("INSERT INTO sync_runs").
		WithArgs("run-1", "gestora_renda_fixa", 42, started, finished).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.LogRun(context.Background(), Run{
		ID:         "run-1",
		Stream:     "gestora_renda_fixa",
		Records:    42,
		StartedAt:  started,
		FinishedAt: finished,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Migrate(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS watermarks").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
