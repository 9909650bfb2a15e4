package state

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS watermarks (
	stream     TEXT PRIMARY KEY,
	watermark  TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS sync_runs (
	id          TEXT PRIMARY KEY,
	stream      TEXT NOT NULL,
	records     INTEGER NOT NULL,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sync_runs_stream ON sync_runs(stream);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetWatermark(ctx context.Context, stream string) (string, error) {
	var wm string
	err := s.db.QueryRowContext(ctx,
		`SELECT watermark FROM watermarks WHERE stream = ?`, stream,
	).Scan(&wm)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrap(err, "sqlite: get watermark")
	}
	return wm, nil
}

func (s *SQLiteStore) SetWatermark(ctx context.Context, stream, watermark string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO watermarks (stream, watermark, updated_at) VALUES (?, ?, datetime('now'))
		ON CONFLICT(stream) DO UPDATE
		SET watermark = excluded.watermark, updated_at = excluded.updated_at
		WHERE excluded.watermark > watermarks.watermark`,
		stream, watermark,
	)
	return eris.Wrap(err, "sqlite: set watermark")
}

func (s *SQLiteStore) LogRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_runs (id, stream, records, started_at, finished_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Stream, run.Records, run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: log run")
}
