package state

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// pool is the subset of pgxpool.Pool the store needs; pgxmock satisfies it
// in tests.
type pool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 4
	cfg.MaxConnLifetime = 30 * time.Minute

	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: p}, nil
}

// newPostgresWithPool wires a pre-built pool; used by tests with pgxmock.
func newPostgresWithPool(p pool) *PostgresStore {
	return &PostgresStore{pool: p}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS watermarks (
	stream     TEXT PRIMARY KEY,
	watermark  TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sync_runs (
	id          TEXT PRIMARY KEY,
	stream      TEXT NOT NULL,
	records     INTEGER NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sync_runs_stream ON sync_runs(stream);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) GetWatermark(ctx context.Context, stream string) (string, error) {
	var wm string
	err := s.pool.QueryRow(ctx,
		`SELECT watermark FROM watermarks WHERE stream = $1`, stream,
	).Scan(&wm)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrap(err, "postgres: get watermark")
	}
	return wm, nil
}

func (s *PostgresStore) SetWatermark(ctx context.Context, stream, watermark string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO watermarks (stream, watermark, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (stream) DO UPDATE
		SET watermark = EXCLUDED.watermark, updated_at = EXCLUDED.updated_at
		WHERE EXCLUDED.watermark > watermarks.watermark`,
		stream, watermark,
	)
	return eris.Wrap(err, "postgres: set watermark")
}

func (s *PostgresStore) LogRun(ctx context.Context, run Run) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sync_runs (id, stream, records, started_at, finished_at) VALUES ($1, $2, $3, $4, $5)`,
		run.ID, run.Stream, run.Records, run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	return eris.Wrap(err, "postgres: log run")
}
