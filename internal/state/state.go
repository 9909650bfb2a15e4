// Package state persists the connector's incremental watermarks (the max
// reference date seen per stream) and a log of sync runs.
package state

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

// Run is one completed sync execution for accounting.
type Run struct {
	ID         string
	Stream     string
	Records    int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Store is the persistence interface for watermarks and run accounting.
type Store interface {
	// GetWatermark returns the stored watermark for a stream, "" when none.
	GetWatermark(ctx context.Context, stream string) (string, error)
	// SetWatermark stores a watermark only when it advances past the
	// current value (lexicographic order — ISO dates compare correctly).
	SetWatermark(ctx context.Context, stream string, watermark string) error
	// LogRun records one completed sync run.
	LogRun(ctx context.Context, run Run) error

	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a Store for the configured driver.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "sqlite", "":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn)
	default:
		return nil, eris.Errorf("state: unknown driver %q", driver)
	}
}
