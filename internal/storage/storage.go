// Package storage persists telemetry samples and serves windowed reads.
//
// Two backends are provided: an embedded SQLite file through GORM (the
// default) and PostgreSQL through database/sql with the pgx driver.
package storage

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/derekk024/TelemetryOps/internal/models"
)

var (
	// ErrUnreachable means the store could not be contacted in time.
	ErrUnreachable = errors.New("sample store unreachable")
	// ErrStore covers every other store-side failure.
	ErrStore = errors.New("sample store error")
)

// Querier is the read path used by aggregation.
type Querier interface {
	// Query returns every sample of entityID with ts_ms >= minTsMs.
	Query(ctx context.Context, entityID string, minTsMs int64) ([]models.TelemetrySample, error)
}

// Store is a full sample store.
type Store interface {
	Querier
	// Insert writes s unless its event_id already exists. inserted is false
	// for a duplicate.
	Insert(ctx context.Context, s models.TelemetrySample) (inserted bool, err error)
	Ping(ctx context.Context) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Driver string // "sqlite" or "postgres"
	Path   string // sqlite file
	DSN    string // postgres connection string
}

// Open returns the backend named by opts.Driver, schema ready.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "sqlite", "":
		return OpenSQLite(opts.Path)
	case "postgres":
		return OpenPostgres(ctx, opts.DSN)
	default:
		return nil, fmt.Errorf("unsupported db_driver %q (use 'sqlite' or 'postgres')", opts.Driver)
	}
}

// classify wraps err with ErrUnreachable or ErrStore.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if isUnreachable(err) {
		return fmt.Errorf("%s: %w: %w", op, ErrUnreachable, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStore, err)
}

func isUnreachable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return isPgConnectionError(err)
}
