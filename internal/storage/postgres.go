package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/derekk024/TelemetryOps/internal/models"
)

const (
	pgSchema = `CREATE TABLE IF NOT EXISTS telemetry (
	event_id TEXT PRIMARY KEY,
	sat_id TEXT NOT NULL,
	ts_ms BIGINT NOT NULL,
	latency_ms DOUBLE PRECISION NOT NULL,
	dropped_packets INTEGER NOT NULL,
	sent_packets INTEGER NOT NULL,
	link_quality DOUBLE PRECISION NOT NULL
)`
	pgIndexTs  = "CREATE INDEX IF NOT EXISTS idx_telemetry_ts ON telemetry (ts_ms)"
	pgIndexSat = "CREATE INDEX IF NOT EXISTS idx_telemetry_sat ON telemetry (sat_id)"

	pgInsert = "INSERT INTO telemetry (event_id, sat_id, ts_ms, latency_ms, dropped_packets, sent_packets, link_quality) VALUES ($1,$2,$3,$4,$5,$6,$7) ON CONFLICT (event_id) DO NOTHING"
	pgSelect = "SELECT event_id, sat_id, ts_ms, latency_ms, dropped_packets, sent_packets, link_quality FROM telemetry WHERE sat_id = $1 AND ts_ms >= $2"
)

// PostgresStore keeps samples in a PostgreSQL table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an already opened handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres connects with the pgx driver and ensures the schema exists.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("db_dsn is required for db_driver postgres")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s := NewPostgresStore(db)
	if err := s.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	slog.Info("database opened", "driver", "postgres")
	return s, nil
}

// EnsureSchema creates the telemetry table and its indexes if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range []string{pgSchema, pgIndexTs, pgIndexSat} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return classify("schema", err)
		}
	}
	return nil
}

// Insert adds t unless its event_id already exists. It reports whether a
// row was written.
func (s *PostgresStore) Insert(ctx context.Context, t models.TelemetrySample) (bool, error) {
	res, err := s.db.ExecContext(ctx, pgInsert,
		t.EventID, t.EntityID, t.TimestampMs, t.LatencyMs, t.DroppedCount, t.SentCount, t.LinkQuality)
	if err != nil {
		return false, classify("insert", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, classify("insert", err)
	}
	return n > 0, nil
}

// Query returns the samples of entityID with ts_ms >= minTsMs.
func (s *PostgresStore) Query(ctx context.Context, entityID string, minTsMs int64) ([]models.TelemetrySample, error) {
	rows, err := s.db.QueryContext(ctx, pgSelect, entityID, minTsMs)
	if err != nil {
		return nil, classify("query", err)
	}
	defer rows.Close()

	var out []models.TelemetrySample
	for rows.Next() {
		var t models.TelemetrySample
		if err := rows.Scan(&t.EventID, &t.EntityID, &t.TimestampMs, &t.LatencyMs,
			&t.DroppedCount, &t.SentCount, &t.LinkQuality); err != nil {
			return nil, classify("scan", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("query", err)
	}
	return out, nil
}

// Ping checks that the database answers.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return classify("ping", s.db.PingContext(ctx))
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error { return s.db.Close() }

// isPgConnectionError matches SQLSTATE class 08 (connection exception) and
// connect-phase failures.
func isPgConnectionError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08"
	}
	var connErr *pgconn.ConnectError
	return errors.As(err, &connErr)
}
