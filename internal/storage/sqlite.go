package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/derekk024/TelemetryOps/internal/models"
)

// SQLiteStore keeps samples in a local SQLite file in WAL mode.
type SQLiteStore struct {
	db   *gorm.DB
	path string
}

// OpenSQLite opens (creating if needed) the database at path and migrates
// the telemetry table.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		path = "data/telemetry.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.AutoMigrate(&models.TelemetrySample{}); err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}

	slog.Info("database opened", "driver", "sqlite", "path", path)
	return &SQLiteStore{db: db, path: path}, nil
}

// Path is the database file location.
func (s *SQLiteStore) Path() string { return s.path }

// Insert adds sample unless its event_id already exists. It reports whether
// a row was written.
func (s *SQLiteStore) Insert(ctx context.Context, sample models.TelemetrySample) (bool, error) {
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&sample)
	if res.Error != nil {
		return false, classify("insert", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Query returns the samples of entityID with ts_ms >= minTsMs.
func (s *SQLiteStore) Query(ctx context.Context, entityID string, minTsMs int64) ([]models.TelemetrySample, error) {
	var rows []models.TelemetrySample
	err := s.db.WithContext(ctx).
		Where("sat_id = ? AND ts_ms >= ?", entityID, minTsMs).
		Find(&rows).Error
	if err != nil {
		return nil, classify("query", err)
	}
	return rows, nil
}

// Ping checks that the database file is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return classify("ping", err)
	}
	return classify("ping", sqlDB.PingContext(ctx))
}

// Close closes the underlying connection.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
