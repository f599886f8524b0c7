package aggregate

import (
	"context"
	"log/slog"
	"time"

	"github.com/derekk024/TelemetryOps/internal/models"
	"github.com/derekk024/TelemetryOps/internal/stats"
	"github.com/derekk024/TelemetryOps/internal/storage"
)

// Service aggregates directly over a sample store.
type Service struct {
	store  storage.Querier
	logger *slog.Logger
}

// NewService aggregates from store. A nil logger falls back to slog.Default.
func NewService(store storage.Querier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// Aggregate reads the window ending at now and summarizes it. A store error
// yields a failed snapshot instead of an error return.
func (s *Service) Aggregate(ctx context.Context, entityID string, windowS int, now time.Time) models.MetricsSnapshot {
	if windowS < 1 {
		windowS = 1
	}
	rows, err := s.store.Query(ctx, entityID, WindowStart(now, windowS))
	if err != nil {
		ferr := &FetchError{EntityID: entityID, Err: err}
		s.logger.Warn("aggregate query failed", "sat_id", entityID, "window_s", windowS, "error", err)
		return models.FailedSnapshot(entityID, windowS, ferr)
	}
	return stats.Summarize(entityID, windowS, rows)
}
