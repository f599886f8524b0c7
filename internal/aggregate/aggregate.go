// Package aggregate turns stored samples into windowed metrics snapshots,
// either in process over a storage.Querier or remotely over HTTP.
package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/derekk024/TelemetryOps/internal/models"
)

// Aggregator produces one snapshot per entity and window. It never returns
// an error: failures come back as a snapshot with FetchedOK false.
type Aggregator interface {
	Aggregate(ctx context.Context, entityID string, windowS int, now time.Time) models.MetricsSnapshot
}

// FetchError records why a snapshot could not be produced for an entity.
type FetchError struct {
	EntityID string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.EntityID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// WindowStart is the inclusive lower bound, in unix milliseconds, of a window
// of windowS seconds ending at now. Windows reaching past the epoch start at 0.
func WindowStart(now time.Time, windowS int) int64 {
	ms := now.UnixMilli()
	if int64(windowS) > ms/1000 {
		return 0
	}
	return ms - int64(windowS)*1000
}
