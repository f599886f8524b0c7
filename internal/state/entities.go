package state

import (
	"sync"
	"time"

	"github.com/derekk024/TelemetryOps/internal/alerts"
	"github.com/derekk024/TelemetryOps/internal/models"
)

// Entry is the latest evaluated result for one entity.
type Entry struct {
	Snapshot  models.MetricsSnapshot
	Alerts    []alerts.Alert
	UpdatedAt time.Time
}

// EntityStore keeps the last snapshot and alert list per entity. The pair is
// always written and read together.
type EntityStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewEntityStore returns an empty store.
func NewEntityStore() *EntityStore {
	return &EntityStore{entries: make(map[string]Entry)}
}

// Put overwrites the entry for id. The alert slice is copied.
func (s *EntityStore) Put(id string, snap models.MetricsSnapshot, list []alerts.Alert, at time.Time) {
	e := Entry{Snapshot: snap, Alerts: cloneAlerts(list), UpdatedAt: at}

	s.mu.Lock()
	s.entries[id] = e
	s.mu.Unlock()
}

// Get returns a copy of the entry for id.
func (s *EntityStore) Get(id string) (Entry, bool) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return Entry{}, false
	}
	e.Alerts = cloneAlerts(e.Alerts)
	return e, true
}

// Len reports how many entities have been recorded.
func (s *EntityStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func cloneAlerts(in []alerts.Alert) []alerts.Alert {
	out := make([]alerts.Alert, len(in))
	copy(out, in)
	return out
}
