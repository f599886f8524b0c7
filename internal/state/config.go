// Package state holds the live, process-scoped state shared by the poll loop
// and the HTTP handlers: thresholds, the watch-list, the last result per entity
// and the poll counters. Nothing here survives a restart.
package state

import (
	"strings"
	"sync"

	"github.com/derekk024/TelemetryOps/internal/models"
)

// ConfigStore guards the thresholds and the watch-list.
type ConfigStore struct {
	mu         sync.RWMutex
	thresholds models.Thresholds
	watch      []string
}

// NewConfigStore seeds the store. An empty or invalid seed is rejected.
func NewConfigStore(t models.Thresholds, watch []string) (*ConfigStore, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	ids, err := normalizeWatchList(watch)
	if err != nil {
		return nil, err
	}
	return &ConfigStore{thresholds: t, watch: ids}, nil
}

// Thresholds returns a copy of the current thresholds.
func (c *ConfigStore) Thresholds() models.Thresholds {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.thresholds
}

// MergeThresholds applies the present fields of p and returns the result.
// If the merged value is invalid nothing changes.
func (c *ConfigStore) MergeThresholds(p models.ThresholdsPatch) (models.Thresholds, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	merged := p.Apply(c.thresholds)
	if err := merged.Validate(); err != nil {
		return c.thresholds, err
	}
	c.thresholds = merged
	return merged, nil
}

// WatchList returns a copy of the watched entity ids.
func (c *ConfigStore) WatchList() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.watch...)
}

// ReplaceWatchList swaps the whole list. Blank ids are dropped and duplicates
// collapsed; an empty result is a ValidationError and the prior list stays.
func (c *ConfigStore) ReplaceWatchList(ids []string) ([]string, error) {
	next, err := normalizeWatchList(ids)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.watch = next
	c.mu.Unlock()

	return append([]string(nil), next...), nil
}

// Snapshot returns thresholds and watch-list read under one lock, so a poll
// cycle never sees a half-applied update.
func (c *ConfigStore) Snapshot() (models.Thresholds, []string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.thresholds, append([]string(nil), c.watch...)
}

func normalizeWatchList(ids []string) ([]string, error) {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, &models.ValidationError{Field: "sats", Reason: "sats must be non-empty"}
	}
	return out, nil
}
