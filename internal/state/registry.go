package state

import "github.com/derekk024/TelemetryOps/internal/models"

// Registry owns all live state for one process. It is shared by reference
// between the poll loop and the request handlers.
type Registry struct {
	Config   *ConfigStore
	Entities *EntityStore
	Counters *Counters
}

// NewRegistry builds a registry seeded with t and watch.
func NewRegistry(t models.Thresholds, watch []string) (*Registry, error) {
	cfg, err := NewConfigStore(t, watch)
	if err != nil {
		return nil, err
	}
	return &Registry{
		Config:   cfg,
		Entities: NewEntityStore(),
		Counters: NewCounters(),
	}, nil
}
