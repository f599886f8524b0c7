package state

import (
	"sync"
	"sync/atomic"

	"github.com/derekk024/TelemetryOps/internal/alerts"
)

// Counters are monotonic for the lifetime of the process.
type Counters struct {
	cycles   atomic.Int64
	failures atomic.Int64
	byKind   map[alerts.Kind]*atomic.Int64

	mu        sync.Mutex
	perEntity map[string]int64
}

// NewCounters returns zeroed counters.
func NewCounters() *Counters {
	c := &Counters{
		byKind:    make(map[alerts.Kind]*atomic.Int64, len(alerts.Kinds())),
		perEntity: make(map[string]int64),
	}
	for _, k := range alerts.Kinds() {
		c.byKind[k] = new(atomic.Int64)
	}
	return c
}

// IncCycles counts one poll cycle.
func (c *Counters) IncCycles() { c.cycles.Add(1) }

// IncFailure records one failed fetch for id.
func (c *Counters) IncFailure(id string) {
	c.failures.Add(1)
	c.mu.Lock()
	c.perEntity[id]++
	c.mu.Unlock()
}

// IncAlert counts one alert of kind k. Unknown kinds are ignored.
func (c *Counters) IncAlert(k alerts.Kind) {
	if n, ok := c.byKind[k]; ok {
		n.Add(1)
	}
}

// PollState is a point-in-time read of the counters.
type PollState struct {
	Cycles         int64            `json:"cycles"`
	Failures       int64            `json:"failures"`
	EntityFailures map[string]int64 `json:"entity_failures"`
	AlertsByType   map[string]int64 `json:"alerts_by_type"`
}

// Snapshot copies the counters. Individual values are each consistent; the
// set as a whole is not taken under one lock.
func (c *Counters) Snapshot() PollState {
	ps := PollState{
		Cycles:         c.cycles.Load(),
		Failures:       c.failures.Load(),
		AlertsByType:   make(map[string]int64, len(c.byKind)),
		EntityFailures: make(map[string]int64),
	}
	for k, n := range c.byKind {
		ps.AlertsByType[string(k)] = n.Load()
	}
	c.mu.Lock()
	for id, n := range c.perEntity {
		ps.EntityFailures[id] = n
	}
	c.mu.Unlock()
	return ps
}
