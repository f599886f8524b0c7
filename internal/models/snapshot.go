package models

// MetricsSnapshot holds windowed statistics for one entity, recomputed each
// poll cycle. The JSON shape doubles as the aggregator wire format.
//
// When Count is zero every rate field is zero by convention: that means
// "insufficient data", not a zero measurement. When FetchedOK is false the
// statistics are absent and Error carries the cause.
type MetricsSnapshot struct {
	FetchedOK bool   `json:"ok"`
	EntityID  string `json:"sat_id"`
	WindowS   int    `json:"window_s"`
	Count     int    `json:"count"`

	DropRate       float64 `json:"drop_rate"`
	LatencyP50Ms   float64 `json:"latency_p50_ms"`
	LatencyP95Ms   float64 `json:"latency_p95_ms"`
	AvgLinkQuality float64 `json:"avg_link_quality"`

	Error string `json:"error,omitempty"`
}

// FailedSnapshot returns the snapshot shape used for a fetch failure.
func FailedSnapshot(entityID string, windowS int, err error) MetricsSnapshot {
	snap := MetricsSnapshot{EntityID: entityID, WindowS: windowS}
	if err != nil {
		snap.Error = err.Error()
	}
	return snap
}
