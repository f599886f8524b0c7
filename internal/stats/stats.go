// Package stats computes windowed link statistics from raw telemetry samples.
// Every function is pure and total: empty input yields zero, never an error.
package stats

import (
	"sort"

	"github.com/derekk024/TelemetryOps/internal/models"
)

// Percentile returns the p-th percentile of values using linear interpolation
// between the two nearest ranks. p is clamped to [0,100]. The input slice is
// left untouched.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if p < 0 {
		p = 0
	} else if p > 100 {
		p = 100
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	idx := p / 100 * float64(len(sorted)-1)
	i := int(idx)
	frac := idx - float64(i)
	if i+1 < len(sorted) {
		return sorted[i]*(1-frac) + sorted[i+1]*frac
	}
	return sorted[i]
}

// DropRate is total dropped over total sent; 0 when nothing was sent.
func DropRate(samples []models.TelemetrySample) float64 {
	var dropped, sent int64
	for _, s := range samples {
		dropped += int64(s.DroppedCount)
		sent += int64(s.SentCount)
	}
	if sent == 0 {
		return 0
	}
	return float64(dropped) / float64(sent)
}

// AvgLinkQuality is the arithmetic mean of link quality; 0 when empty.
func AvgLinkQuality(samples []models.TelemetrySample) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s.LinkQuality
	}
	return sum / float64(len(samples))
}

// Latencies extracts latency values in sample order.
func Latencies(samples []models.TelemetrySample) []float64 {
	out := make([]float64, 0, len(samples))
	for _, s := range samples {
		out = append(out, s.LatencyMs)
	}
	return out
}

// Summarize fills a successful snapshot from the samples of one window.
func Summarize(entityID string, windowS int, samples []models.TelemetrySample) models.MetricsSnapshot {
	lat := Latencies(samples)
	return models.MetricsSnapshot{
		FetchedOK:      true,
		EntityID:       entityID,
		WindowS:        windowS,
		Count:          len(samples),
		DropRate:       DropRate(samples),
		LatencyP50Ms:   Percentile(lat, 50),
		LatencyP95Ms:   Percentile(lat, 95),
		AvgLinkQuality: AvgLinkQuality(samples),
	}
}
