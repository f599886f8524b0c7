package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/derekk024/TelemetryOps/internal/models"
)

func TestPercentile(t *testing.T) {
	cases := []struct {
		name   string
		values []float64
		p      float64
		want   float64
	}{
		{"median of three", []float64{10, 20, 30}, 50, 20},
		{"empty", nil, 95, 0},
		{"single", []float64{7}, 95, 7},
		{"interpolated", []float64{10, 20}, 50, 15},
		{"unsorted input", []float64{30, 10, 20}, 50, 20},
		{"p95 of five", []float64{1, 2, 3, 4, 5}, 95, 4.8},
		{"p0", []float64{5, 1, 9}, 0, 1},
		{"p100", []float64{5, 1, 9}, 100, 9},
		{"clamped above", []float64{5, 1, 9}, 150, 9},
		{"clamped below", []float64{5, 1, 9}, -10, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, Percentile(tc.values, tc.p), 1e-9)
		})
	}
}

func TestPercentileDoesNotMutateInput(t *testing.T) {
	in := []float64{3, 1, 2}
	_ = Percentile(in, 50)
	assert.Equal(t, []float64{3, 1, 2}, in)
}

func TestDropRate(t *testing.T) {
	assert.Zero(t, DropRate(nil))
	assert.Zero(t, DropRate([]models.TelemetrySample{{DroppedCount: 0, SentCount: 0}}))

	got := DropRate([]models.TelemetrySample{
		{DroppedCount: 5, SentCount: 100},
		{DroppedCount: 15, SentCount: 100},
	})
	assert.InDelta(t, 0.1, got, 1e-9)
}

func TestAvgLinkQuality(t *testing.T) {
	assert.Zero(t, AvgLinkQuality(nil))
	got := AvgLinkQuality([]models.TelemetrySample{{LinkQuality: 0.8}, {LinkQuality: 0.6}})
	assert.InDelta(t, 0.7, got, 1e-9)
}

func TestSummarize(t *testing.T) {
	samples := []models.TelemetrySample{
		{LatencyMs: 10, DroppedCount: 1, SentCount: 10, LinkQuality: 0.9},
		{LatencyMs: 20, DroppedCount: 0, SentCount: 10, LinkQuality: 0.8},
		{LatencyMs: 30, DroppedCount: 1, SentCount: 20, LinkQuality: 0.7},
	}
	snap := Summarize("SAT-001", 600, samples)

	assert.True(t, snap.FetchedOK)
	assert.Equal(t, "SAT-001", snap.EntityID)
	assert.Equal(t, 600, snap.WindowS)
	assert.Equal(t, 3, snap.Count)
	assert.InDelta(t, 0.05, snap.DropRate, 1e-9)
	assert.InDelta(t, 20, snap.LatencyP50Ms, 1e-9)
	assert.InDelta(t, 29, snap.LatencyP95Ms, 1e-9)
	assert.InDelta(t, 0.8, snap.AvgLinkQuality, 1e-9)
}

func TestSummarizeEmptyWindow(t *testing.T) {
	snap := Summarize("SAT-002", 60, nil)
	assert.True(t, snap.FetchedOK)
	assert.Zero(t, snap.Count)
	assert.Zero(t, snap.DropRate)
	assert.Zero(t, snap.LatencyP95Ms)
	assert.Zero(t, snap.AvgLinkQuality)
}
