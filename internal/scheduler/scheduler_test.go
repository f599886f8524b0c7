package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derekk024/TelemetryOps/internal/alerts"
	"github.com/derekk024/TelemetryOps/internal/models"
	"github.com/derekk024/TelemetryOps/internal/state"
)

// fakeAggregator returns a canned snapshot per entity; unknown entities fail.
type fakeAggregator struct {
	mu     sync.Mutex
	snaps  map[string]models.MetricsSnapshot
	calls  atomic.Int64
	delay  time.Duration
	window atomic.Int64
}

func (f *fakeAggregator) set(id string, snap models.MetricsSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snaps[id] = snap
}

func (f *fakeAggregator) Aggregate(ctx context.Context, id string, windowS int, _ time.Time) models.MetricsSnapshot {
	f.calls.Add(1)
	f.window.Store(int64(windowS))
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	snap, ok := f.snaps[id]
	if !ok {
		return models.FailedSnapshot(id, windowS, context.DeadlineExceeded)
	}
	snap.EntityID = id
	snap.WindowS = windowS
	return snap
}

type countingRecorder struct {
	cycles, failures, fetches atomic.Int64
	mu                        sync.Mutex
	kinds                     map[alerts.Kind]int
}

func (r *countingRecorder) IncPollCycle()   { r.cycles.Add(1) }
func (r *countingRecorder) IncPollFailure() { r.failures.Add(1) }
func (r *countingRecorder) IncAlert(k alerts.Kind) {
	r.mu.Lock()
	r.kinds[k]++
	r.mu.Unlock()
}
func (r *countingRecorder) ObserveFetch(time.Duration) { r.fetches.Add(1) }

func newFixture(t *testing.T, watch ...string) (*state.Registry, *fakeAggregator) {
	t.Helper()
	reg, err := state.NewRegistry(models.DefaultThresholds(), watch)
	require.NoError(t, err)
	return reg, &fakeAggregator{snaps: map[string]models.MetricsSnapshot{}}
}

func TestRunOncePublishesResults(t *testing.T) {
	reg, agg := newFixture(t, "SAT-001", "SAT-002")
	agg.set("SAT-001", models.MetricsSnapshot{FetchedOK: true, Count: 5, LatencyP95Ms: 250, AvgLinkQuality: 0.9})
	agg.set("SAT-002", models.MetricsSnapshot{FetchedOK: true, Count: 5, LatencyP95Ms: 50, AvgLinkQuality: 0.9})
	rec := &countingRecorder{kinds: map[alerts.Kind]int{}}

	New(agg, reg, Options{Recorder: rec}).RunOnce(context.Background())

	e, ok := reg.Entities.Get("SAT-001")
	require.True(t, ok)
	require.Len(t, e.Alerts, 1)
	assert.Equal(t, alerts.KindLatencyP95, e.Alerts[0].Kind)
	assert.Equal(t, 250.0, e.Snapshot.LatencyP95Ms)

	e, ok = reg.Entities.Get("SAT-002")
	require.True(t, ok)
	assert.Empty(t, e.Alerts)

	ps := reg.Counters.Snapshot()
	assert.EqualValues(t, 1, ps.Cycles)
	assert.EqualValues(t, 0, ps.Failures)
	assert.EqualValues(t, 1, ps.AlertsByType["LATENCY_P95"])
	assert.EqualValues(t, 1, rec.cycles.Load())
	assert.EqualValues(t, 2, rec.fetches.Load())
	assert.Equal(t, 1, rec.kinds[alerts.KindLatencyP95])
}

func TestFailedFetchKeepsPreviousEntry(t *testing.T) {
	reg, agg := newFixture(t, "SAT-003")
	agg.set("SAT-003", models.MetricsSnapshot{FetchedOK: true, Count: 7, AvgLinkQuality: 0.9})
	s := New(agg, reg, Options{})
	s.RunOnce(context.Background())

	before, ok := reg.Entities.Get("SAT-003")
	require.True(t, ok)

	agg.mu.Lock()
	delete(agg.snaps, "SAT-003")
	agg.mu.Unlock()

	const failingTicks = 4
	for i := 0; i < failingTicks; i++ {
		s.RunOnce(context.Background())
	}

	after, ok := reg.Entities.Get("SAT-003")
	require.True(t, ok)
	assert.Equal(t, before, after)

	ps := reg.Counters.Snapshot()
	assert.GreaterOrEqual(t, ps.Failures, int64(failingTicks))
	assert.EqualValues(t, failingTicks, ps.EntityFailures["SAT-003"])
	assert.EqualValues(t, failingTicks, ps.AlertsByType["SOURCE_UNAVAILABLE"])
	assert.EqualValues(t, failingTicks+1, ps.Cycles)
}

func TestRemovedEntityKeepsLastResult(t *testing.T) {
	reg, agg := newFixture(t, "SAT-001", "SAT-002")
	agg.set("SAT-001", models.MetricsSnapshot{FetchedOK: true, Count: 1, AvgLinkQuality: 0.9})
	agg.set("SAT-002", models.MetricsSnapshot{FetchedOK: true, Count: 2, AvgLinkQuality: 0.9})
	s := New(agg, reg, Options{})
	s.RunOnce(context.Background())

	_, err := reg.Config.ReplaceWatchList([]string{"SAT-001"})
	require.NoError(t, err)
	agg.set("SAT-002", models.MetricsSnapshot{FetchedOK: true, Count: 99, AvgLinkQuality: 0.9})
	s.RunOnce(context.Background())

	e, ok := reg.Entities.Get("SAT-002")
	require.True(t, ok)
	assert.Equal(t, 2, e.Snapshot.Count)
}

func TestRunOnceUsesCurrentWindow(t *testing.T) {
	reg, agg := newFixture(t, "SAT-001")
	agg.set("SAT-001", models.MetricsSnapshot{FetchedOK: true})
	window := 42
	_, err := reg.Config.MergeThresholds(models.ThresholdsPatch{WindowS: &window})
	require.NoError(t, err)

	New(agg, reg, Options{}).RunOnce(context.Background())
	assert.EqualValues(t, 42, agg.window.Load())
}

func TestRunTicksImmediatelyAndStops(t *testing.T) {
	reg, agg := newFixture(t, "SAT-001")
	agg.set("SAT-001", models.MetricsSnapshot{FetchedOK: true})
	s := New(agg, reg, Options{Interval: 20 * time.Millisecond})
	assert.Equal(t, PhaseStopped, s.Phase())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return reg.Counters.Snapshot().Cycles >= 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, PhaseRunning, s.Phase())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, PhaseStopped, s.Phase())
}

func TestCancelWaitsForInFlightCycle(t *testing.T) {
	reg, agg := newFixture(t, "SAT-001")
	agg.set("SAT-001", models.MetricsSnapshot{FetchedOK: true, Count: 3, AvgLinkQuality: 0.9})
	agg.delay = 100 * time.Millisecond
	s := New(agg, reg, Options{Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return agg.calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()
	<-done

	e, ok := reg.Entities.Get("SAT-001")
	require.True(t, ok, "in-flight cycle must complete before Run returns")
	assert.Equal(t, 3, e.Snapshot.Count)
}

func TestBoundedConcurrency(t *testing.T) {
	ids := []string{"A", "B", "C", "D", "E", "F"}
	reg, _ := newFixture(t, ids...)

	var inFlight, peak atomic.Int64
	agg := aggregatorFunc(func(ctx context.Context, id string, w int, _ time.Time) models.MetricsSnapshot {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return models.MetricsSnapshot{FetchedOK: true, EntityID: id, WindowS: w}
	})

	New(agg, reg, Options{Concurrency: 2}).RunOnce(context.Background())

	assert.LessOrEqual(t, peak.Load(), int64(2))
	assert.Equal(t, len(ids), reg.Entities.Len())
}

func TestPanicInOneEntityDoesNotStopOthers(t *testing.T) {
	reg, _ := newFixture(t, "BAD", "GOOD")
	agg := aggregatorFunc(func(_ context.Context, id string, w int, _ time.Time) models.MetricsSnapshot {
		if id == "BAD" {
			panic("boom")
		}
		return models.MetricsSnapshot{FetchedOK: true, EntityID: id, WindowS: w}
	})

	New(agg, reg, Options{}).RunOnce(context.Background())

	_, ok := reg.Entities.Get("GOOD")
	assert.True(t, ok)
	_, ok = reg.Entities.Get("BAD")
	assert.False(t, ok)

	ps := reg.Counters.Snapshot()
	assert.EqualValues(t, 1, ps.Failures)
	assert.EqualValues(t, 1, ps.EntityFailures["BAD"])
	assert.Zero(t, ps.EntityFailures["GOOD"])
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "RUNNING", PhaseRunning.String())
	assert.Equal(t, "STOPPING", PhaseStopping.String())
	assert.Equal(t, "STOPPED", PhaseStopped.String())
}

type aggregatorFunc func(ctx context.Context, id string, windowS int, now time.Time) models.MetricsSnapshot

func (f aggregatorFunc) Aggregate(ctx context.Context, id string, windowS int, now time.Time) models.MetricsSnapshot {
	return f(ctx, id, windowS, now)
}
