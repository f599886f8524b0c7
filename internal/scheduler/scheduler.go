// Package scheduler runs the periodic poll: for every watched entity it
// aggregates the current window, evaluates alerts and publishes the result
// into the shared state registry.
package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/derekk024/TelemetryOps/internal/aggregate"
	"github.com/derekk024/TelemetryOps/internal/alerts"
	"github.com/derekk024/TelemetryOps/internal/models"
	"github.com/derekk024/TelemetryOps/internal/state"
)

// Defaults used when Options leaves a field zero.
const (
	DefaultInterval     = 5 * time.Second
	DefaultConcurrency  = 8
	DefaultFetchTimeout = 6 * time.Second
)

// Phase is the scheduler lifecycle state.
type Phase int32

const (
	PhaseStopped Phase = iota
	PhaseRunning
	PhaseStopping
)

func (p Phase) String() string {
	switch p {
	case PhaseRunning:
		return "RUNNING"
	case PhaseStopping:
		return "STOPPING"
	default:
		return "STOPPED"
	}
}

// Recorder receives poll metrics. metrics.Recorder satisfies it.
type Recorder interface {
	IncPollCycle()
	IncPollFailure()
	IncAlert(k alerts.Kind)
	ObserveFetch(d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) IncPollCycle()              {}
func (nopRecorder) IncPollFailure()            {}
func (nopRecorder) IncAlert(alerts.Kind)       {}
func (nopRecorder) ObserveFetch(time.Duration) {}

// Options configures a Scheduler. Zero fields take the package defaults.
type Options struct {
	Interval     time.Duration
	Concurrency  int
	FetchTimeout time.Duration
	Logger       *slog.Logger
	Recorder     Recorder
	Now          func() time.Time
}

// Scheduler polls every watched entity once per interval.
type Scheduler struct {
	agg          aggregate.Aggregator
	reg          *state.Registry
	logger       *slog.Logger
	rec          Recorder
	now          func() time.Time
	interval     time.Duration
	concurrency  int
	fetchTimeout time.Duration

	phase atomic.Int32
}

// New builds a stopped scheduler that reads its watch-list and thresholds
// from reg and writes results back into it.
func New(agg aggregate.Aggregator, reg *state.Registry, opts Options) *Scheduler {
	s := &Scheduler{
		agg:          agg,
		reg:          reg,
		logger:       opts.Logger,
		rec:          opts.Recorder,
		now:          opts.Now,
		interval:     opts.Interval,
		concurrency:  opts.Concurrency,
		fetchTimeout: opts.FetchTimeout,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.rec == nil {
		s.rec = nopRecorder{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.interval <= 0 {
		s.interval = DefaultInterval
	}
	if s.concurrency <= 0 {
		s.concurrency = DefaultConcurrency
	}
	if s.fetchTimeout <= 0 {
		s.fetchTimeout = DefaultFetchTimeout
	}
	return s
}

// Phase reports the current lifecycle state.
func (s *Scheduler) Phase() Phase { return Phase(s.phase.Load()) }

// Run polls immediately and then once per interval until ctx is cancelled.
// A cycle that has started always runs to completion; Run returns only after
// it has.
func (s *Scheduler) Run(ctx context.Context) error {
	s.phase.Store(int32(PhaseRunning))
	defer s.phase.Store(int32(PhaseStopped))

	s.logger.Info("poll loop started", "interval", s.interval, "concurrency", s.concurrency)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if ctx.Err() == nil {
		s.RunOnce(context.WithoutCancel(ctx))
	}

	for {
		select {
		case <-ctx.Done():
			s.phase.Store(int32(PhaseStopping))
			s.logger.Info("poll loop stopping")
			return nil
		case <-ticker.C:
			if ctx.Err() != nil {
				continue
			}
			s.RunOnce(context.WithoutCancel(ctx))
		}
	}
}

// RunOnce executes a single poll cycle over the current watch-list.
func (s *Scheduler) RunOnce(ctx context.Context) {
	th, watch := s.reg.Config.Snapshot()

	s.reg.Counters.IncCycles()
	s.rec.IncPollCycle()

	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for _, id := range watch {
		id := id
		g.Go(func() error {
			s.pollEntity(ctx, id, th)
			return nil
		})
	}
	_ = g.Wait()
}

// pollEntity fetches and evaluates one entity. A failed fetch bumps the
// failure counters and also counts its SOURCE_UNAVAILABLE alert by kind, but
// leaves the entity's last good entry in place. A panic counts as a failure.
func (s *Scheduler) pollEntity(ctx context.Context, id string, th models.Thresholds) {
	defer func() {
		if r := recover(); r != nil {
			s.reg.Counters.IncFailure(id)
			s.rec.IncPollFailure()
			s.logger.Error("poll panicked", "sat_id", id, "panic", r)
		}
	}()

	fctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	start := time.Now()
	snap := s.agg.Aggregate(fctx, id, th.WindowS, s.now())
	cancel()
	s.rec.ObserveFetch(time.Since(start))

	list := alerts.Evaluate(snap, th)
	if !snap.FetchedOK {
		s.reg.Counters.IncFailure(id)
		s.rec.IncPollFailure()
		s.count(list)
		s.logger.Warn("poll fetch failed", "sat_id", id, "error", snap.Error)
		return
	}

	s.reg.Entities.Put(id, snap, list, s.now())
	s.count(list)
	if len(list) > 0 {
		s.logger.Debug("alerts raised", "sat_id", id, "count", len(list))
	}
}

func (s *Scheduler) count(list []alerts.Alert) {
	for _, a := range list {
		s.reg.Counters.IncAlert(a.Kind)
		s.rec.IncAlert(a.Kind)
	}
}
