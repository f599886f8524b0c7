// Package loadgen posts synthetic telemetry to an ingest endpoint at a fixed
// rate. Some satellites periodically misbehave so that every alert type can
// be observed end to end.
package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/derekk024/TelemetryOps/internal/models"
)

// Options configure one run.
type Options struct {
	URL      string        // ingest base URL, e.g. http://localhost:8081
	QPS      float64       // samples per second
	Duration time.Duration // how long to run
	Sats     int           // SAT-001 .. SAT-<n>
	Token    string        // optional ingest bearer token
	Timeout  time.Duration // per request
	Seed     int64         // 0 picks a time-based seed
	Logger   *slog.Logger
}

// Result summarises a run.
type Result struct {
	Sent    int
	Failed  int
	Elapsed time.Duration
}

// Rate is the achieved samples per second.
func (r Result) Rate() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Sent) / r.Elapsed.Seconds()
}

// Generator posts synthetic samples to an ingest endpoint at a fixed rate.
type Generator struct {
	url     string
	token   string
	sats    []string
	dur     time.Duration
	limiter *rate.Limiter
	client  *http.Client
	rng     *rand.Rand
	logger  *slog.Logger
	now     func() time.Time
}

// New validates opts and builds a Generator.
func New(opts Options) (*Generator, error) {
	if opts.QPS <= 0 {
		return nil, errors.New("qps must be > 0")
	}
	if opts.Sats < 1 {
		return nil, errors.New("sats must be >= 1")
	}
	if opts.Duration <= 0 {
		return nil, errors.New("duration must be > 0")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Generator{
		url:     strings.TrimRight(opts.URL, "/") + "/telemetry",
		token:   opts.Token,
		sats:    SatIDs(opts.Sats),
		dur:     opts.Duration,
		limiter: rate.NewLimiter(rate.Limit(opts.QPS), 1),
		client:  &http.Client{Timeout: opts.Timeout},
		rng:     rand.New(rand.NewSource(opts.Seed)),
		logger:  opts.Logger,
		now:     time.Now,
	}, nil
}

// SatIDs returns SAT-001 .. SAT-<n>.
func SatIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("SAT-%03d", i+1)
	}
	return ids
}

// Run posts samples until the duration elapses or ctx is cancelled. Failed
// posts are counted and skipped.
func (g *Generator) Run(ctx context.Context) Result {
	start := g.now()
	ctx, cancel := context.WithTimeout(ctx, g.dur)
	defer cancel()

	var res Result
	for {
		if err := g.limiter.Wait(ctx); err != nil {
			break
		}
		elapsed := g.now().Sub(start)
		sat := g.sats[g.rng.Intn(len(g.sats))]
		if err := g.post(ctx, g.Sample(elapsed, sat)); err != nil {
			if ctx.Err() != nil {
				break
			}
			res.Failed++
			g.logger.Debug("loadgen post failed", "sat_id", sat, "error", err)
			continue
		}
		res.Sent++
	}
	res.Elapsed = g.now().Sub(start)
	return res
}

// Sample builds one synthetic reading for sat at elapsed run time.
//
//	SAT-001: latency 300-800ms during the first 5s of every 30s
//	SAT-002: 20-50% drops during the first 5s of every 45s
//	SAT-003: link quality 0.2-0.6 during the first 5s of every 60s
func (g *Generator) Sample(elapsed time.Duration, sat string) models.TelemetrySample {
	t := int(elapsed / time.Second)

	latency := g.uniform(20, 80)
	total := 80 + g.rng.Intn(121)
	dropped := g.rng.Intn(max(1, total/200) + 1)
	lq := g.uniform(0.85, 0.99)

	switch {
	case sat == "SAT-001" && t%30 < 5:
		latency = g.uniform(300, 800)
	case sat == "SAT-002" && t%45 < 5:
		dropped = total/5 + g.rng.Intn(total/2-total/5+1)
	case sat == "SAT-003" && t%60 < 5:
		lq = g.uniform(0.2, 0.6)
	}

	return models.TelemetrySample{
		EventID:      uuid.NewString(),
		EntityID:     sat,
		TimestampMs:  g.now().UnixMilli(),
		LatencyMs:    latency,
		DroppedCount: dropped,
		SentCount:    total,
		LinkQuality:  lq,
	}
}

func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}

// post sends v as JSON, with the bearer token when one is configured.
func (g *Generator) post(ctx context.Context, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("ingest rejected token (401), check --token or ingest_token in config")
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("ingest returned %d", resp.StatusCode)
	}
	return nil
}
