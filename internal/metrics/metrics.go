// Package metrics exposes process counters in Prometheus text format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/derekk024/TelemetryOps/internal/alerts"
)

// Recorder owns a private registry so several planes can run in one process
// without colliding on the global one.
type Recorder struct {
	reg *prometheus.Registry

	pollCycles    prometheus.Counter
	pollFailures  prometheus.Counter
	alertsByType  *prometheus.CounterVec
	fetchDuration prometheus.Histogram
	inserted      prometheus.Counter
	duplicates    prometheus.Counter
	requests      *prometheus.CounterVec
}

// New registers every collector on a fresh private registry.
func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		pollCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "poll_cycles_total",
			Help: "Poll cycles started.",
		}),
		pollFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "poll_failures_total",
			Help: "Per-entity fetches that failed.",
		}),
		alertsByType: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alerts_total",
			Help: "Alerts raised, by type.",
		}, []string{"type"}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "poll_fetch_duration_seconds",
			Help:    "Time to aggregate one entity during a poll cycle.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		inserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telemetry_inserted_total",
			Help: "Samples stored by the ingest plane.",
		}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telemetry_duplicates_total",
			Help: "Samples ignored because their event_id was already stored.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests served, by service and route.",
		}, []string{"service", "route"}),
	}

	r.reg.MustRegister(
		r.pollCycles, r.pollFailures, r.alertsByType, r.fetchDuration,
		r.inserted, r.duplicates, r.requests,
	)
	for _, k := range alerts.Kinds() {
		r.alertsByType.WithLabelValues(k.String())
	}
	return r
}

// IncPollCycle counts one scheduler tick.
func (r *Recorder) IncPollCycle() { r.pollCycles.Inc() }

// IncPollFailure counts one failed entity fetch.
func (r *Recorder) IncPollFailure() { r.pollFailures.Inc() }

// IncAlert counts one raised alert of kind k.
func (r *Recorder) IncAlert(k alerts.Kind) {
	r.alertsByType.WithLabelValues(k.String()).Inc()
}

// ObserveFetch records how long one aggregation fetch took.
func (r *Recorder) ObserveFetch(d time.Duration) {
	r.fetchDuration.Observe(d.Seconds())
}

// IncIngest counts one accepted sample, inserted or duplicate.
func (r *Recorder) IncIngest(inserted bool) {
	if inserted {
		r.inserted.Inc()
		return
	}
	r.duplicates.Inc()
}

// IncRequest counts one handled HTTP request on route of service.
func (r *Recorder) IncRequest(service, route string) {
	r.requests.WithLabelValues(service, route).Inc()
}

// Registry exposes the underlying registry, mostly for tests.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// Handler serves the registry in the text exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}
