// Package server provides the TelemetryOps Gin-based HTTP planes.
//
//   - Ingest       (8081): POST /telemetry, optional Bearer ingest token.
//   - Aggregator   (8082): GET /metrics, windowed statistics per entity.
//   - Control plane (8083): watch-list, thresholds and alert queries; JWT on
//     mutating routes when a secret is configured.
//
// Every plane also serves /health, /ready and /prom.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/derekk024/TelemetryOps/internal/aggregate"
	"github.com/derekk024/TelemetryOps/internal/metrics"
	"github.com/derekk024/TelemetryOps/internal/state"
	"github.com/derekk024/TelemetryOps/internal/storage"
)

// Plane selects which route groups an engine serves.
type Plane uint8

const (
	PlaneIngest Plane = 1 << iota
	PlaneAggregator
	PlaneControl

	PlaneAll = PlaneIngest | PlaneAggregator | PlaneControl
)

// HealthChecker is satisfied by aggregate.Client.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Dependencies wires the handlers. Only the fields used by the selected
// planes need to be set.
type Dependencies struct {
	Logger     *slog.Logger
	Metrics    *metrics.Recorder
	Store      storage.Store        // ingest, aggregator
	Aggregator aggregate.Aggregator // aggregator
	Registry   *state.Registry      // control
	Upstream   HealthChecker        // control readiness; nil when aggregation is in process

	Tokens      *TokenIssuer // nil disables JWT on the control plane
	IngestToken string       // empty disables ingest auth

	DiskPath        string  // directory probed by ingest readiness; empty skips
	DiskFullPercent float64 // readiness fails at or above this usage

	Now func() time.Time
}

// API owns the dependencies shared by every handler.
type API struct {
	deps Dependencies
	log  *slog.Logger
}

// New fills unset dependencies with defaults and returns the handler set.
func New(deps Dependencies) *API {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &API{deps: deps, log: deps.Logger}
}

// Engine builds a gin engine labelled service that serves planes.
func (a *API) Engine(service string, planes Plane) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), a.accessLog(service))
	if planes&PlaneControl != 0 {
		r.Use(corsMiddleware)
	}

	a.RegisterProbeRoutes(r, service, planes)
	if planes&PlaneIngest != 0 {
		a.RegisterIngestRoutes(r)
	}
	if planes&PlaneAggregator != 0 {
		a.RegisterAggregatorRoutes(r)
	}
	if planes&PlaneControl != 0 {
		a.RegisterControlRoutes(r)
	}
	return r
}

// accessLog counts every routed request and logs it. Probe traffic is logged
// at debug level.
func (a *API) accessLog(service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		a.deps.Metrics.IncRequest(service, route)

		level := slog.LevelInfo
		switch route {
		case "/health", "/ready", "/prom":
			level = slog.LevelDebug
		}
		a.log.Log(c.Request.Context(), level, "http request",
			"service", service,
			"method", c.Request.Method,
			"route", route,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func corsMiddleware(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
	c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	if c.Request.Method == http.MethodOptions {
		c.AbortWithStatus(http.StatusNoContent)
		return
	}
	c.Next()
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"ok": false, "error": msg})
}
