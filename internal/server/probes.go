package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v4/disk"
)

const readyTimeout = 2 * time.Second

type readyCheck struct {
	name string
	fn   func(ctx context.Context) error
}

// RegisterProbeRoutes wires /health, /ready and /prom. Readiness runs the
// checks that apply to the selected planes.
func (a *API) RegisterProbeRoutes(r gin.IRouter, service string, planes Plane) {
	checks := a.readyChecks(planes)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "service": service})
	})
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
		defer cancel()
		for _, chk := range checks {
			if err := chk.fn(ctx); err != nil {
				a.log.Warn("readiness check failed", "service", service, "check", chk.name, "error", err)
				fail(c, http.StatusServiceUnavailable, fmt.Sprintf("%s: %v", chk.name, err))
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/prom", gin.WrapH(a.deps.Metrics.Handler()))
}

func (a *API) readyChecks(planes Plane) []readyCheck {
	var checks []readyCheck
	if planes&(PlaneIngest|PlaneAggregator) != 0 && a.deps.Store != nil {
		checks = append(checks, readyCheck{"store", a.deps.Store.Ping})
	}
	if planes&PlaneIngest != 0 && a.deps.DiskPath != "" && a.deps.DiskFullPercent > 0 {
		checks = append(checks, readyCheck{"disk", a.checkDisk})
	}
	if planes&PlaneControl != 0 && a.deps.Upstream != nil {
		checks = append(checks, readyCheck{"aggregator", func(ctx context.Context) error {
			if err := a.deps.Upstream.Health(ctx); err != nil {
				return fmt.Errorf("aggregator unreachable: %w", err)
			}
			return nil
		}})
	}
	return checks
}

// checkDisk refuses readiness once the volume holding the sample store is
// too full to accept writes safely.
func (a *API) checkDisk(ctx context.Context) error {
	usage, err := disk.UsageWithContext(ctx, a.deps.DiskPath)
	if err != nil {
		return err
	}
	if usage.UsedPercent >= a.deps.DiskFullPercent {
		return fmt.Errorf("disk usage %.1f%% >= %.1f%%", usage.UsedPercent, a.deps.DiskFullPercent)
	}
	return nil
}
