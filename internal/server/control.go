package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/derekk024/TelemetryOps/internal/alerts"
	"github.com/derekk024/TelemetryOps/internal/models"
)

// RegisterControlRoutes wires the control-plane API.
//
//	Public:    GET /watched, GET /config, GET /alerts
//	Protected: POST /watched, POST /config (JWT when a secret is configured)
func (a *API) RegisterControlRoutes(r gin.IRouter) {
	r.GET("/watched", a.handleGetWatched)
	r.GET("/config", a.handleGetConfig)
	r.GET("/alerts", a.handleAlerts)

	auth := r.Group("/", JWTMiddleware(a.deps.Tokens))
	{
		auth.POST("/watched", a.handleSetWatched)
		auth.POST("/config", a.handleSetConfig)
	}
}

func (a *API) handleGetWatched(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "sats": a.deps.Registry.Config.WatchList()})
}

// handleSetWatched replaces the watch-list wholesale.
//
//	POST /watched
//	Body: {"sats":["SAT-001","SAT-002"]}
func (a *API) handleSetWatched(c *gin.Context) {
	var body struct {
		Sats *[]string `json:"sats"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			fail(c, http.StatusBadRequest, `expected {"sats":[...]}`)
			return
		}
		fail(c, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	if body.Sats == nil {
		fail(c, http.StatusBadRequest, `expected {"sats":[...]}`)
		return
	}

	sats, err := a.deps.Registry.Config.ReplaceWatchList(*body.Sats)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	a.log.Info("watch-list replaced", "sats", sats, "operator", c.GetString("operator"))
	c.JSON(http.StatusOK, gin.H{"ok": true, "sats": sats})
}

func (a *API) handleGetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "thresholds": a.deps.Registry.Config.Thresholds()})
}

// handleSetConfig merges a partial threshold update.
//
//	POST /config
//	Body: {"latency_p95_ms":150,"window_s":300}
func (a *API) handleSetConfig(c *gin.Context) {
	var patch models.ThresholdsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		fail(c, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	merged, err := a.deps.Registry.Config.MergeThresholds(patch)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if !patch.IsEmpty() {
		a.log.Info("thresholds updated", "thresholds", merged, "operator", c.GetString("operator"))
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "thresholds": merged})
}

// noData is reported for entities that have never been polled successfully.
var noData = gin.H{"ok": false, "error": "no data yet"}

// handleAlerts returns the last evaluated result for one entity together
// with the live thresholds and poll counters.
//
//	GET /alerts?sat_id=SAT-001
func (a *API) handleAlerts(c *gin.Context) {
	satID, ok := c.GetQuery("sat_id")
	if !ok {
		fail(c, http.StatusBadRequest, "missing sat_id")
		return
	}

	reg := a.deps.Registry
	var (
		snapshot any = noData
		list         = []alerts.Alert{}
	)
	if e, found := reg.Entities.Get(satID); found {
		snapshot = e.Snapshot
		list = e.Alerts
	}
	ps := reg.Counters.Snapshot()

	c.JSON(http.StatusOK, gin.H{
		"ok":         true,
		"sat_id":     satID,
		"metrics":    snapshot,
		"alerts":     list,
		"thresholds": reg.Config.Thresholds(),
		"poll": gin.H{
			"cycles":          ps.Cycles,
			"failures":        ps.Failures,
			"entity_failures": ps.EntityFailures,
			"alerts_by_type":  ps.AlertsByType,
			"now_ms":          a.deps.Now().UnixMilli(),
		},
	})
}
