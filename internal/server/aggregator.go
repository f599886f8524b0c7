package server

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/derekk024/TelemetryOps/internal/models"
)

// RegisterAggregatorRoutes wires GET /metrics.
func (a *API) RegisterAggregatorRoutes(r gin.IRouter) {
	r.GET("/metrics", a.handleMetrics)
}

// handleMetrics computes windowed statistics for one entity.
//
//	GET /metrics?sat_id=SAT-001&window_s=600
func (a *API) handleMetrics(c *gin.Context) {
	satID, ok := c.GetQuery("sat_id")
	if !ok {
		fail(c, http.StatusBadRequest, "missing sat_id")
		return
	}
	raw, present := c.GetQuery("window_s")
	windowS := parseWindow(raw, present)

	snap := a.deps.Aggregator.Aggregate(c.Request.Context(), satID, windowS, a.deps.Now())
	if !snap.FetchedOK {
		fail(c, http.StatusInternalServerError, snap.Error)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// parseWindow defaults an absent window and clamps anything else to >= 1.
// Only the leading integer is read, so "12abc" is 12 and "abc" is 0.
func parseWindow(raw string, present bool) int {
	if !present {
		return models.DefaultWindowS
	}
	if n := leadingInt(raw); n >= 1 {
		return n
	}
	return 1
}

// leadingInt parses optional leading spaces, an optional sign and then as
// many digits as follow. It saturates instead of overflowing.
func leadingInt(raw string) int {
	s := strings.TrimLeft(raw, " \t\n\r\v\f")
	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		n = math.MaxInt
	}
	if neg {
		return -n
	}
	return n
}
