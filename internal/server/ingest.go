package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/derekk024/TelemetryOps/internal/models"
)

// RegisterIngestRoutes wires POST /telemetry.
func (a *API) RegisterIngestRoutes(r gin.IRouter) {
	r.POST("/telemetry", IngestTokenMiddleware(a.deps.IngestToken), a.handleIngest)
}

// ingestRequest uses pointers so that absent fields can be told apart from
// zero values.
type ingestRequest struct {
	EventID        *string  `json:"event_id"`
	SatID          *string  `json:"sat_id"`
	TsMs           *int64   `json:"ts_ms"`
	LatencyMs      *float64 `json:"latency_ms"`
	DroppedPackets *int     `json:"dropped_packets"`
	SentPackets    *int     `json:"sent_packets"`
	LinkQuality    *float64 `json:"link_quality"`
}

// typeErrors maps a mistyped field to the message reported to the client.
var typeErrors = map[string]string{
	"event_id":        "event_id invalid",
	"sat_id":          "sat_id invalid",
	"ts_ms":           "ts_ms must be int64",
	"latency_ms":      "latency_ms must be number",
	"dropped_packets": "dropped_packets must be int",
	"sent_packets":    "sent_packets must be int",
	"link_quality":    "link_quality must be number",
}

func (req ingestRequest) sample() (models.TelemetrySample, error) {
	present := []struct {
		name string
		ok   bool
	}{
		{"event_id", req.EventID != nil},
		{"sat_id", req.SatID != nil},
		{"ts_ms", req.TsMs != nil},
		{"latency_ms", req.LatencyMs != nil},
		{"dropped_packets", req.DroppedPackets != nil},
		{"sent_packets", req.SentPackets != nil},
		{"link_quality", req.LinkQuality != nil},
	}
	for _, f := range present {
		if !f.ok {
			return models.TelemetrySample{}, &models.ValidationError{Field: f.name, Reason: "missing field: " + f.name}
		}
	}

	s := models.TelemetrySample{
		EventID:      *req.EventID,
		EntityID:     *req.SatID,
		TimestampMs:  *req.TsMs,
		LatencyMs:    *req.LatencyMs,
		DroppedCount: *req.DroppedPackets,
		SentCount:    *req.SentPackets,
		LinkQuality:  *req.LinkQuality,
	}
	return s, s.Validate()
}

// handleIngest stores one sample idempotently.
//
//	POST /telemetry
//	202 {"ok":true,"inserted":true|false}
func (a *API) handleIngest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, decodeMessage(err))
		return
	}
	sample, err := req.sample()
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	inserted, err := a.deps.Store.Insert(c.Request.Context(), sample)
	if err != nil {
		a.log.Error("ingest insert failed", "event_id", sample.EventID, "sat_id", sample.EntityID, "error", err)
		fail(c, http.StatusInternalServerError, "error: "+err.Error())
		return
	}
	a.deps.Metrics.IncIngest(inserted)

	c.JSON(http.StatusAccepted, gin.H{"ok": true, "inserted": inserted})
}

func decodeMessage(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		if msg, ok := typeErrors[typeErr.Field]; ok {
			return msg
		}
	}
	return fmt.Sprintf("invalid json: %v", err)
}
