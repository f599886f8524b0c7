// Package models defines the data models shared across TelemetryOps services.
package models

import (
	"errors"
	"fmt"
	"strings"
)

// TelemetrySample is one raw measurement reported by a monitored entity.
// Samples are written once by the ingest plane and never mutated.
type TelemetrySample struct {
	// EventID is the client-supplied idempotency key; duplicates are ignored.
	EventID string `gorm:"primaryKey;column:event_id" json:"event_id"`

	// EntityID identifies the satellite (or other unit) that produced the sample.
	EntityID    string `gorm:"column:sat_id;not null;index:idx_telemetry_sat" json:"sat_id"`
	TimestampMs int64  `gorm:"column:ts_ms;not null;index:idx_telemetry_ts" json:"ts_ms"`

	// ── Link statistics ──────────────────────────────────────────────────────
	LatencyMs    float64 `gorm:"column:latency_ms;not null" json:"latency_ms"`
	DroppedCount int     `gorm:"column:dropped_packets;not null" json:"dropped_packets"`
	SentCount    int     `gorm:"column:sent_packets;not null" json:"sent_packets"`
	LinkQuality  float64 `gorm:"column:link_quality;not null" json:"link_quality"` // 0..1
}

// TableName keeps the table name stable regardless of GORM naming strategy.
func (TelemetrySample) TableName() string { return "telemetry" }

// Validate checks the sample invariants enforced at ingest time.
func (s TelemetrySample) Validate() error {
	if strings.TrimSpace(s.EventID) == "" {
		return &ValidationError{Field: "event_id", Reason: "event_id invalid"}
	}
	if strings.TrimSpace(s.EntityID) == "" {
		return &ValidationError{Field: "sat_id", Reason: "sat_id invalid"}
	}
	if s.SentCount <= 0 {
		return &ValidationError{Field: "sent_packets", Reason: "sent_packets must be > 0"}
	}
	if s.DroppedCount < 0 || s.DroppedCount > s.SentCount {
		return &ValidationError{Field: "dropped_packets", Reason: "dropped_packets must be in [0,sent_packets]"}
	}
	if s.LinkQuality < 0 || s.LinkQuality > 1 {
		return &ValidationError{Field: "link_quality", Reason: "link_quality out of range [0,1]"}
	}
	return nil
}

// ErrValidation is matched by every ValidationError via errors.Is.
var ErrValidation = errors.New("validation failed")

// ValidationError reports malformed input. Callers must not mutate state when
// one is returned.
type ValidationError struct {
	Field  string
	Reason string
}

// Error returns the reason, or "<field> invalid" when none is set.
func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s invalid", e.Field)
	}
	return e.Reason
}

// Is makes errors.Is(err, ErrValidation) true for any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
