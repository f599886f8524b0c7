// Package alerts evaluates metrics snapshots against thresholds.
package alerts

// Severity ranks how urgently an alert needs attention.
type Severity string

const (
	SeverityMed  Severity = "MED"
	SeverityHigh Severity = "HIGH"
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	return string(s)
}

// Kind names the condition an alert reports. The set is closed.
type Kind string

const (
	KindLatencyP95        Kind = "LATENCY_P95"
	KindDropRate          Kind = "DROP_RATE"
	KindLinkQuality       Kind = "LINK_QUALITY"
	KindSourceUnavailable Kind = "SOURCE_UNAVAILABLE"
)

// Kinds lists every alert kind in evaluation order.
func Kinds() []Kind {
	return []Kind{KindLatencyP95, KindDropRate, KindLinkQuality, KindSourceUnavailable}
}

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// IsValid returns true if k is one of the known kinds.
func (k Kind) IsValid() bool {
	switch k {
	case KindLatencyP95, KindDropRate, KindLinkQuality, KindSourceUnavailable:
		return true
	default:
		return false
	}
}

// Severity returns the fixed severity attached to the kind.
func (k Kind) Severity() Severity {
	switch k {
	case KindDropRate, KindSourceUnavailable:
		return SeverityHigh
	default:
		return SeverityMed
	}
}

// Alert is a single threshold breach (or fetch failure) for one entity.
type Alert struct {
	Severity  Severity `json:"severity"`
	Kind      Kind     `json:"type"`
	Value     float64  `json:"value"`
	Threshold float64  `json:"threshold"`
	Message   string   `json:"message,omitempty"`
}
