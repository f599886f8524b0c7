package models

// Default threshold values applied when nothing else is configured.
const (
	DefaultLatencyP95Ms   = 200.0
	DefaultDropRate       = 0.05
	DefaultMinLinkQuality = 0.70
	DefaultWindowS        = 600
)

// Thresholds are the alerting limits plus the aggregation window.
type Thresholds struct {
	LatencyP95Ms   float64 `json:"latency_p95_ms" yaml:"latency_p95_ms" mapstructure:"latency_p95_ms"`
	DropRate       float64 `json:"drop_rate" yaml:"drop_rate" mapstructure:"drop_rate"`
	MinLinkQuality float64 `json:"min_link_quality" yaml:"min_link_quality" mapstructure:"min_link_quality"`
	WindowS        int     `json:"window_s" yaml:"window_s" mapstructure:"window_s"`
}

// DefaultThresholds returns the built-in limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		LatencyP95Ms:   DefaultLatencyP95Ms,
		DropRate:       DefaultDropRate,
		MinLinkQuality: DefaultMinLinkQuality,
		WindowS:        DefaultWindowS,
	}
}

// Validate rejects values that cannot be evaluated meaningfully.
func (t Thresholds) Validate() error {
	if t.LatencyP95Ms < 0 {
		return &ValidationError{Field: "latency_p95_ms", Reason: "latency_p95_ms must be >= 0"}
	}
	if t.DropRate < 0 || t.DropRate > 1 {
		return &ValidationError{Field: "drop_rate", Reason: "drop_rate must be in [0,1]"}
	}
	if t.MinLinkQuality < 0 || t.MinLinkQuality > 1 {
		return &ValidationError{Field: "min_link_quality", Reason: "min_link_quality must be in [0,1]"}
	}
	if t.WindowS < 1 {
		return &ValidationError{Field: "window_s", Reason: "window_s must be >= 1"}
	}
	return nil
}

// ThresholdsPatch is a partial update. Nil fields keep their prior value.
type ThresholdsPatch struct {
	LatencyP95Ms   *float64 `json:"latency_p95_ms,omitempty"`
	DropRate       *float64 `json:"drop_rate,omitempty"`
	MinLinkQuality *float64 `json:"min_link_quality,omitempty"`
	WindowS        *int     `json:"window_s,omitempty"`
}

// IsEmpty reports whether the patch sets no field at all.
func (p ThresholdsPatch) IsEmpty() bool {
	return p.LatencyP95Ms == nil && p.DropRate == nil && p.MinLinkQuality == nil && p.WindowS == nil
}

// Apply returns t with every present field of p overwritten.
func (p ThresholdsPatch) Apply(t Thresholds) Thresholds {
	if p.LatencyP95Ms != nil {
		t.LatencyP95Ms = *p.LatencyP95Ms
	}
	if p.DropRate != nil {
		t.DropRate = *p.DropRate
	}
	if p.MinLinkQuality != nil {
		t.MinLinkQuality = *p.MinLinkQuality
	}
	if p.WindowS != nil {
		t.WindowS = *p.WindowS
	}
	return t
}
