package alerts

import (
	"fmt"

	"github.com/derekk024/TelemetryOps/internal/models"
)

// Evaluate turns one snapshot into the alerts it raises under t.
//
// A failed fetch yields exactly one SOURCE_UNAVAILABLE alert. An empty window
// yields none. Otherwise latency, drop rate and link quality are checked
// independently, in that order. The result is never nil.
func Evaluate(snap models.MetricsSnapshot, t models.Thresholds) []Alert {
	if !snap.FetchedOK {
		msg := "metrics not ok"
		if snap.Error != "" {
			msg = "metrics not ok: " + snap.Error
		}
		return []Alert{{
			Severity: KindSourceUnavailable.Severity(),
			Kind:     KindSourceUnavailable,
			Message:  msg,
		}}
	}

	out := []Alert{}
	if snap.Count == 0 {
		return out
	}

	if snap.LatencyP95Ms > t.LatencyP95Ms {
		out = append(out, breach(KindLatencyP95, snap.LatencyP95Ms, t.LatencyP95Ms, "latency p95 above threshold"))
	}
	if snap.DropRate > t.DropRate {
		out = append(out, breach(KindDropRate, snap.DropRate, t.DropRate, "drop rate above threshold"))
	}
	if snap.AvgLinkQuality < t.MinLinkQuality {
		out = append(out, breach(KindLinkQuality, snap.AvgLinkQuality, t.MinLinkQuality, "link quality below threshold"))
	}
	return out
}

func breach(k Kind, value, threshold float64, what string) Alert {
	return Alert{
		Severity:  k.Severity(),
		Kind:      k,
		Value:     value,
		Threshold: threshold,
		Message:   fmt.Sprintf("%s (value: %.4g, threshold: %.4g)", what, value, threshold),
	}
}
