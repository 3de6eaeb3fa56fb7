package alerts

import (
	"fmt"
	"sort"

	"github.com/ordervoice/voicemetrics/internal/types"
)

// Thresholds are the rolling-average TTFB levels that raise alerts.
type Thresholds struct {
	WarnMs float64
	CritMs float64
}

// CheckLatencyAlerts evaluates alert rules for a widget, mutating its
// Alerts field in place. Per-call rules fire on each call's rolling
// average; the fleet rule fires on the global average.
func CheckLatencyAlerts(w *types.LatencyWidget, th Thresholds) {
	w.Alerts = nil

	for _, call := range w.Calls {
		if call.Summary.Turns == 0 {
			continue
		}
		switch {
		case call.Summary.AvgTTFBMs >= th.CritMs:
			w.Alerts = append(w.Alerts, types.LatencyAlert{
				Rule:     "call_ttfb_critical",
				Severity: types.SeverityCritical,
				CallID:   call.CallID,
				Message:  fmt.Sprintf("avg TTFB %s over %d turns", formatMs(call.Summary.AvgTTFBMs), call.Summary.Turns),
			})
		case call.Summary.AvgTTFBMs >= th.WarnMs:
			w.Alerts = append(w.Alerts, types.LatencyAlert{
				Rule:     "call_ttfb_high",
				Severity: types.SeverityWarning,
				CallID:   call.CallID,
				Message:  fmt.Sprintf("avg TTFB %s over %d turns", formatMs(call.Summary.AvgTTFBMs), call.Summary.Turns),
			})
		}
	}

	if w.Global.Turns > 0 && w.Global.AvgTTFBMs >= th.CritMs {
		w.Alerts = append(w.Alerts, types.LatencyAlert{
			Rule:     "fleet_ttfb_critical",
			Severity: types.SeverityCritical,
			Message:  fmt.Sprintf("fleet avg TTFB %s across %d active calls", formatMs(w.Global.AvgTTFBMs), w.ActiveCalls),
		})
	}

	// Critical first so the dashboard surfaces the worst offenders
	sort.SliceStable(w.Alerts, func(i, j int) bool {
		return w.Alerts[i].Severity == types.SeverityCritical && w.Alerts[j].Severity != types.SeverityCritical
	})
}

func formatMs(ms float64) string {
	if ms >= 1000 {
		return fmt.Sprintf("%.1fs", ms/1000)
	}
	return fmt.Sprintf("%.0fms", ms)
}
