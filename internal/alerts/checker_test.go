package alerts

import (
	"testing"

	"github.com/ordervoice/voicemetrics/internal/types"
)

func widgetWithCalls(calls ...types.CallLatency) *types.LatencyWidget {
	w := &types.LatencyWidget{
		Type:        "latency_overview",
		ActiveCalls: len(calls),
		Calls:       calls,
	}
	var sum float64
	var turns int
	for _, c := range calls {
		sum += c.Summary.AvgTTFBMs * float64(c.Summary.Turns)
		turns += c.Summary.Turns
	}
	if turns > 0 {
		w.Global = types.LatencySummary{Turns: turns, AvgTTFBMs: sum / float64(turns)}
	}
	return w
}

func TestCheckLatencyAlerts(t *testing.T) {
	th := Thresholds{WarnMs: 1500, CritMs: 3000}

	tests := []struct {
		name      string
		widget    *types.LatencyWidget
		wantRules []string
	}{
		{
			name: "healthy call raises nothing",
			widget: widgetWithCalls(
				types.CallLatency{CallID: "a", Summary: types.LatencySummary{Turns: 4, AvgTTFBMs: 800}},
			),
			wantRules: nil,
		},
		{
			name: "warning threshold",
			widget: widgetWithCalls(
				types.CallLatency{CallID: "a", Summary: types.LatencySummary{Turns: 4, AvgTTFBMs: 1800}},
			),
			wantRules: []string{"call_ttfb_high"},
		},
		{
			name: "critical threshold also trips fleet rule",
			widget: widgetWithCalls(
				types.CallLatency{CallID: "a", Summary: types.LatencySummary{Turns: 4, AvgTTFBMs: 3200}},
			),
			wantRules: []string{"call_ttfb_critical", "fleet_ttfb_critical"},
		},
		{
			name: "critical call sorts before warnings",
			widget: widgetWithCalls(
				types.CallLatency{CallID: "warm", Summary: types.LatencySummary{Turns: 10, AvgTTFBMs: 1600}},
				types.CallLatency{CallID: "hot", Summary: types.LatencySummary{Turns: 2, AvgTTFBMs: 3500}},
			),
			wantRules: []string{"call_ttfb_critical", "call_ttfb_high"},
		},
		{
			name: "call with no turns is skipped",
			widget: widgetWithCalls(
				types.CallLatency{CallID: "idle", Summary: types.LatencySummary{Turns: 0, AvgTTFBMs: 0}},
			),
			wantRules: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			CheckLatencyAlerts(tt.widget, th)
			if len(tt.widget.Alerts) != len(tt.wantRules) {
				t.Fatalf("expected %d alerts, got %+v", len(tt.wantRules), tt.widget.Alerts)
			}
			for i, rule := range tt.wantRules {
				if tt.widget.Alerts[i].Rule != rule {
					t.Errorf("alert %d: expected rule %s, got %s", i, rule, tt.widget.Alerts[i].Rule)
				}
			}
		})
	}
}

func TestFormatMs(t *testing.T) {
	if got := formatMs(850); got != "850ms" {
		t.Errorf("expected 850ms, got %s", got)
	}
	if got := formatMs(3200); got != "3.2s" {
		t.Errorf("expected 3.2s, got %s", got)
	}
}
