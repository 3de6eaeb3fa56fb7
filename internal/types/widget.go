package types

import "time"

// AlertSeverity grades a latency alert
type AlertSeverity string

const (
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// LatencyAlert flags a call (or the fleet) whose rolling TTFB breached a
// threshold
type LatencyAlert struct {
	Rule     string        `json:"rule"`
	Severity AlertSeverity `json:"severity"`
	CallID   string        `json:"callId,omitempty"`
	Message  string        `json:"message"`
}

// LatencySummary is a rolling min/avg/max over recent TTFB samples
type LatencySummary struct {
	Turns     int     `json:"turns"`
	MinTTFBMs float64 `json:"minTtfbMs"`
	AvgTTFBMs float64 `json:"avgTtfbMs"`
	MaxTTFBMs float64 `json:"maxTtfbMs"`
}

// CallLatency is one active call's rolling latency view
type CallLatency struct {
	CallID  string         `json:"callId"`
	Region  string         `json:"region,omitempty"`
	Summary LatencySummary `json:"summary"`
}

// LatencyWidget is the dashboard payload broadcast to websocket clients
// once per aggregation cycle.
type LatencyWidget struct {
	Type         string         `json:"type"` // "latency_overview"
	Timestamp    time.Time      `json:"timestamp"`
	ActiveCalls  int            `json:"activeCalls"`
	TurnsFlushed int64          `json:"turnsFlushed"`
	Global       LatencySummary `json:"global"`
	Calls        []CallLatency  `json:"calls,omitempty"`
	Alerts       []LatencyAlert `json:"alerts,omitempty"`
}
