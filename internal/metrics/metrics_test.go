package metrics

import "testing"

func TestSweptSessionsDecrementGaugeOnce(t *testing.T) {
	m := Get()
	base := m.GetActiveSessions()

	// An idle sweep ends each stale session individually, then records the
	// sweep total. The gauge must come back to where it started.
	m.RecordSessionStarted()
	m.RecordSessionStarted()
	m.RecordSessionEnded()
	m.RecordSessionEnded()
	m.RecordSessionsSwept(2)

	if got := m.GetActiveSessions(); got != base {
		t.Errorf("expected active gauge %d after sweep, got %d", base, got)
	}
}

func TestSessionGaugeTracksStartAndEnd(t *testing.T) {
	m := Get()
	base := m.GetActiveSessions()

	m.RecordSessionStarted()
	if got := m.GetActiveSessions(); got != base+1 {
		t.Errorf("expected active gauge %d after start, got %d", base+1, got)
	}
	m.RecordSessionEnded()
	if got := m.GetActiveSessions(); got != base {
		t.Errorf("expected active gauge %d after end, got %d", base, got)
	}
}
