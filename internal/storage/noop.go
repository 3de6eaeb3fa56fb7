package storage

import (
	"github.com/ordervoice/voicemetrics/internal/types"
	"github.com/rs/zerolog"
)

// Store defines the storage interface
type Store interface {
	SaveTurnMetric(metric types.TurnMetric) error
	SaveCallRecord(record types.CallRecord) error
	GetTurnMetrics(callID string) ([]types.TurnMetric, error)
	GetCallRecords(dateKey string) ([]types.CallRecord, error)
	GetMenuItems() ([]types.MenuItem, error)
}

// NoopStore is used when DynamoDB is disabled. Writes are dropped with a
// single warning per call so a misconfigured store can never stall the
// speech pipeline.
type NoopStore struct {
	logger zerolog.Logger
}

func NewNoopStore(logger zerolog.Logger) *NoopStore {
	return &NoopStore{logger: logger}
}

func (s *NoopStore) SaveTurnMetric(m types.TurnMetric) error {
	s.logger.Warn().
		Str("call_id", m.CallID).
		Int("turn", m.TurnNumber).
		Msg("store disabled, turn metric dropped")
	return nil
}

func (s *NoopStore) SaveCallRecord(_ types.CallRecord) error             { return nil }
func (s *NoopStore) GetTurnMetrics(_ string) ([]types.TurnMetric, error) { return nil, nil }
func (s *NoopStore) GetCallRecords(_ string) ([]types.CallRecord, error) { return nil, nil }
func (s *NoopStore) GetMenuItems() ([]types.MenuItem, error)             { return nil, nil }
