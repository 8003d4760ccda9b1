package recorder

import (
	"time"

	"Canada28Bot/internal/model"
)

// NoopRecorder is a no-op implementation used when SQLite is not available.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordBet(_ *model.BetRecord) error               { return nil }
func (n *NoopRecorder) RecordSettlement(_ *model.SettlementRecord) error { return nil }
func (n *NoopRecorder) RecentSettlements(_ int) ([]model.SettlementRecord, error) {
	return nil, nil
}
func (n *NoopRecorder) Summary(since time.Time) (*Summary, error) { return &Summary{Since: since}, nil }
func (n *NoopRecorder) Prune(_ time.Time) (int64, error)          { return 0, nil }
func (n *NoopRecorder) Close() error                              { return nil }
