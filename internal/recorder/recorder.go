package recorder

import (
	"time"

	"Canada28Bot/internal/model"
)

// StrategySummary aggregates one strategy's activity over a period.
type StrategySummary struct {
	Strategy   string `json:"strategy"`
	Bets       int    `json:"bets"`
	Dispatched int    `json:"dispatched"`
	Failed     int    `json:"failed"`
	Wins       int    `json:"wins"`
	Losses     int    `json:"losses"`
	Staked     int    `json:"staked"`
}

// Summary is the activity since a point in time.
type Summary struct {
	Since      time.Time         `json:"since"`
	Draws      int               `json:"draws"`
	Strategies []StrategySummary `json:"strategies"`
}

// Recorder persists bet and settlement history for reporting.
type Recorder interface {
	RecordBet(rec *model.BetRecord) error
	RecordSettlement(rec *model.SettlementRecord) error
	RecentSettlements(limit int) ([]model.SettlementRecord, error)
	Summary(since time.Time) (*Summary, error)
	Prune(before time.Time) (int64, error)
	Close() error
}
