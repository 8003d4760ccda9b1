package model

import (
	"strconv"
	"time"
)

// Outcome is one of the two labels a strategy can predict.
type Outcome string

const (
	OutcomeBig   Outcome = "big"
	OutcomeSmall Outcome = "small"
	OutcomeOdd   Outcome = "odd"
	OutcomeEven  Outcome = "even"
)

// Glyph returns the text the betting venue expects for this outcome.
func (o Outcome) Glyph() string {
	switch o {
	case OutcomeBig:
		return "大"
	case OutcomeSmall:
		return "小"
	case OutcomeOdd:
		return "单"
	case OutcomeEven:
		return "双"
	default:
		return string(o)
	}
}

// Bet is a single instruction computed for one strategy in one cycle.
type Bet struct {
	Strategy string
	Outcome  Outcome
	Amount   int
}

// Text is the message body sent to the venue, e.g. "大4".
func (b Bet) Text() string {
	return b.Outcome.Glyph() + strconv.Itoa(b.Amount)
}

// BetRecord is a dispatched (or skipped) bet as stored in the history ledger.
type BetRecord struct {
	RunID      string
	BasisIssue string // issue whose result the bet was derived from
	Strategy   string
	Outcome    Outcome
	Amount     int
	Account    string
	ChatID     string
	Dispatched bool
	Error      string
	CreatedAt  time.Time
}

// SettlementRecord is one strategy's win/loss evaluation against a draw.
type SettlementRecord struct {
	RunID       string    `json:"run_id"`
	Issue       string    `json:"issue"`
	Sum         int       `json:"sum"`
	Strategy    string    `json:"strategy"`
	Predicted   Outcome   `json:"predicted"`
	Actual      Outcome   `json:"actual"`
	Win         bool      `json:"win"`
	BetAmount   int       `json:"bet_amount"`
	NextBet     int       `json:"next_bet"`
	WinStreak   int       `json:"win_streak"`
	StreakReset bool      `json:"streak_reset"`
	CreatedAt   time.Time `json:"created_at"`
}
