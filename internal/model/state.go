package model

import "time"

// StrategyState is the martingale progression of one enabled strategy.
type StrategyState struct {
	CurrentBet int `json:"current_bet"`
	WinStreak  int `json:"win_streak"`
}

// EngineState is the persisted snapshot owned by the betting engine.
// LastPeriodIssue, LastPeriodSum and LastAwardTime are set or cleared together.
type EngineState struct {
	Strategies      map[string]*StrategyState `json:"strategies"`
	LastPeriodIssue string                    `json:"last_period_issue,omitempty"`
	LastPeriodSum   *int                      `json:"last_period_sum,omitempty"`
	LastAwardTime   string                    `json:"last_award_time_str,omitempty"`
	UpdatedAt       time.Time                 `json:"updated_at"`
}

// NewEngineState returns an empty state with no draw recorded.
func NewEngineState() *EngineState {
	return &EngineState{Strategies: map[string]*StrategyState{}}
}

// HasLastDraw reports whether a previous draw has been recorded.
func (s *EngineState) HasLastDraw() bool {
	return s.LastPeriodIssue != ""
}

// SetLastDraw overwrites the last-draw fields from a result.
func (s *EngineState) SetLastDraw(r DrawResult) {
	sum := r.Sum
	s.LastPeriodIssue = r.Issue
	s.LastPeriodSum = &sum
	s.LastAwardTime = r.Time
}

// ClearLastDraw removes all last-draw fields.
func (s *EngineState) ClearLastDraw() {
	s.LastPeriodIssue = ""
	s.LastPeriodSum = nil
	s.LastAwardTime = ""
}

// Clone returns a deep copy.
func (s *EngineState) Clone() *EngineState {
	c := &EngineState{
		Strategies:      make(map[string]*StrategyState, len(s.Strategies)),
		LastPeriodIssue: s.LastPeriodIssue,
		LastAwardTime:   s.LastAwardTime,
		UpdatedAt:       s.UpdatedAt,
	}
	for name, st := range s.Strategies {
		if st == nil {
			continue
		}
		cp := *st
		c.Strategies[name] = &cp
	}
	if s.LastPeriodSum != nil {
		sum := *s.LastPeriodSum
		c.LastPeriodSum = &sum
	}
	return c
}

// Snapshot is the engine status exposed to operators.
type Snapshot struct {
	Running              bool         `json:"running"`
	RunID                string       `json:"run_id,omitempty"`
	State                *EngineState `json:"state"`
	SecondsUntilNextDraw *int         `json:"seconds_until_next_draw"`
	LastError            string       `json:"last_error,omitempty"`
}
