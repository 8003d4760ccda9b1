package strategy

import "Canada28Bot/internal/model"

// NewState returns the starting progression for a strategy.
func (d Definition) NewState() *model.StrategyState {
	return &model.StrategyState{CurrentBet: d.InitialBet, WinStreak: 0}
}

// Normalize repairs a loaded state so that it satisfies the current definition:
// the bet is never below the initial bet and the streak is below the cap.
func (d Definition) Normalize(st *model.StrategyState) *model.StrategyState {
	if st == nil || st.CurrentBet < d.InitialBet || st.WinStreak < 0 || st.WinStreak >= d.MaxWinStreak {
		return d.NewState()
	}
	return st
}

// DecideBet follows the previous result: it bets on the outcome the last sum produced.
func (d Definition) DecideBet(st *model.StrategyState, lastSum *int) model.Bet {
	outcome := d.Default
	if lastSum != nil {
		outcome = d.Classify(*lastSum)
	}
	return model.Bet{Strategy: d.Name, Outcome: outcome, Amount: st.CurrentBet}
}

// Settle applies one draw to the progression and returns the updated state.
// A win doubles the bet until the streak reaches MaxWinStreak, which banks the
// run and restarts at the initial bet. A loss always restarts.
func (d Definition) Settle(st model.StrategyState, predicted, actual model.Outcome) model.StrategyState {
	if predicted != actual {
		return model.StrategyState{CurrentBet: d.InitialBet, WinStreak: 0}
	}
	st.WinStreak++
	if st.WinStreak >= d.MaxWinStreak {
		return model.StrategyState{CurrentBet: d.InitialBet, WinStreak: 0}
	}
	st.CurrentBet *= 2
	return st
}
