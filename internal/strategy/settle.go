package strategy

import (
	"time"

	"Canada28Bot/internal/model"
)

// SettleAll settles every bet placed this cycle against the new draw, updating
// states in place. Each strategy is evaluated on its own; only the draw is shared.
func SettleAll(defs []Definition, states map[string]*model.StrategyState, bets map[string]model.Bet, draw model.DrawResult) []model.SettlementRecord {
	var out []model.SettlementRecord
	for _, d := range defs {
		bet, ok := bets[d.Name]
		if !ok {
			continue
		}
		before := d.Normalize(states[d.Name])
		actual := d.Classify(draw.Sum)
		after := d.Settle(*before, bet.Outcome, actual)
		states[d.Name] = &after

		win := bet.Outcome == actual
		out = append(out, model.SettlementRecord{
			Issue:       draw.Issue,
			Sum:         draw.Sum,
			Strategy:    d.Name,
			Predicted:   bet.Outcome,
			Actual:      actual,
			Win:         win,
			BetAmount:   bet.Amount,
			NextBet:     after.CurrentBet,
			WinStreak:   after.WinStreak,
			StreakReset: win && after.WinStreak == 0,
			CreatedAt:   time.Now(),
		})
	}
	return out
}
