package strategy

import (
	"fmt"

	"Canada28Bot/internal/config"
	"Canada28Bot/internal/model"
)

// bigThreshold is the smallest sum classified as "big".
const bigThreshold = 14

// Definition is one strategy with its classifier and progression limits.
type Definition struct {
	Name         string
	InitialBet   int
	MaxWinStreak int
	Classify     func(sum int) model.Outcome
	// Default is bet when no previous sum is known.
	Default model.Outcome
}

// ClassifyBigSmall returns big for sums of 14 and above.
func ClassifyBigSmall(sum int) model.Outcome {
	if sum >= bigThreshold {
		return model.OutcomeBig
	}
	return model.OutcomeSmall
}

// ClassifyOddEven returns even for even sums.
func ClassifyOddEven(sum int) model.Outcome {
	if sum%2 == 0 {
		return model.OutcomeEven
	}
	return model.OutcomeOdd
}

// Lookup builds the definition for a configured strategy.
func Lookup(name string, sc config.StrategyConfig) (Definition, error) {
	d := Definition{Name: name, InitialBet: sc.InitialBet, MaxWinStreak: sc.MaxWinStreak}
	switch name {
	case config.StrategyBigSmall:
		d.Classify = ClassifyBigSmall
		d.Default = model.OutcomeSmall
	case config.StrategyOddEven:
		d.Classify = ClassifyOddEven
		d.Default = model.OutcomeEven
	default:
		return Definition{}, fmt.Errorf("unknown strategy %q", name)
	}
	return d, nil
}

// Enabled returns definitions for every enabled strategy, in stable order.
func Enabled(cfg *config.Config) ([]Definition, error) {
	var defs []Definition
	for _, name := range cfg.EnabledStrategies() {
		d, err := Lookup(name, cfg.Strategies[name])
		if err != nil {
			return nil, err
		}
		defs = append(defs, d)
	}
	return defs, nil
}
