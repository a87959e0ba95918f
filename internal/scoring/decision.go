package scoring

import (
	"bondsignal/internal/analyzer"
	"bondsignal/internal/strategy"
)

// Overall is the final technical signal for a bond
type Overall string

const (
	StrongBuy   Overall = "strong_buy"
	Buy         Overall = "buy"
	CautiousBuy Overall = "cautious_buy"
	SwingBuy    Overall = "swing_buy"
	Sell        Overall = "sell"
	Hold        Overall = "hold"
	Wait        Overall = "wait"
	Invalid     Overall = "invalid"
)

// IsBuy reports whether the signal recommends opening a position
func (o Overall) IsBuy() bool {
	switch o {
	case StrongBuy, Buy, CautiousBuy, SwingBuy:
		return true
	}
	return false
}

// DecisionInput is what the overall signal is decided from
type DecisionInput struct {
	Buy                 Composite
	Sell                Composite
	Regime              analyzer.Regime
	PrerequisitesPassed bool
	Signals             []strategy.Signal
}

// Decision is the overall signal with the rule that produced it
type Decision struct {
	Signal Overall `json:"signal"`
	Rule   string  `json:"rule"`
}

type decisionRule struct {
	name   string
	signal Overall
	when   func(c Config, in DecisionInput) bool
}

// decisionTable is evaluated top to bottom; the first matching rule wins
var decisionTable = []decisionRule{
	{"invalidated", Invalid, func(c Config, in DecisionInput) bool {
		return in.Buy.Invalidated
	}},
	{"prerequisites", Wait, func(c Config, in DecisionInput) bool {
		return !in.PrerequisitesPassed
	}},
	{"sell", Sell, func(c Config, in DecisionInput) bool {
		return in.Sell.Value >= c.Sell && in.Sell.Value > in.Buy.Value
	}},
	{"strong_buy", StrongBuy, func(c Config, in DecisionInput) bool {
		return in.Buy.Value >= c.StrongBuy && in.Buy.Resonance >= c.StrongBuyResonance
	}},
	{"buy", Buy, func(c Config, in DecisionInput) bool {
		return in.Buy.Value >= c.Buy
	}},
	{"swing_buy", SwingBuy, func(c Config, in DecisionInput) bool {
		return in.Regime == analyzer.RegimeSwing && in.Buy.Value >= c.Cautious &&
			(strategy.Has(in.Signals, strategy.KindSwingLow) || strategy.Has(in.Signals, strategy.KindFibSupport))
	}},
	{"cautious_buy", CautiousBuy, func(c Config, in DecisionInput) bool {
		return in.Buy.Value >= c.Cautious
	}},
	{"hold", Hold, func(c Config, in DecisionInput) bool {
		return in.Buy.Value >= c.Hold
	}},
}

// Decide maps the composites to the overall signal
func (s *Scorer) Decide(in DecisionInput) Decision {
	for _, r := range decisionTable {
		if r.when(s.config, in) {
			return Decision{Signal: r.signal, Rule: r.name}
		}
	}
	return Decision{Signal: Wait, Rule: "default"}
}
