package strategy

import "fmt"

// Side is the trade direction a signal argues for
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
	SideBoth Side = "both"
)

// Dimension is the independent evidence family a signal belongs to
type Dimension string

const (
	DimTechnical Dimension = "technical"
	DimVolume    Dimension = "volume"
	DimDriver    Dimension = "driver"
	DimEvent     Dimension = "event"
)

// Dimensions lists every dimension in scoring order
var Dimensions = []Dimension{DimTechnical, DimVolume, DimDriver, DimEvent}

// Polarity says how a signal acts on the composite score
type Polarity string

const (
	// Supporting adds its strength to the score
	Supporting Polarity = "supporting"
	// Opposing subtracts its strength from the score
	Opposing Polarity = "opposing"
	// Derating multiplies the final score by Factor
	Derating Polarity = "derating"
	// Invalidating forces the score to zero
	Invalidating Polarity = "invalidating"
)

// Kind identifies the predicate that produced a signal
type Kind string

const (
	KindRSIOversold   Kind = "rsi_oversold"
	KindRSIOverbought Kind = "rsi_overbought"
	KindKDJOversold   Kind = "kdj_oversold"
	KindKDJOverbought Kind = "kdj_overbought"
	KindMACDGolden    Kind = "macd_golden_cross"
	KindMACDDead      Kind = "macd_dead_cross"
	KindTrendStrength Kind = "trend_strength"
	KindTrendWeakness Kind = "trend_weakness"
	KindBBLower       Kind = "bb_lower"
	KindBBUpper       Kind = "bb_upper"
	KindFibSupport    Kind = "fib_support"
	KindFibResistance Kind = "fib_resistance"
	KindSwingLow      Kind = "swing_low"
	KindSwingHigh     Kind = "swing_high"
	KindVolExhaustion Kind = "volume_exhaustion"
	KindVolAccumulate Kind = "volume_accumulation"
	KindFalseBreakout Kind = "false_breakout"
	KindVolPressure   Kind = "volume_pressure"
	KindVolDistribute Kind = "volume_distribution"
	KindConflict      Kind = "indicator_conflict"
	KindStockDriver   Kind = "stock_driver"
	KindWeakDriver    Kind = "weak_driver"
	KindSmallFloat    Kind = "small_float"
	KindEventClear    Kind = "event_clear"
	KindEventMedium   Kind = "event_risk_medium"
	KindEventHigh     Kind = "event_risk_high"
	KindCallRiskHigh  Kind = "call_risk_high"
	KindCallRiskNear  Kind = "call_risk_near"
)

// Signal is one piece of evidence produced by the generator.
// Strength is always in [0, 100]; its effect depends on Polarity.
type Signal struct {
	Kind      Kind      `json:"kind"`
	Side      Side      `json:"side"`
	Dimension Dimension `json:"dimension"`
	Polarity  Polarity  `json:"polarity"`
	Strength  float64   `json:"strength"`
	Factor    float64   `json:"factor,omitempty"` // derating multiplier
	Reason    string    `json:"reason"`
}

// Positive creates a supporting signal
func Positive(kind Kind, side Side, dim Dimension, strength float64, reason string) Signal {
	return Signal{Kind: kind, Side: side, Dimension: dim, Polarity: Supporting, Strength: clampStrength(strength), Reason: reason}
}

// Risk creates an opposing signal that subtracts from the side's score
func Risk(kind Kind, side Side, dim Dimension, strength float64, reason string) Signal {
	return Signal{Kind: kind, Side: side, Dimension: dim, Polarity: Opposing, Strength: clampStrength(strength), Reason: reason}
}

// Derate creates a signal that scales the side's final score by factor
func Derate(kind Kind, side Side, dim Dimension, factor float64, reason string) Signal {
	return Signal{Kind: kind, Side: side, Dimension: dim, Polarity: Derating, Factor: factor, Reason: reason}
}

// Invalidate creates a hard invalidator for the side
func Invalidate(kind Kind, side Side, dim Dimension, reason string) Signal {
	return Signal{Kind: kind, Side: side, Dimension: dim, Polarity: Invalidating, Strength: 100, Reason: reason}
}

// Applies reports whether the signal takes part in scoring the given side
func (s Signal) Applies(side Side) bool {
	return s.Side == side || s.Side == SideBoth
}

// RawStrength is a signed view of the signal for display:
// negative values are risks, never weak positives.
func (s Signal) RawStrength() float64 {
	switch s.Polarity {
	case Opposing:
		return -s.Strength
	case Invalidating:
		return -100
	case Derating:
		return -(1 - s.Factor) * 100
	default:
		return s.Strength
	}
}

func (s Signal) String() string {
	return fmt.Sprintf("%s[%s/%s %+.0f] %s", s.Kind, s.Side, s.Dimension, s.RawStrength(), s.Reason)
}

// Filter returns the signals that apply to side
func Filter(signals []Signal, side Side) []Signal {
	out := make([]Signal, 0, len(signals))
	for _, s := range signals {
		if s.Applies(side) {
			out = append(out, s)
		}
	}
	return out
}

// Has reports whether any signal of the given kind is present
func Has(signals []Signal, kind Kind) bool {
	for _, s := range signals {
		if s.Kind == kind {
			return true
		}
	}
	return false
}

func clampStrength(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
