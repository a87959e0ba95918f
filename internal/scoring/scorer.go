package scoring

import (
	"math"

	"bondsignal/internal/strategy"
)

// Weights are per-dimension contribution weights (percent)
type Weights struct {
	Technical float64 `yaml:"technical" validate:"gte=0"`
	Volume    float64 `yaml:"volume" validate:"gte=0"`
	Driver    float64 `yaml:"driver" validate:"gte=0"`
	Event     float64 `yaml:"event" validate:"gte=0"`
}

// Of returns the weight of a dimension
func (w Weights) Of(d strategy.Dimension) float64 {
	switch d {
	case strategy.DimTechnical:
		return w.Technical
	case strategy.DimVolume:
		return w.Volume
	case strategy.DimDriver:
		return w.Driver
	case strategy.DimEvent:
		return w.Event
	}
	return 0
}

// Config holds scoring settings
type Config struct {
	Weights Weights `yaml:"weights"`

	// MaxRaw is the largest weighted total considered achievable; it maps to 100.
	MaxRaw float64 `yaml:"max_raw" validate:"gt=0"`

	StrongBuy          float64 `yaml:"strong_buy" validate:"gtfield=Buy"`
	Buy                float64 `yaml:"buy" validate:"gtfield=Cautious"`
	Cautious           float64 `yaml:"cautious" validate:"gtfield=Hold"`
	Hold               float64 `yaml:"hold" validate:"gte=0"`
	Sell               float64 `yaml:"sell" validate:"gte=0"`
	StrongBuyResonance int     `yaml:"strong_buy_resonance" validate:"gte=1,lte=4"`
}

// DefaultConfig returns default scoring settings
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			Technical: 70,
			Volume:    60,
			Driver:    50,
			Event:     50,
		},
		MaxRaw:             150,
		StrongBuy:          75,
		Buy:                60,
		Cautious:           45,
		Hold:               30,
		Sell:               50,
		StrongBuyResonance: 3,
	}
}

// Breakdown holds per-dimension weighted sub-scores
type Breakdown struct {
	Technical float64 `json:"technical"`
	Volume    float64 `json:"volume"`
	Driver    float64 `json:"driver"`
	Event     float64 `json:"event"`
}

func (b *Breakdown) add(d strategy.Dimension, v float64) {
	switch d {
	case strategy.DimTechnical:
		b.Technical += v
	case strategy.DimVolume:
		b.Volume += v
	case strategy.DimDriver:
		b.Driver += v
	case strategy.DimEvent:
		b.Event += v
	}
}

// Adjustment is a multiplier applied to the weighted total
type Adjustment struct {
	Name   string  `json:"name"`
	Factor float64 `json:"factor"`
}

// Composite is the scored outcome for one side
type Composite struct {
	Side          strategy.Side `json:"side"`
	Value         float64       `json:"value"` // 0-100
	Raw           float64       `json:"raw"`   // weighted total before multipliers
	Dimensions    Breakdown     `json:"dimensions"`
	Resonance     int           `json:"resonance"` // dimensions with at least one supporting signal
	Multiplier    float64       `json:"multiplier"`
	Adjustments   []Adjustment  `json:"adjustments,omitempty"`
	Invalidated   bool          `json:"invalidated"`
	Invalidations []string      `json:"invalidations,omitempty"`
}

// Scorer combines signals into composite scores
type Scorer struct {
	config Config
}

// NewScorer creates a new scorer
func NewScorer(cfg Config) *Scorer {
	return &Scorer{config: cfg}
}

// ResonanceMultiplier rewards agreement across independent dimensions
func ResonanceMultiplier(dimensions int) float64 {
	switch {
	case dimensions >= 4:
		return 1.4
	case dimensions == 3:
		return 1.3
	case dimensions == 2:
		return 1.2
	default:
		return 1.0
	}
}

// Score scores the signals that apply to side. Any invalidating signal short-circuits
// the score to zero and reports only the invalidation reasons.
func (s *Scorer) Score(signals []strategy.Signal, side strategy.Side) Composite {
	c := Composite{Side: side, Multiplier: 1}
	applicable := strategy.Filter(signals, side)

	for _, sig := range applicable {
		if sig.Polarity == strategy.Invalidating {
			c.Invalidated = true
			c.Invalidations = append(c.Invalidations, sig.Reason)
		}
	}
	if c.Invalidated {
		c.Multiplier = 0
		return c
	}

	supported := make(map[strategy.Dimension]bool)
	for _, sig := range applicable {
		contribution := sig.Strength * s.config.Weights.Of(sig.Dimension) / 100
		switch sig.Polarity {
		case strategy.Supporting:
			c.Raw += contribution
			c.Dimensions.add(sig.Dimension, contribution)
			supported[sig.Dimension] = true
		case strategy.Opposing:
			c.Raw -= contribution
			c.Dimensions.add(sig.Dimension, -contribution)
		}
	}

	c.Resonance = len(supported)
	if m := ResonanceMultiplier(c.Resonance); m != 1 {
		c.Adjustments = append(c.Adjustments, Adjustment{Name: "resonance", Factor: m})
		c.Multiplier *= m
	}

	for _, sig := range applicable {
		if sig.Polarity == strategy.Derating {
			c.Adjustments = append(c.Adjustments, Adjustment{Name: string(sig.Kind), Factor: sig.Factor})
			c.Multiplier *= sig.Factor
		}
	}

	c.Value = math.Max(0, math.Min(100, c.Raw*c.Multiplier/s.config.MaxRaw*100))
	return c
}
