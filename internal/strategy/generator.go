package strategy

import (
	"fmt"
	"math"

	"bondsignal/internal/analyzer"
	"bondsignal/internal/indicator"
	"bondsignal/pkg/model"
)

// Config holds signal generation settings shared by every regime.
// Regime-specific thresholds come from analyzer.Params.
type Config struct {
	ProximityPct         float64 `yaml:"proximity_pct" validate:"gt=0,lt=1"` // band/level proximity, fraction of price
	RequireVolumeConfirm bool    `yaml:"require_volume_confirm"`

	CallRiskInvalidate float64 `yaml:"call_risk_invalidate" validate:"gte=0"` // days
	CallRiskWarn       float64 `yaml:"call_risk_warn" validate:"gtefield=CallRiskInvalidate"`
	DriverStrong       float64 `yaml:"driver_strong" validate:"gte=0,lte=100"`
	DriverWeak         float64 `yaml:"driver_weak" validate:"gte=0,ltfield=DriverStrong"`
	SmallFloatSize     float64 `yaml:"small_float_size" validate:"gte=0"`

	MediumEventFactor float64 `yaml:"medium_event_factor" validate:"gt=0,lte=1"`
	ConflictFactor    float64 `yaml:"conflict_factor" validate:"gt=0,lte=1"`
}

// DefaultConfig returns default generator settings
func DefaultConfig() Config {
	return Config{
		ProximityPct:       0.02,
		CallRiskInvalidate: 3,
		CallRiskWarn:       10,
		DriverStrong:       60,
		DriverWeak:         30,
		SmallFloatSize:     2,
		MediumEventFactor:  0.8,
		ConflictFactor:     0.5,
	}
}

// fibWeights ranks Fibonacci levels; the 61.8% and 50% levels matter most
var fibWeights = map[string]float64{
	"23.6%":  0.5,
	"38.2%":  0.8,
	"50.0%":  1.0,
	"61.8%":  1.0,
	"78.6%":  0.7,
	"138.2%": 0.6,
	"161.8%": 0.8,
	"200.0%": 0.5,
	"261.8%": 0.4,
}

// Input is everything the generator looks at for one bond
type Input struct {
	Latest      indicator.Frame
	Previous    indicator.Frame
	HasPrevious bool
	Regime      analyzer.RegimeState
	Swing       *analyzer.Swing  // latest swing, nil when none was detected
	Reference   *model.Reference // nil when no reference record was supplied
}

// Generator evaluates the signal predicates
type Generator struct {
	config Config
}

// NewGenerator creates a new generator
func NewGenerator(cfg Config) *Generator {
	return &Generator{config: cfg}
}

// Generate evaluates every predicate and returns the signals that fired.
// The result is deterministic for a given input.
func (g *Generator) Generate(in Input) []Signal {
	var signals []Signal
	signals = append(signals, g.oscillators(in)...)
	signals = append(signals, g.trend(in)...)
	signals = append(signals, g.bollinger(in)...)
	signals = append(signals, g.fibonacci(in)...)
	signals = append(signals, g.swingExtremes(in)...)
	signals = append(signals, g.volume(in)...)
	signals = append(signals, g.conflicts(in)...)
	signals = append(signals, g.reference(in)...)
	return signals
}

func (g *Generator) oscillators(in Input) []Signal {
	var out []Signal
	f, p := in.Latest, in.Regime.Params

	if f.RSI < p.RSIOversold {
		strength := math.Min(30, 10+(p.RSIOversold-f.RSI)*2)
		out = append(out, Positive(KindRSIOversold, SideBuy, DimTechnical, strength,
			fmt.Sprintf("RSI %.1f below %.0f", f.RSI, p.RSIOversold)))
	} else if f.RSI > p.RSIOverbought {
		strength := math.Min(30, 10+(f.RSI-p.RSIOverbought)*2)
		out = append(out, Positive(KindRSIOverbought, SideSell, DimTechnical, strength,
			fmt.Sprintf("RSI %.1f above %.0f", f.RSI, p.RSIOverbought)))
	}

	if f.K < 20 || f.J <= 0 {
		out = append(out, Positive(KindKDJOversold, SideBuy, DimTechnical, 10,
			fmt.Sprintf("KDJ oversold K=%.1f J=%.1f", f.K, f.J)))
	} else if f.K > 80 || f.J >= 100 {
		out = append(out, Positive(KindKDJOverbought, SideSell, DimTechnical, 10,
			fmt.Sprintf("KDJ overbought K=%.1f J=%.1f", f.K, f.J)))
	}

	if in.HasPrevious {
		prev := in.Previous.MACDHist
		switch {
		case prev < 0 && f.MACDHist > 0:
			out = append(out, Positive(KindMACDGolden, SideBuy, DimTechnical, 15, "MACD histogram crossed above zero"))
		case prev > 0 && f.MACDHist < 0:
			out = append(out, Positive(KindMACDDead, SideSell, DimTechnical, 15, "MACD histogram crossed below zero"))
		}
	}
	return out
}

func (g *Generator) trend(in Input) []Signal {
	f, p := in.Latest, in.Regime.Params
	if in.Regime.Regime == analyzer.RegimeUnknown || f.ADX < p.ADXThreshold {
		return nil
	}

	switch {
	case f.PlusDI > f.MinusDI && f.MA5 > f.MA20:
		return []Signal{Positive(KindTrendStrength, SideBuy, DimTechnical, 15,
			fmt.Sprintf("ADX %.1f with +DI above -DI", f.ADX))}
	case f.MinusDI > f.PlusDI && f.MA5 < f.MA20:
		return []Signal{Positive(KindTrendWeakness, SideSell, DimTechnical, 15,
			fmt.Sprintf("ADX %.1f with -DI above +DI", f.ADX))}
	}
	return nil
}

func (g *Generator) bollinger(in Input) []Signal {
	var out []Signal
	f := in.Latest
	price := f.Close
	if price <= 0 || f.BBUpper <= f.BBLower {
		return nil
	}
	prox := g.config.ProximityPct

	if dist := (price - f.BBLower) / price; dist < prox {
		exhausted := f.VolumeRatio < 1
		if exhausted || !g.config.RequireVolumeConfirm {
			strength := 25 * (1 - dist/prox)
			reason := fmt.Sprintf("price %.1f%% above lower band %.3f", dist*100, f.BBLower)
			if exhausted {
				reason += ", volume shrinking"
				if !g.config.RequireVolumeConfirm {
					strength = math.Min(25, strength*1.2)
				}
			}
			out = append(out, Positive(KindBBLower, SideBuy, DimTechnical, strength, reason))
		}
	}

	if dist := (f.BBUpper - price) / price; dist < prox {
		pressure := f.VolumeRatio > 1
		if pressure || !g.config.RequireVolumeConfirm {
			strength := 25 * (1 - dist/prox)
			reason := fmt.Sprintf("price %.1f%% below upper band %.3f", dist*100, f.BBUpper)
			if pressure {
				reason += ", volume expanding"
				if !g.config.RequireVolumeConfirm {
					strength = math.Min(25, strength*1.2)
				}
			}
			out = append(out, Positive(KindBBUpper, SideSell, DimTechnical, strength, reason))
		}
	}
	return out
}

// fibonacci emits the strongest support and resistance level within proximity.
// The 0% and 100% endpoints are swing extremes and handled by swingExtremes.
func (g *Generator) fibonacci(in Input) []Signal {
	if in.Swing == nil || in.Latest.Close <= 0 {
		return nil
	}
	price := in.Latest.Close
	prox := g.config.ProximityPct

	var best [2]*Signal
	for _, lvl := range in.Swing.Levels {
		weight, ok := fibWeights[lvl.Label]
		if !ok {
			continue
		}
		dist := math.Abs(price-lvl.Price) / price
		if dist >= prox {
			continue
		}

		strength := 20 * weight * (1 - dist/prox)
		reason := fmt.Sprintf("price within %.1f%% of %s %s %.3f", dist*100, lvl.Label, lvl.Role, lvl.Price)
		var sig Signal
		slot := 0
		if lvl.Role == analyzer.Support {
			sig = Positive(KindFibSupport, SideBuy, DimTechnical, strength, reason)
		} else {
			sig = Positive(KindFibResistance, SideSell, DimTechnical, strength, reason)
			slot = 1
		}
		if best[slot] == nil || sig.Strength > best[slot].Strength {
			best[slot] = &sig
		}
	}

	var out []Signal
	for _, s := range best {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out
}

func (g *Generator) swingExtremes(in Input) []Signal {
	if in.Swing == nil || in.Latest.Close <= 0 {
		return nil
	}
	var out []Signal
	price := in.Latest.Close
	prox := g.config.ProximityPct

	if dist := math.Abs(price-in.Swing.Low()) / price; dist < prox {
		out = append(out, Positive(KindSwingLow, SideBuy, DimTechnical, 20*(1-dist/prox),
			fmt.Sprintf("price within %.1f%% of swing low %.3f", dist*100, in.Swing.Low())))
	}
	if dist := math.Abs(price-in.Swing.High()) / price; dist < prox {
		out = append(out, Positive(KindSwingHigh, SideSell, DimTechnical, 20*(1-dist/prox),
			fmt.Sprintf("price within %.1f%% of swing high %.3f", dist*100, in.Swing.High())))
	}
	return out
}

// conflicts surfaces contradictory indicator readings as a derating signal
func (g *Generator) conflicts(in Input) []Signal {
	f, p := in.Latest, in.Regime.Params

	var reason string
	switch {
	case f.BBRepair == indicator.BandClamped:
		reason = "Bollinger band had to be clamped to the close"
	case f.RSI > p.RSIOverbought && f.BBPosition <= 0.1:
		reason = fmt.Sprintf("RSI %.1f overbought while price sits at the lower band", f.RSI)
	case f.RSI < p.RSIOversold && f.BBPosition >= 0.9:
		reason = fmt.Sprintf("RSI %.1f oversold while price sits at the upper band", f.RSI)
	default:
		return nil
	}
	return []Signal{Derate(KindConflict, SideBoth, DimTechnical, g.config.ConflictFactor, reason)}
}

func (g *Generator) reference(in Input) []Signal {
	ref := in.Reference
	if ref == nil {
		return nil
	}
	var out []Signal
	cfg := g.config

	if d := ref.CallRiskDistance; d != nil {
		switch {
		case *d <= cfg.CallRiskInvalidate:
			out = append(out, Invalidate(KindCallRiskHigh, SideBuy, DimEvent,
				fmt.Sprintf("forced call possible within %.0f trading days", *d)))
		case *d <= cfg.CallRiskWarn:
			out = append(out, Risk(KindCallRiskNear, SideBuy, DimEvent, 20,
				fmt.Sprintf("call trigger %.0f trading days away", *d)))
		}
	}

	switch ref.EventRisk {
	case model.EventRiskHigh:
		out = append(out, Invalidate(KindEventHigh, SideBuy, DimEvent, "high event risk"))
	case model.EventRiskMedium:
		out = append(out, Derate(KindEventMedium, SideBuy, DimEvent, cfg.MediumEventFactor, "medium event risk"))
	case model.EventRiskLow, model.EventRiskNone:
		out = append(out, Positive(KindEventClear, SideBuy, DimEvent, 20, "no material event risk"))
	}

	if s := ref.DriverScore; s != nil {
		switch {
		case *s >= cfg.DriverStrong:
			out = append(out, Positive(KindStockDriver, SideBuy, DimDriver, math.Min(50, *s-50),
				fmt.Sprintf("underlying driver score %.0f", *s)))
		case *s <= cfg.DriverWeak:
			out = append(out, Risk(KindWeakDriver, SideBuy, DimDriver, 20,
				fmt.Sprintf("weak underlying driver score %.0f", *s)))
		}
	}

	if size := ref.RemainingSize; size != nil && *size > 0 && *size <= cfg.SmallFloatSize {
		out = append(out, Positive(KindSmallFloat, SideBuy, DimDriver, 10,
			fmt.Sprintf("small remaining size %.2f", *size)))
	}
	return out
}
