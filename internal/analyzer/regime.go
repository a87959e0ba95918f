package analyzer

import (
	"math"

	"bondsignal/internal/indicator"
)

// Regime is the current market character
type Regime string

const (
	RegimeTrend   Regime = "trend"
	RegimeSwing   Regime = "swing"
	RegimeUnknown Regime = "unknown"
)

// Params is the strategy parameter bundle a regime selects
type Params struct {
	StopLossPct    float64 `yaml:"stop_loss_pct" json:"stop_loss_pct" validate:"gt=0,lt=1"`
	TakeProfitPct  float64 `yaml:"take_profit_pct" json:"take_profit_pct" validate:"gt=0"`
	PositionSize   float64 `yaml:"position_size" json:"position_size" validate:"gt=0,lte=1"`
	MinSwingPct    float64 `yaml:"min_swing_pct" json:"min_swing_pct" validate:"gte=0"`
	ADXThreshold   float64 `yaml:"adx_threshold" json:"adx_threshold" validate:"gt=0"`
	RSIOversold    float64 `yaml:"rsi_oversold" json:"rsi_oversold" validate:"gt=0,lt=100"`
	RSIOverbought  float64 `yaml:"rsi_overbought" json:"rsi_overbought" validate:"gtfield=RSIOversold,lt=100"`
	VolumeRatioMin float64 `yaml:"volume_ratio_min" json:"volume_ratio_min" validate:"gte=0"`
}

// RegimeConfig holds the classification threshold and one bundle per regime
type RegimeConfig struct {
	ADXThreshold float64 `yaml:"adx_threshold" validate:"gt=0"`
	Trend        Params  `yaml:"trend"`
	Swing        Params  `yaml:"swing"`
}

// DefaultRegimeConfig returns default regime settings
func DefaultRegimeConfig() RegimeConfig {
	return RegimeConfig{
		ADXThreshold: 20,
		Trend: Params{
			StopLossPct:    0.08,
			TakeProfitPct:  0.20,
			PositionSize:   0.3,
			MinSwingPct:    10,
			ADXThreshold:   25,
			RSIOversold:    30,
			RSIOverbought:  70,
			VolumeRatioMin: 1.2,
		},
		Swing: Params{
			StopLossPct:    0.05,
			TakeProfitPct:  0.10,
			PositionSize:   0.2,
			MinSwingPct:    5,
			ADXThreshold:   15,
			RSIOversold:    35,
			RSIOverbought:  70,
			VolumeRatioMin: 0.8,
		},
	}
}

// RegimeState is the classification of the latest frame
type RegimeState struct {
	Regime     Regime  `json:"regime"`
	Confidence float64 `json:"confidence"`
	ADX        float64 `json:"adx"`
	Threshold  float64 `json:"threshold"`
	MAAligned  int     `json:"ma_aligned"` // +1 bullish stack, -1 bearish stack, 0 tangled
	Params     Params  `json:"params"`
}

// RegimeClassifier maps ADX and moving-average ordering to a regime
type RegimeClassifier struct {
	config RegimeConfig
}

// NewRegimeClassifier creates a new classifier
func NewRegimeClassifier(cfg RegimeConfig) *RegimeClassifier {
	return &RegimeClassifier{config: cfg}
}

// ParamsFor returns the bundle a regime selects. Unknown uses the trend bundle,
// which carries the stricter entry thresholds.
func (c *RegimeClassifier) ParamsFor(r Regime) Params {
	if r == RegimeSwing {
		return c.config.Swing
	}
	return c.config.Trend
}

// Classify classifies the latest frame of a series
func (c *RegimeClassifier) Classify(series indicator.Series) RegimeState {
	latest, ok := series.Latest()
	if !ok {
		return c.unknown()
	}
	return c.ClassifyFrame(latest, !series.IsDefaulted(indicator.NameADX))
}

// ClassifyFrame classifies a single frame. adxAvailable is false when the ADX
// value is a default rather than a computed reading.
func (c *RegimeClassifier) ClassifyFrame(f indicator.Frame, adxAvailable bool) RegimeState {
	if !adxAvailable {
		st := c.unknown()
		st.MAAligned = f.MAAligned()
		return st
	}

	thr := c.config.ADXThreshold
	st := RegimeState{
		ADX:       f.ADX,
		Threshold: thr,
		MAAligned: f.MAAligned(),
	}

	if f.ADX >= thr {
		st.Regime = RegimeTrend
	} else {
		st.Regime = RegimeSwing
	}

	confidence := 50 + math.Abs(f.ADX-thr)*2.5
	agrees := (st.Regime == RegimeTrend) == (st.MAAligned != 0)
	if agrees {
		confidence += 10
	} else {
		confidence -= 10
	}
	st.Confidence = math.Max(0, math.Min(100, confidence))
	st.Params = c.ParamsFor(st.Regime)
	return st
}

func (c *RegimeClassifier) unknown() RegimeState {
	return RegimeState{
		Regime:    RegimeUnknown,
		Threshold: c.config.ADXThreshold,
		Params:    c.ParamsFor(RegimeUnknown),
	}
}
