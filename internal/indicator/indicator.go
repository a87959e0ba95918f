package indicator

import (
	"fmt"
	"math"

	"bondsignal/pkg/model"
)

// Indicator names reported in Series.Defaulted
const (
	NameMA60   = "ma60"
	NameMA120  = "ma120"
	NameMACD   = "macd"
	NameRSI    = "rsi"
	NameKDJ    = "kdj"
	NameBB     = "bollinger"
	NameADX    = "adx"
	NameATR    = "atr"
	NameVolume = "volume_ratio"
)

// Config holds indicator periods. Moving-average periods are fixed, one per
// Frame field.
type Config struct {
	MACDFast   int `yaml:"macd_fast" validate:"gt=0"`
	MACDSlow   int `yaml:"macd_slow" validate:"gtfield=MACDFast"`
	MACDSignal int `yaml:"macd_signal" validate:"gt=0"`
	RSIPeriod  int `yaml:"rsi_period" validate:"gt=1"`
	KDJPeriod  int `yaml:"kdj_period" validate:"gt=1"`
	ATRPeriod  int `yaml:"atr_period" validate:"gt=1"`
	ADXPeriod  int `yaml:"adx_period" validate:"gt=1"`

	BBPeriod         int     `yaml:"bb_period" validate:"gt=1"`
	BBStdDev         float64 `yaml:"bb_std_dev" validate:"gt=0"`
	BBFallbackWindow int     `yaml:"bb_fallback_window" validate:"gtefield=BBPeriod"`
	BBFallbackMult   float64 `yaml:"bb_fallback_mult" validate:"gte=1"` // widening applied to the sample std

	VolumePeriod int `yaml:"volume_period" validate:"gt=0"`
}

// DefaultConfig returns the standard daily-bar periods
func DefaultConfig() Config {
	return Config{
		MACDFast:         12,
		MACDSlow:         26,
		MACDSignal:       9,
		RSIPeriod:        14,
		KDJPeriod:        9,
		ATRPeriod:        14,
		ADXPeriod:        14,
		BBPeriod:         20,
		BBStdDev:         2.0,
		BBFallbackWindow: 60,
		BBFallbackMult:   1.5,
		VolumePeriod:     5,
	}
}

// BandRepair records how a Bollinger band had to be repaired to contain the close
type BandRepair int

const (
	BandOK BandRepair = iota
	BandWidened
	BandClamped
)

func (r BandRepair) String() string {
	switch r {
	case BandWidened:
		return "widened"
	case BandClamped:
		return "clamped"
	default:
		return "ok"
	}
}

// MarshalText implements encoding.TextMarshaler
func (r BandRepair) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (r *BandRepair) UnmarshalText(text []byte) error {
	switch string(text) {
	case "ok":
		*r = BandOK
	case "widened":
		*r = BandWidened
	case "clamped":
		*r = BandClamped
	default:
		return fmt.Errorf("unknown band repair %q", text)
	}
	return nil
}

// Frame is a bar extended with every derived indicator value
type Frame struct {
	model.Bar

	MA5   float64 `json:"ma5"`
	MA10  float64 `json:"ma10"`
	MA20  float64 `json:"ma20"`
	MA60  float64 `json:"ma60"`
	MA120 float64 `json:"ma120"`

	MACD       float64 `json:"macd"`
	MACDSignal float64 `json:"macd_signal"`
	MACDHist   float64 `json:"macd_hist"`

	RSI float64 `json:"rsi"`
	K   float64 `json:"kdj_k"`
	D   float64 `json:"kdj_d"`
	J   float64 `json:"kdj_j"`

	BBUpper    float64    `json:"bb_upper"`
	BBMiddle   float64    `json:"bb_middle"`
	BBLower    float64    `json:"bb_lower"`
	BBPosition float64    `json:"bb_position"` // 0 at lower band, 1 at upper band
	BBWidth    float64    `json:"bb_width"`    // percent of middle
	BBRepair   BandRepair `json:"bb_repair"`

	ADX     float64 `json:"adx"`
	PlusDI  float64 `json:"plus_di"`
	MinusDI float64 `json:"minus_di"`
	ATR     float64 `json:"atr"`

	VolumeMA    float64 `json:"volume_ma"`
	VolumeRatio float64 `json:"volume_ratio"`
}

// MAAligned reports whether the short moving averages are stacked in one direction.
// Returns +1 for MA5 > MA10 > MA20, -1 for the reverse and 0 when tangled.
func (f Frame) MAAligned() int {
	switch {
	case f.MA5 > f.MA10 && f.MA10 > f.MA20:
		return 1
	case f.MA5 < f.MA10 && f.MA10 < f.MA20:
		return -1
	default:
		return 0
	}
}

// movingAverages lists the Frame moving averages. Only the long windows are
// reported as defaulted on short history.
var movingAverages = []struct {
	period int
	name   string
	set    func(*Frame, float64)
}{
	{5, "", func(f *Frame, v float64) { f.MA5 = v }},
	{10, "", func(f *Frame, v float64) { f.MA10 = v }},
	{20, "", func(f *Frame, v float64) { f.MA20 = v }},
	{60, NameMA60, func(f *Frame, v float64) { f.MA60 = v }},
	{120, NameMA120, func(f *Frame, v float64) { f.MA120 = v }},
}

// Series is the computed indicator stream for a bar sequence
type Series struct {
	Frames []Frame `json:"frames"`

	// Defaulted lists indicators that ran on a shortened window or
	// fell back to their neutral default for lack of history.
	Defaulted []string `json:"defaulted,omitempty"`
}

// Len returns the number of frames
func (s Series) Len() int { return len(s.Frames) }

// Latest returns the most recent frame
func (s Series) Latest() (Frame, bool) {
	if len(s.Frames) == 0 {
		return Frame{}, false
	}
	return s.Frames[len(s.Frames)-1], true
}

// Previous returns the frame before the latest one
func (s Series) Previous() (Frame, bool) {
	if len(s.Frames) < 2 {
		return Frame{}, false
	}
	return s.Frames[len(s.Frames)-2], true
}

// IsDefaulted reports whether the named indicator was defaulted
func (s Series) IsDefaulted(name string) bool {
	for _, d := range s.Defaulted {
		if d == name {
			return true
		}
	}
	return false
}

// Bars returns the underlying bars
func (s Series) Bars() []model.Bar {
	out := make([]model.Bar, len(s.Frames))
	for i, f := range s.Frames {
		out[i] = f.Bar
	}
	return out
}

// Compute runs every indicator over bars. It never fails: indicators that
// lack history fall back to shorter windows or neutral defaults and are
// reported in Series.Defaulted.
func Compute(bars []model.Bar, cfg Config) Series {
	n := len(bars)
	series := Series{Frames: make([]Frame, n)}
	if n == 0 {
		return series
	}

	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	volumes := make([]float64, n)
	for i, b := range bars {
		series.Frames[i].Bar = b
		closes[i] = b.Close
		highs[i] = b.High
		lows[i] = b.Low
		volumes[i] = b.Volume
	}

	defaulted := make(map[string]bool)
	mark := func(name string) {
		if !defaulted[name] {
			defaulted[name] = true
			series.Defaulted = append(series.Defaulted, name)
		}
	}

	// Moving averages
	for _, ma := range movingAverages {
		values := MovingAverage(closes, ma.period)
		if n < ma.period && ma.name != "" {
			mark(ma.name)
		}
		for i := range series.Frames {
			ma.set(&series.Frames[i], values[i])
		}
	}

	// MACD
	macd, signal, hist, ok := MACD(closes, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)
	if !ok {
		mark(NameMACD)
	}

	// Oscillators
	if n <= cfg.RSIPeriod {
		mark(NameRSI)
	}
	rsi := RSI(closes, cfg.RSIPeriod)
	if n < cfg.KDJPeriod {
		mark(NameKDJ)
	}
	k, d, j := KDJ(highs, lows, closes, cfg.KDJPeriod)

	// Volatility and direction
	atr, ok := ATR(highs, lows, closes, cfg.ATRPeriod)
	if !ok {
		mark(NameATR)
	}
	adx, plusDI, minusDI, ok := ADX(highs, lows, closes, cfg.ADXPeriod)
	if !ok {
		mark(NameADX)
	}

	// Bollinger
	bands := Bollinger(closes, cfg)
	if n < cfg.BBPeriod {
		mark(NameBB)
	}

	// Volume
	volMA, volRatio := VolumeRatio(volumes, cfg.VolumePeriod)
	if n <= cfg.VolumePeriod {
		mark(NameVolume)
	}

	for i := range series.Frames {
		f := &series.Frames[i]
		f.MACD, f.MACDSignal, f.MACDHist = macd[i], signal[i], hist[i]
		f.RSI = rsi[i]
		f.K, f.D, f.J = k[i], d[i], j[i]
		f.ATR = atr[i]
		f.ADX, f.PlusDI, f.MinusDI = adx[i], plusDI[i], minusDI[i]

		b := bands[i]
		f.BBUpper, f.BBMiddle, f.BBLower, f.BBRepair = b.Upper, b.Middle, b.Lower, b.Repair
		f.BBPosition = b.Position(f.Close)
		if b.Middle != 0 {
			f.BBWidth = (b.Upper - b.Lower) / b.Middle * 100
		}

		f.VolumeMA, f.VolumeRatio = volMA[i], volRatio[i]
	}

	return series
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// finite replaces NaN and infinities with def
func finite(v, def float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}
	return v
}
