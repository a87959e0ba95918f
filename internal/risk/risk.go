package risk

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Mode says how stop and ladder distances are measured
type Mode string

const (
	ModeATR     Mode = "atr"
	ModePercent Mode = "percent"
)

// Config holds risk manager settings
type Config struct {
	ATRMultiplier  float64   `yaml:"atr_multiplier" validate:"gt=0"`
	LadderATR      []float64 `yaml:"ladder_atr" validate:"min=1,dive,gt=0"`
	LadderPct      []float64 `yaml:"ladder_pct" validate:"min=1,dive,gt=0"`
	DefaultStopPct float64   `yaml:"default_stop_pct" validate:"gt=0,lt=1"`
	VolWindow      int       `yaml:"vol_window" validate:"gte=2"` // returns in the recent dispersion window
	VolRatioMin    float64   `yaml:"vol_ratio_min" validate:"gt=0"`
	VolRatioMax    float64   `yaml:"vol_ratio_max" validate:"gtfield=VolRatioMin"`
	PriceDecimals  int32     `yaml:"price_decimals" validate:"gte=0,lte=8"`
}

// DefaultConfig returns default risk settings
func DefaultConfig() Config {
	return Config{
		ATRMultiplier:  2,
		LadderATR:      []float64{1, 1.5, 2, 3},
		LadderPct:      []float64{0.05, 0.08, 0.12, 0.15, 0.20},
		DefaultStopPct: 0.05,
		VolWindow:      10,
		VolRatioMin:    0.5,
		VolRatioMax:    2.0,
		PriceDecimals:  3,
	}
}

// Rung is one take-profit target
type Rung struct {
	Label        string  `json:"label"`
	Target       float64 `json:"target"`
	StopAfterHit float64 `json:"stop_after_hit"`
	Reached      bool    `json:"reached"`
}

// State tracks one open position. It is owned by a single caller and only
// moves forward: stops never decrease and reached rungs stay reached.
type State struct {
	ID              string  `json:"id"`
	Mode            Mode    `json:"mode"`
	EntryPrice      float64 `json:"entry_price"`
	CurrentPrice    float64 `json:"current_price"`
	HighestPrice    float64 `json:"highest_price"`
	ATR             float64 `json:"atr"`
	VolatilityRatio float64 `json:"volatility_ratio"`
	StopLossPct     float64 `json:"stop_loss_pct"`
	FixedStop       float64 `json:"fixed_stop"`
	TrailingStop    float64 `json:"trailing_stop"`
	Ladder          []Rung  `json:"ladder"`

	config   Config
	prices   []float64
	baseline float64 // return dispersion at entry
	lastHits []int
}

// OpenOptions describe the market at entry
type OpenOptions struct {
	ATR         float64   // 0 selects the percentage ladder
	History     []float64 // closes before entry, for the dispersion baseline
	StopLossPct float64   // fixed stop distance without ATR; 0 uses the default
}

// Update is the outcome of feeding one price
type Update struct {
	Price         float64 `json:"price"`
	TrailingStop  float64 `json:"trailing_stop"`
	EffectiveStop float64 `json:"effective_stop"`
	Reached       []Rung  `json:"reached,omitempty"`
	StopHit       bool    `json:"stop_hit"`
}

// Manager opens risk states
type Manager struct {
	config Config
}

// NewManager creates a new risk manager
func NewManager(cfg Config) *Manager {
	return &Manager{config: cfg}
}

// Open seeds a state for a position entered at entry
func (m *Manager) Open(entry float64, opts OpenOptions) *State {
	cfg := m.config
	st := &State{
		ID:           uuid.NewString(),
		EntryPrice:   entry,
		CurrentPrice: entry,
		HighestPrice: entry,
		ATR:          opts.ATR,
		StopLossPct:  opts.StopLossPct,
		config:       cfg,
		prices:       append([]float64(nil), opts.History...),
	}
	if st.StopLossPct <= 0 {
		st.StopLossPct = cfg.DefaultStopPct
	}

	st.baseline = returnStd(st.prices)
	st.VolatilityRatio = st.volatilityRatio()

	if st.ATR > 0 {
		st.Mode = ModeATR
		st.FixedStop = st.round(entry - cfg.ATRMultiplier*st.ATR*st.VolatilityRatio)
	} else {
		st.Mode = ModePercent
		st.FixedStop = st.round(entry * (1 - st.StopLossPct))
	}
	st.FixedStop = math.Max(0, st.FixedStop)
	st.TrailingStop = st.FixedStop
	st.Ladder = st.buildLadder()
	return st
}

func (s *State) buildLadder() []Rung {
	var ladder []Rung
	prev := s.EntryPrice
	if s.Mode == ModeATR {
		for _, mult := range s.config.LadderATR {
			target := s.round(s.EntryPrice + mult*s.ATR)
			ladder = append(ladder, Rung{Label: fmt.Sprintf("%.1fxATR", mult), Target: target, StopAfterHit: prev})
			prev = target
		}
		return ladder
	}
	for _, pct := range s.config.LadderPct {
		target := s.round(s.EntryPrice * (1 + pct))
		ladder = append(ladder, Rung{Label: fmt.Sprintf("+%.0f%%", pct*100), Target: target, StopAfterHit: prev})
		prev = target
	}
	return ladder
}

// Update feeds a new price: the volatility ratio is recomputed, the trailing
// stop ratchets toward the running high and newly reached rungs raise the floor.
func (s *State) Update(price float64) Update {
	s.CurrentPrice = price
	s.prices = append(s.prices, price)
	s.VolatilityRatio = s.volatilityRatio()
	if price > s.HighestPrice {
		s.HighestPrice = price
	}

	var distance float64
	if s.Mode == ModeATR {
		distance = s.config.ATRMultiplier * s.ATR * s.VolatilityRatio
	} else {
		distance = s.HighestPrice * s.StopLossPct
	}
	s.raiseTrailing(s.HighestPrice - distance)

	s.lastHits = s.lastHits[:0]
	var reached []Rung
	for i := range s.Ladder {
		r := &s.Ladder[i]
		if r.Reached || price < r.Target {
			continue
		}
		r.Reached = true
		s.lastHits = append(s.lastHits, i)
		reached = append(reached, *r)
		s.raiseTrailing(r.StopAfterHit)
	}

	return Update{
		Price:         price,
		TrailingStop:  s.TrailingStop,
		EffectiveStop: s.EffectiveStop(),
		Reached:       reached,
		StopHit:       s.ShouldStopLoss(),
	}
}

func (s *State) raiseTrailing(candidate float64) {
	candidate = s.round(candidate)
	if candidate > s.TrailingStop {
		s.TrailingStop = candidate
	}
}

// EffectiveStop is the higher of the fixed and trailing stops
func (s *State) EffectiveStop() float64 {
	return math.Max(s.FixedStop, s.TrailingStop)
}

// ShouldStopLoss reports whether the current price is at or below the effective stop
func (s *State) ShouldStopLoss() bool {
	return s.CurrentPrice <= s.EffectiveStop()
}

// ShouldTakeProfit returns the first rung reached by the most recent update
func (s *State) ShouldTakeProfit() (Rung, bool) {
	if len(s.lastHits) == 0 {
		return Rung{}, false
	}
	return s.Ladder[s.lastHits[0]], true
}

// NextTarget returns the first unreached rung
func (s *State) NextTarget() (Rung, bool) {
	for _, r := range s.Ladder {
		if !r.Reached {
			return r, true
		}
	}
	return Rung{}, false
}

// volatilityRatio compares recent return dispersion with the entry baseline
func (s *State) volatilityRatio() float64 {
	if s.baseline <= 0 {
		return 1
	}
	window := s.prices
	if len(window) > s.config.VolWindow+1 {
		window = window[len(window)-s.config.VolWindow-1:]
	}
	recent := returnStd(window)
	if recent <= 0 {
		return s.config.VolRatioMin
	}
	return math.Max(s.config.VolRatioMin, math.Min(s.config.VolRatioMax, recent/s.baseline))
}

func (s *State) round(v float64) float64 {
	return decimal.NewFromFloat(v).Round(s.config.PriceDecimals).InexactFloat64()
}

// returnStd is the sample standard deviation of simple returns; 0 with fewer than three prices
func returnStd(prices []float64) float64 {
	if len(prices) < 3 {
		return 0
	}
	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] > 0 {
			returns = append(returns, prices[i]/prices[i-1]-1)
		}
	}
	if len(returns) < 2 {
		return 0
	}
	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	var ss float64
	for _, r := range returns {
		ss += (r - mean) * (r - mean)
	}
	return math.Sqrt(ss / float64(len(returns)-1))
}
