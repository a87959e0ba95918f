package analyzer

import (
	"fmt"
	"time"

	"bondsignal/pkg/model"
)

// PointKind distinguishes peaks from troughs
type PointKind string

const (
	Peak   PointKind = "peak"
	Trough PointKind = "trough"
)

// Direction of a swing
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Role of a Fibonacci level relative to the current price action
type Role string

const (
	Support    Role = "support"
	Resistance Role = "resistance"
)

// Standard Fibonacci ratios
var (
	RetracementRatios = []float64{0, 0.236, 0.382, 0.5, 0.618, 0.786, 1.0}
	ExtensionRatios   = []float64{1.382, 1.618, 2.0, 2.618}
)

// SwingPoint is a confirmed local extremum
type SwingPoint struct {
	Index int       `json:"index"`
	Time  time.Time `json:"time"`
	Price float64   `json:"price"`
	Kind  PointKind `json:"kind"`
}

// FibLevel is one retracement or extension price of a swing
type FibLevel struct {
	Label     string  `json:"label"`
	Ratio     float64 `json:"ratio"`
	Price     float64 `json:"price"`
	Role      Role    `json:"role"`
	Extension bool    `json:"extension"`
}

// Swing is a move between two opposite extrema
type Swing struct {
	Start        SwingPoint `json:"start"`
	End          SwingPoint `json:"end"`
	Direction    Direction  `json:"direction"`
	AmplitudePct float64    `json:"amplitude_pct"`
	Levels       []FibLevel `json:"levels"`
}

// High returns the swing's high price
func (s Swing) High() float64 {
	if s.Direction == Up {
		return s.End.Price
	}
	return s.Start.Price
}

// Low returns the swing's low price
func (s Swing) Low() float64 {
	if s.Direction == Up {
		return s.Start.Price
	}
	return s.End.Price
}

// Level looks up a Fibonacci level by label, e.g. "61.8%"
func (s Swing) Level(label string) (FibLevel, bool) {
	for _, l := range s.Levels {
		if l.Label == label {
			return l, true
		}
	}
	return FibLevel{}, false
}

// Position returns where price sits in the swing range, 0 at the low and 1 at the high
func (s Swing) Position(price float64) float64 {
	rng := s.High() - s.Low()
	if rng <= 0 {
		return 0.5
	}
	p := (price - s.Low()) / rng
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// FibLabel formats a ratio as a level label
func FibLabel(ratio float64) string {
	return fmt.Sprintf("%.1f%%", ratio*100)
}

// FibonacciLevels computes retracement and extension levels for a swing range.
//
// Down swing (high to low): retracements high-(high-low)*r are supports,
// extensions continue below the low and are resistance targets for a reversal.
// Up swing (low to high): retracements are resistances on the way back down,
// extensions project above the high and are tagged support.
func FibonacciLevels(high, low float64, dir Direction) []FibLevel {
	rng := high - low
	levels := make([]FibLevel, 0, len(RetracementRatios)+len(ExtensionRatios))

	for _, r := range RetracementRatios {
		role := Support
		if dir == Up {
			role = Resistance
		}
		levels = append(levels, FibLevel{
			Label: FibLabel(r),
			Ratio: r,
			Price: high - rng*r,
			Role:  role,
		})
	}

	for _, r := range ExtensionRatios {
		lvl := FibLevel{Label: FibLabel(r), Ratio: r, Extension: true}
		if dir == Up {
			lvl.Price = low + rng*r
			lvl.Role = Support
		} else {
			lvl.Price = high - rng*r
			lvl.Role = Resistance
		}
		levels = append(levels, lvl)
	}
	return levels
}

// SwingConfig holds swing detection settings
type SwingConfig struct {
	Lookback    int `yaml:"lookback" validate:"gt=0"`      // bars on each side of an extremum
	ConfirmBars int `yaml:"confirm_bars" validate:"gte=1"` // bars required after the extremum
	MaxSwings   int `yaml:"max_swings" validate:"gt=0"`    // swings kept for reporting
}

// DefaultSwingConfig returns default swing settings
func DefaultSwingConfig() SwingConfig {
	return SwingConfig{
		Lookback:    20,
		ConfirmBars: 3,
		MaxSwings:   5,
	}
}

// SwingDetector finds swing structure in a bar series
type SwingDetector struct {
	config SwingConfig
}

// NewSwingDetector creates a new detector
func NewSwingDetector(cfg SwingConfig) *SwingDetector {
	return &SwingDetector{config: cfg}
}

// Extrema returns peaks and troughs ordered by index. A peak's high is strictly
// greater than every other high within Lookback bars on either side (the window
// is truncated at the series edges); troughs mirror this on lows.
func (d *SwingDetector) Extrema(bars []model.Bar) []SwingPoint {
	n := len(bars)
	var points []SwingPoint

	for i := 0; i < n; i++ {
		lo := max(0, i-d.config.Lookback)
		hi := min(n-1, i+d.config.Lookback)
		if hi-i < d.config.ConfirmBars {
			break
		}

		isPeak, isTrough := true, true
		for j := lo; j <= hi && (isPeak || isTrough); j++ {
			if j == i {
				continue
			}
			if bars[j].High >= bars[i].High {
				isPeak = false
			}
			if bars[j].Low <= bars[i].Low {
				isTrough = false
			}
		}

		switch {
		case isPeak:
			points = append(points, SwingPoint{Index: i, Time: bars[i].Time, Price: bars[i].High, Kind: Peak})
		case isTrough:
			points = append(points, SwingPoint{Index: i, Time: bars[i].Time, Price: bars[i].Low, Kind: Trough})
		}
	}
	return points
}

// Detect pairs consecutive opposite extrema into swings. Same-kind neighbours
// are not swing boundaries and are skipped. At most MaxSwings of the most
// recent swings are returned, oldest first.
func (d *SwingDetector) Detect(bars []model.Bar) []Swing {
	points := d.Extrema(bars)

	var swings []Swing
	for i := 1; i < len(points); i++ {
		start, end := points[i-1], points[i]
		if start.Kind == end.Kind {
			continue
		}

		s := Swing{Start: start, End: end, Direction: Up}
		if start.Kind == Peak {
			s.Direction = Down
		}
		if low := s.Low(); low > 0 {
			s.AmplitudePct = (s.High() - low) / low * 100
		}
		s.Levels = FibonacciLevels(s.High(), s.Low(), s.Direction)
		swings = append(swings, s)
	}

	if d.config.MaxSwings > 0 && len(swings) > d.config.MaxSwings {
		swings = swings[len(swings)-d.config.MaxSwings:]
	}
	return swings
}

// LatestSwing returns the most recent swing, which is authoritative for signal generation
func LatestSwing(swings []Swing) (Swing, bool) {
	if len(swings) == 0 {
		return Swing{}, false
	}
	return swings[len(swings)-1], true
}
