package indicator

import (
	"math"

	"github.com/markcheno/go-talib"
)

// Band is one bar's validated Bollinger band
type Band struct {
	Upper  float64
	Middle float64
	Lower  float64
	Repair BandRepair
}

// Position returns where price sits inside the band, 0 at the lower edge and
// 1 at the upper edge. A zero-width band yields 0.5.
func (b Band) Position(price float64) float64 {
	width := b.Upper - b.Lower
	if width <= 1e-12 {
		return 0.5
	}
	return clamp((price-b.Lower)/width, 0, 1)
}

// Contains reports lower <= price <= upper on a non-inverted band
func (b Band) Contains(price float64) bool {
	eps := 1e-9 * math.Max(1, math.Abs(price))
	return b.Lower <= b.Upper+eps && b.Lower-eps <= price && price <= b.Upper+eps
}

// Bollinger computes validated Bollinger bands for every index. Full windows use
// the standard rolling mean and population deviation; warm-up indices use the
// bars available so far. Every band is then validated against its close.
func Bollinger(closes []float64, cfg Config) []Band {
	n := len(closes)
	bands := make([]Band, n)
	if n == 0 {
		return bands
	}

	var upper, middle, lower []float64
	if n >= cfg.BBPeriod {
		upper, middle, lower = talib.BBands(closes, cfg.BBPeriod, cfg.BBStdDev, cfg.BBStdDev, talib.SMA)
	}

	for i := 0; i < n; i++ {
		var b Band
		if upper != nil && i >= cfg.BBPeriod-1 {
			b = Band{Upper: upper[i], Middle: middle[i], Lower: lower[i]}
		} else {
			start := i - cfg.BBPeriod + 1
			if start < 0 {
				start = 0
			}
			mean, std := meanStd(closes[start:i+1], false)
			b = Band{Upper: mean + cfg.BBStdDev*std, Middle: mean, Lower: mean - cfg.BBStdDev*std}
		}
		bands[i] = ValidateBand(b, closes, i, cfg)
	}
	return bands
}

// ValidateBand enforces lower <= close <= upper for the close at index i.
// A violated band is first recomputed with the wider fallback statistic over the
// last BBFallbackWindow closes; if the close still escapes, the violated edge is
// clamped to the close.
func ValidateBand(b Band, closes []float64, i int, cfg Config) Band {
	price := closes[i]
	b.Upper = finite(b.Upper, price)
	b.Middle = finite(b.Middle, price)
	b.Lower = finite(b.Lower, price)
	if b.Contains(price) {
		// absorb rounding noise
		b.Upper = math.Max(b.Upper, price)
		b.Lower = math.Min(b.Lower, price)
		return b
	}

	start := i - cfg.BBFallbackWindow + 1
	if start < 0 {
		start = 0
	}
	mean, std := meanStd(closes[start:i+1], true)
	width := cfg.BBStdDev * cfg.BBFallbackMult * std
	wide := Band{Upper: mean + width, Middle: mean, Lower: mean - width, Repair: BandWidened}
	if wide.Contains(price) {
		wide.Upper = math.Max(wide.Upper, price)
		wide.Lower = math.Min(wide.Lower, price)
		return wide
	}

	wide.Repair = BandClamped
	if price < wide.Lower {
		wide.Lower = price
	}
	if price > wide.Upper {
		wide.Upper = price
	}
	return wide
}

// meanStd returns the mean and standard deviation of values. sample selects the
// n-1 denominator.
func meanStd(values []float64, sample bool) (mean, std float64) {
	n := len(values)
	if n == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(n)

	denom := float64(n)
	if sample {
		if n < 2 {
			return mean, 0
		}
		denom = float64(n - 1)
	}
	var ss float64
	for _, v := range values {
		ss += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(ss / denom)
}
