package indicator

import (
	"github.com/markcheno/go-talib"
)

// MACD returns the MACD line, signal line and histogram. ok is false when the
// series is too short for the slow EMA plus signal smoothing, in which case all
// three lines are 0. Warm-up slots of a computed series are also 0.
func MACD(closes []float64, fast, slow, signal int) (macd, sig, hist []float64, ok bool) {
	n := len(closes)
	if n < slow+signal {
		zeros := make([]float64, n)
		return zeros, make([]float64, n), make([]float64, n), false
	}

	macd, sig, hist = talib.Macd(closes, fast, slow, signal)
	lookback := slow + signal - 2
	for i := 0; i < n; i++ {
		if i < lookback {
			macd[i], sig[i], hist[i] = 0, 0, 0
			continue
		}
		macd[i] = finite(macd[i], 0)
		sig[i] = finite(sig[i], 0)
		hist[i] = finite(hist[i], 0)
	}
	return macd, sig, hist, true
}

// ATR returns Wilder's average true range. Warm-up slots are back-filled from
// the first computed value; ok is false (and every value 0) for short series.
func ATR(highs, lows, closes []float64, period int) ([]float64, bool) {
	n := len(closes)
	if n <= period+1 {
		return make([]float64, n), false
	}
	atr := talib.Atr(highs, lows, closes, period)
	backfill(atr, period)
	return atr, true
}

// ADX returns the average directional index with the +DI and -DI lines.
// ok is false (and every value 0) when fewer than two periods of bars exist.
func ADX(highs, lows, closes []float64, period int) (adx, plusDI, minusDI []float64, ok bool) {
	n := len(closes)
	if n <= 2*period {
		return make([]float64, n), make([]float64, n), make([]float64, n), false
	}

	adx = talib.Adx(highs, lows, closes, period)
	plusDI = talib.PlusDI(highs, lows, closes, period)
	minusDI = talib.MinusDI(highs, lows, closes, period)

	backfill(adx, 2*period-1)
	backfill(plusDI, period)
	backfill(minusDI, period)
	for i := 0; i < n; i++ {
		adx[i] = clamp(adx[i], 0, 100)
		plusDI[i] = clamp(plusDI[i], 0, 100)
		minusDI[i] = clamp(minusDI[i], 0, 100)
	}
	return adx, plusDI, minusDI, true
}

// backfill copies the first computed value (at or after lookback) over the warm-up slots
// and replaces non-finite values with 0.
func backfill(values []float64, lookback int) {
	for i := range values {
		values[i] = finite(values[i], 0)
	}
	if lookback >= len(values) {
		return
	}
	if lookback < 0 {
		lookback = 0
	}
	first := values[lookback]
	for i := 0; i < lookback; i++ {
		values[i] = first
	}
}
