package indicator

import "math"

// RSI computes Wilder's relative strength index for every index.
// Values before the first full period are 50. A window with no movement is 50,
// a window with only gains is 100.
func RSI(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	for i := range out {
		out[i] = 50
	}
	if period < 1 || len(closes) <= period {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	p := float64(period)
	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	const eps = 1e-12
	if avgGain < eps && avgLoss < eps {
		return 50
	}
	if avgLoss < eps {
		return 100
	}
	rs := avgGain / avgLoss
	return clamp(100-100/(1+rs), 0, 100)
}

// KDJ computes the stochastic K, D and J lines with the recursive 1/3 smoothing.
// Lines start at 50 and stay there until a full period of bars is available;
// a flat high/low window contributes an RSV of 50. All three lines are clamped to [0, 100].
func KDJ(highs, lows, closes []float64, period int) (k, d, j []float64) {
	n := len(closes)
	k = make([]float64, n)
	d = make([]float64, n)
	j = make([]float64, n)

	prevK, prevD := 50.0, 50.0
	for i := 0; i < n; i++ {
		if period < 1 || i < period-1 {
			k[i], d[i], j[i] = 50, 50, 50
			continue
		}

		hh, ll := math.Inf(-1), math.Inf(1)
		for w := i - period + 1; w <= i; w++ {
			hh = math.Max(hh, highs[w])
			ll = math.Min(ll, lows[w])
		}

		rsv := 50.0
		if hh-ll > 1e-12 {
			rsv = (closes[i] - ll) / (hh - ll) * 100
		}

		curK := 2.0/3.0*prevK + 1.0/3.0*rsv
		curD := 2.0/3.0*prevD + 1.0/3.0*curK
		k[i] = clamp(curK, 0, 100)
		d[i] = clamp(curD, 0, 100)
		j[i] = clamp(3*curK-2*curD, 0, 100)
		prevK, prevD = curK, curD
	}
	return k, d, j
}
