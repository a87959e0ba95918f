package indicator

// MovingAverage returns the simple moving average of values for every index.
// Until period values are available the mean of everything seen so far is used.
func MovingAverage(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if period < 1 {
		period = 1
	}

	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		window := i + 1
		if window > period {
			window = period
		}
		out[i] = sum / float64(window)
	}
	return out
}

// VolumeRatio compares each bar's volume with the mean of the previous period bars.
// The current bar is excluded from its own baseline. A zero baseline yields a ratio of 1.
func VolumeRatio(volumes []float64, period int) (baseline, ratio []float64) {
	n := len(volumes)
	baseline = make([]float64, n)
	ratio = make([]float64, n)
	if period < 1 {
		period = 1
	}

	var sum float64
	for i := 0; i < n; i++ {
		// sum holds volumes[max(0,i-period) : i]
		count := i
		if count > period {
			count = period
		}
		if count > 0 {
			baseline[i] = sum / float64(count)
		}

		if baseline[i] > 0 {
			ratio[i] = finite(volumes[i]/baseline[i], 1)
		} else {
			ratio[i] = 1
		}

		sum += volumes[i]
		if i-period >= 0 {
			sum -= volumes[i-period]
		}
	}
	return baseline, ratio
}
