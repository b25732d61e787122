package indicator

import "math"

// emaSeries computes an exponential moving average with alpha = 2/(span+1),
// seeded with the first observation.
func emaSeries(vals []float64, span int) []float64 {
	out := make([]float64, len(vals))
	if len(vals) == 0 {
		return out
	}
	alpha := 2.0 / (float64(span) + 1.0)
	out[0] = vals[0]
	for i := 1; i < len(vals); i++ {
		out[i] = alpha*vals[i] + (1-alpha)*out[i-1]
	}
	return out
}

// ewmComSeries computes an exponential moving average with
// alpha = 1/(1+com), seeded with the first observation. KDJ smoothing uses
// com=2, i.e. alpha=1/3.
func ewmComSeries(vals []float64, com float64) []float64 {
	out := make([]float64, len(vals))
	if len(vals) == 0 {
		return out
	}
	alpha := 1.0 / (1.0 + com)
	out[0] = vals[0]
	for i := 1; i < len(vals); i++ {
		out[i] = alpha*vals[i] + (1-alpha)*out[i-1]
	}
	return out
}

// rollingMean computes a trailing simple mean; positions before the window
// fills are NaN.
func rollingMean(vals []float64, window int) []float64 {
	out := make([]float64, len(vals))
	sum := 0.0
	for i, v := range vals {
		sum += v
		if i >= window {
			sum -= vals[i-window]
		}
		if i >= window-1 {
			out[i] = sum / float64(window)
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// smaLast returns the simple mean of the trailing window, or NaN when
// there are not enough values.
func smaLast(vals []float64, window int) float64 {
	if len(vals) < window {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range vals[len(vals)-window:] {
		sum += v
	}
	return sum / float64(window)
}

// stdPopLast returns the population standard deviation of the trailing
// window, or NaN when there are not enough values.
func stdPopLast(vals []float64, window int) float64 {
	if len(vals) < window {
		return math.NaN()
	}
	tail := vals[len(vals)-window:]
	mean := smaLast(vals, window)
	sumSq := 0.0
	for _, v := range tail {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(window))
}

// sub returns a-b element-wise; the slices must be the same length.
func sub(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}

// minMaxWindow returns the min of lows and max of highs over the trailing
// window ending at index i.
func minMaxWindow(lows, highs []float64, i, window int) (float64, float64) {
	lo := math.Inf(1)
	hi := math.Inf(-1)
	for j := i - window + 1; j <= i; j++ {
		if lows[j] < lo {
			lo = lows[j]
		}
		if highs[j] > hi {
			hi = highs[j]
		}
	}
	return lo, hi
}

// ptrIfFinite boxes v unless it is NaN or infinite; absent values stay
// nil all the way to the API instead of turning into numeric sentinels.
func ptrIfFinite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
