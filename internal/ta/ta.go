package ta

import "math"

// All functions return a slice the same length as their input. Element i is
// computed from inputs[0..i] only and is NaN until the window is filled.

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func SMA(vals []float64, n int) []float64 {
	out := nanSlice(len(vals))
	if n <= 0 {
		return out
	}
	for i := n - 1; i < len(vals); i++ {
		sum := 0.0
		for j := i - n + 1; j <= i; j++ {
			sum += vals[j]
		}
		out[i] = sum / float64(n)
	}
	return out
}

// EMA is seeded with the SMA of the first n values, then smoothed with 2/(n+1).
func EMA(vals []float64, n int) []float64 {
	out := nanSlice(len(vals))
	if n <= 0 || len(vals) < n {
		return out
	}
	alpha := 2.0 / float64(n+1)
	seed := 0.0
	for i := 0; i < n; i++ {
		seed += vals[i]
	}
	out[n-1] = seed / float64(n)
	for i := n; i < len(vals); i++ {
		out[i] = alpha*vals[i] + (1-alpha)*out[i-1]
	}
	return out
}

// EWM is an exponential mean over span with no warm-up, seeded by the first value.
func EWM(vals []float64, span int) []float64 {
	out := nanSlice(len(vals))
	if span <= 0 || len(vals) == 0 {
		return out
	}
	alpha := 2.0 / float64(span+1)
	out[0] = vals[0]
	for i := 1; i < len(vals); i++ {
		out[i] = alpha*vals[i] + (1-alpha)*out[i-1]
	}
	return out
}

// RSI uses Wilder smoothing of average gains and losses.
func RSI(closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	if period <= 0 || len(closes) < period+1 {
		return out
	}
	gain, loss := 0.0, 0.0
	for i := 1; i <= period; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	out[period] = rsiValue(avgGain, avgLoss)
	for i := period + 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		g, l := 0.0, 0.0
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		avgGain = (avgGain*float64(period-1) + g) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + l) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50.0
		}
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// StdDev is the rolling sample standard deviation (n-1 denominator).
func StdDev(vals []float64, n int) []float64 {
	out := nanSlice(len(vals))
	if n <= 1 {
		return out
	}
	means := SMA(vals, n)
	for i := n - 1; i < len(vals); i++ {
		s := 0.0
		for j := i - n + 1; j <= i; j++ {
			d := vals[j] - means[i]
			s += d * d
		}
		out[i] = math.Sqrt(s / float64(n-1))
	}
	return out
}

func Bollinger(closes []float64, n int, k float64) (mid, up, low []float64) {
	mid = SMA(closes, n)
	sd := StdDev(closes, n)
	up = make([]float64, len(closes))
	low = make([]float64, len(closes))
	for i := range closes {
		up[i] = mid[i] + k*sd[i]
		low[i] = mid[i] - k*sd[i]
	}
	return
}

// Stochastic returns the smoothed %K and its %D signal.
func Stochastic(highs, lows, closes []float64, k, d, smoothK int) (stochK, stochD []float64) {
	raw := nanSlice(len(closes))
	if len(highs) != len(closes) || len(lows) != len(closes) || k <= 0 {
		return raw, nanSlice(len(closes))
	}
	for i := k - 1; i < len(closes); i++ {
		hh, ll := highs[i], lows[i]
		for j := i - k + 1; j < i; j++ {
			hh = math.Max(hh, highs[j])
			ll = math.Min(ll, lows[j])
		}
		if hh == ll {
			continue
		}
		raw[i] = 100 * (closes[i] - ll) / (hh - ll)
	}
	stochK = SMA(raw, smoothK)
	stochD = SMA(stochK, d)
	return
}

// MACD uses exponential means seeded at the first value, as most charting tools do.
func MACD(closes []float64, fast, slow, signal int) (macd, sig, hist []float64) {
	f := EWM(closes, fast)
	s := EWM(closes, slow)
	macd = make([]float64, len(closes))
	for i := range closes {
		macd[i] = f[i] - s[i]
	}
	sig = EWM(macd, signal)
	hist = make([]float64, len(closes))
	for i := range closes {
		hist[i] = macd[i] - sig[i]
	}
	return
}
