// Package indicator provides technical indicator calculations over price
// series: RSI, EMA, MACD and Bollinger Bands.
//
// All entry points are pure functions: same input series, same output, no
// hidden state and no I/O. Series shorter than an indicator's minimum
// window return the documented neutral default instead of an error, so a
// signal record can always be produced (with a reduced score) rather than
// a missing one.
package indicator

import "math"

// sma returns the simple average of values. Returns 0 for empty input.
func sma(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stddev returns the population standard deviation around mean.
func stddev(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(values)))
}

// tail returns the last n values (or all of them when n >= len).
func tail(values []float64, n int) []float64 {
	if n >= len(values) {
		return values
	}
	return values[len(values)-n:]
}
