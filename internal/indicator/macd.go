package indicator

import "marketpulse/internal/model"

// MACD parameters (12/26/9 is the standard configuration).
const (
	macdFastPeriod   = 12
	macdSlowPeriod   = 26
	macdSignalPeriod = 9

	// minMACDPoints is the minimum history for a meaningful signal line:
	// the slow EMA seed plus the signal EMA seed.
	minMACDPoints = macdSlowPeriod + macdSignalPeriod

	// crossoverLookback is how many bars back the MACD/signal relationship
	// is compared against to detect a cross.
	crossoverLookback = 3
)

// MACD computes the MACD line (EMA12 - EMA26), its EMA9 signal line and
// the histogram at the latest point, plus crossover detection: a sign flip
// of (macd - signal) from 3 bars back to now.
//
// Fewer than 35 points → zero values with crossover "none".
func MACD(prices []float64) model.MACDResult {
	if len(prices) < minMACDPoints {
		return model.MACDResult{Crossover: model.CrossNone}
	}

	fast := emaSeries(prices, macdFastPeriod)
	slow := emaSeries(prices, macdSlowPeriod)

	// MACD line starts where the slow EMA is seeded.
	start := macdSlowPeriod - 1
	line := make([]float64, len(prices)-start)
	for i := range line {
		line[i] = fast[start+i] - slow[start+i]
	}
	signal := emaSeries(line, macdSignalPeriod)

	n := len(line) - 1
	value := line[n]
	sig := signal[n]
	res := model.MACDResult{
		Value:     value,
		Signal:    sig,
		Histogram: value - sig,
		Crossover: model.CrossNone,
	}

	if n >= crossoverLookback {
		prev := line[n-crossoverLookback] - signal[n-crossoverLookback]
		cur := value - sig
		switch {
		case prev < 0 && cur > 0:
			res.Crossover = model.CrossBullish
		case prev > 0 && cur < 0:
			res.Crossover = model.CrossBearish
		}
	}
	return res
}
