package indicator

// DefaultRSIPeriod is the standard 14-period RSI window.
const DefaultRSIPeriod = 14

// rsiNeutral is returned for insufficient history and for perfectly flat
// windows (avgGain == avgLoss == 0). A flat price is neutral, not
// "extremely overbought", so the 0/0 case resolves to 50 rather than the
// naive 100 the avgLoss==0 branch would produce.
const rsiNeutral = 50.0

// RSI computes the Relative Strength Index over the trailing period+1
// points: period-over-period gains and losses averaged separately, then
// RSI = 100 - 100/(1+avgGain/avgLoss). Always within [0,100].
//
// Fewer than period+1 points → neutral 50.
// avgLoss == 0 with gains present → 100 (maximal overbought).
func RSI(prices []float64, period int) float64 {
	if period <= 0 || len(prices) < period+1 {
		return rsiNeutral
	}
	window := tail(prices, period+1)

	var avgGain, avgLoss float64
	for i := 1; i < len(window); i++ {
		change := window[i] - window[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	if avgLoss == 0 {
		if avgGain == 0 {
			return rsiNeutral
		}
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs)
}
