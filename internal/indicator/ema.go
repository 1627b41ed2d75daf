package indicator

// Common EMA periods used by the snapshot and the signal scorer.
const (
	EMAShortPeriod = 9
	EMAMidPeriod   = 21
	EMALongPeriod  = 50
)

// EMAState is a streaming exponential moving average accumulator.
// Seeds with the simple average of the first `period` prices, then applies
// ema = price*k + prev*(1-k) with k = 2/(period+1). O(1) per update, no
// window storage needed.
type EMAState struct {
	period     int
	multiplier float64
	current    float64
	count      int
	sum        float64
}

// NewEMAState creates an EMA accumulator with the given period.
func NewEMAState(period int) *EMAState {
	return &EMAState{
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

// Update feeds the next price.
func (e *EMAState) Update(price float64) {
	e.count++
	if e.count <= e.period {
		// Accumulate for initial SMA seed
		e.sum += price
		if e.count == e.period {
			e.current = e.sum / float64(e.period)
		}
		return
	}
	e.current = (price * e.multiplier) + (e.current * (1 - e.multiplier))
}

// Value returns the current EMA. Before the seed completes it returns the
// running average of the prices seen so far.
func (e *EMAState) Value() float64 {
	if e.count == 0 {
		return 0
	}
	if e.count < e.period {
		return e.sum / float64(e.count)
	}
	return e.current
}

// Ready reports whether the seed window has been filled.
func (e *EMAState) Ready() bool { return e.count >= e.period }

// EMA returns the exponential moving average of the series at its latest
// point. Series shorter than period fall back to the last available price
// (flat EMA) rather than erroring.
func EMA(prices []float64, period int) float64 {
	if len(prices) == 0 {
		return 0
	}
	if len(prices) < period {
		return prices[len(prices)-1]
	}
	st := NewEMAState(period)
	for _, p := range prices {
		st.Update(p)
	}
	return st.Value()
}

// emaSeries returns the full EMA series, one value per input price.
// Indexes before the seed completes hold the running average, so callers
// that only read values at index >= period-1 see the classic seeded EMA.
func emaSeries(prices []float64, period int) []float64 {
	out := make([]float64, len(prices))
	st := NewEMAState(period)
	for i, p := range prices {
		st.Update(p)
		out[i] = st.Value()
	}
	return out
}
