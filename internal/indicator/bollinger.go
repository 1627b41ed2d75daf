package indicator

import "marketpulse/internal/model"

// Bollinger parameters.
const (
	DefaultBollingerPeriod = 20
	DefaultBollingerWidth  = 2.0

	// squeezeThreshold is the relative bandwidth below which the bands are
	// considered squeezed, signaling a likely volatility expansion ahead.
	squeezeThreshold = 0.04
)

// Bollinger computes the moving-average envelope over the trailing period
// points: middle = SMA(period), upper/lower = middle ± k standard
// deviations. Position locates the current price relative to the bands;
// squeeze is true when (upper-lower)/middle < 0.04.
//
// Fewer than period points → a degenerate band pinned at the current price
// with squeeze=false.
func Bollinger(prices []float64, period int, k float64) model.BollingerResult {
	if len(prices) == 0 {
		return model.BollingerResult{Position: model.BandInside}
	}
	current := prices[len(prices)-1]
	if len(prices) < period {
		return model.BollingerResult{
			Upper:    current,
			Middle:   current,
			Lower:    current,
			Position: model.BandInside,
		}
	}

	window := tail(prices, period)
	middle := sma(window)
	sd := stddev(window, middle)
	upper := middle + k*sd
	lower := middle - k*sd

	position := model.BandInside
	if current > upper {
		position = model.BandAbove
	} else if current < lower {
		position = model.BandBelow
	}

	squeeze := false
	if middle != 0 && (upper-lower)/middle < squeezeThreshold {
		squeeze = true
	}

	return model.BollingerResult{
		Upper:    upper,
		Middle:   middle,
		Lower:    lower,
		Position: position,
		Squeeze:  squeeze,
	}
}
