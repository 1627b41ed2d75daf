// Package trend classifies price direction over observation windows.
//
// Labels come from the percent change between the first and last point of
// the trailing window: above +1% is bullish, below -1% is bearish,
// anything between is neutral. The consolidated label additionally folds
// in EMA ordering from the indicator snapshot.
package trend

import "marketpulse/internal/model"

// Window sizes in observations. On the hourly reference series these are
// 24h, 3 days and 7 days.
const (
	WindowShort  = 24
	WindowMedium = 72
	WindowLong   = 168
)

// minWindowPoints is the minimum history for any window label; below it
// the label degrades to neutral.
const minWindowPoints = 3

// changeThresholdPct is the symmetric bullish/bearish threshold.
const changeThresholdPct = 1.0

// Classify labels the trailing window of the series.
func Classify(s *model.Series, window int) model.TrendLabel {
	if s.Len() < minWindowPoints {
		return model.TrendNeutral
	}
	change := s.PercentChange(window)
	switch {
	case change > changeThresholdPct:
		return model.TrendBullish
	case change < -changeThresholdPct:
		return model.TrendBearish
	default:
		return model.TrendNeutral
	}
}

// MultiTimeframe labels the three nested windows (short/medium/long).
func MultiTimeframe(s *model.Series) model.MultiTrend {
	return model.MultiTrend{
		Short:  Classify(s, WindowShort),
		Medium: Classify(s, WindowMedium),
		Long:   Classify(s, WindowLong),
	}
}

// Consolidated produces the single headline label: the short-window change
// vote plus an EMA-ordering vote (price above both EMA9 and EMA21 biases
// bullish, below both biases bearish). Ties stay neutral.
func Consolidated(s *model.Series, snap model.IndicatorSnapshot) model.TrendLabel {
	vote := 0
	switch Classify(s, WindowShort) {
	case model.TrendBullish:
		vote++
	case model.TrendBearish:
		vote--
	}

	price := s.Last().Price
	if price > snap.EMA9 && price > snap.EMA21 {
		vote++
	} else if price < snap.EMA9 && price < snap.EMA21 {
		vote--
	}

	switch {
	case vote > 0:
		return model.TrendBullish
	case vote < 0:
		return model.TrendBearish
	default:
		return model.TrendNeutral
	}
}
