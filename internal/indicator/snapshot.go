package indicator

import "marketpulse/internal/model"

// ComputeSnapshot computes all indicator values for the latest point of a
// series. The snapshot is derived and recomputed on demand; it replaces
// the previous one wholesale when the underlying series changes.
func ComputeSnapshot(s *model.Series) model.IndicatorSnapshot {
	prices := s.Prices()
	return model.IndicatorSnapshot{
		RSI:       RSI(prices, DefaultRSIPeriod),
		EMA9:      EMA(prices, EMAShortPeriod),
		EMA21:     EMA(prices, EMAMidPeriod),
		EMA50:     EMA(prices, EMALongPeriod),
		MACD:      MACD(prices),
		Bollinger: Bollinger(prices, DefaultBollingerPeriod, DefaultBollingerWidth),
	}
}
