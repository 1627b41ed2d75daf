// Package scoring fuses indicator, trend and level outputs for one asset
// into a single bounded score and a discrete BUY/SELL/NEUTRAL signal.
//
// The score starts from a neutral base of 50 and applies bounded additive
// adjustments, then clamps to [0,100]. The BUY/SELL thresholds sit
// asymmetrically around the midpoint (65/35) so a clear majority of
// contributing signals must agree before a directional call is issued.
package scoring

import "marketpulse/internal/model"

// Score thresholds and base.
const (
	BaseScore     = 50
	BuyThreshold  = 65
	SellThreshold = 35
)

// baselineVolumeRatio is the reference volume-to-market-cap ratio a liquid
// asset trades around; the volume factor rewards multiples of it.
const baselineVolumeRatio = 0.10

// Input carries everything the scorer folds into one score.
type Input struct {
	Snapshot    model.IndicatorSnapshot
	Price       float64
	Change24h   float64
	Change7d    float64
	VolumeRatio float64
	Trend       model.TrendLabel
	MultiTrend  model.MultiTrend
	Supports    []model.PriceLevel
	Resistances []model.PriceLevel
}

// Result is the scorer output.
type Result struct {
	Score   int
	Signal  model.Signal
	Factors []model.FactorScore
}

// Score computes the composite score and signal for one asset.
func Score(in Input) Result {
	factors := []model.FactorScore{
		scoreRSI(in.Snapshot.RSI),
		scoreChange24h(in.Change24h),
		scoreVolumeRatio(in.VolumeRatio),
		scoreChange7d(in.Change7d),
		scoreMACDHistogram(in.Snapshot.MACD),
		scoreMACDCrossover(in.Snapshot.MACD),
		scoreEMA(in.Price, in.Snapshot),
		scoreBollinger(in.Snapshot.Bollinger),
		scoreTrend(in.Trend, in.MultiTrend),
		scoreLevels(in.Price, in.Supports, in.Resistances),
	}

	total := BaseScore
	kept := make([]model.FactorScore, 0, len(factors))
	for _, f := range factors {
		total += f.Points
		if f.Points != 0 {
			kept = append(kept, f)
		}
	}

	return Result{
		Score:   Clamp(total),
		Signal:  Classify(Clamp(total)),
		Factors: kept,
	}
}

// Clamp bounds a raw score to [0,100].
func Clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Classify maps a clamped score to a discrete signal:
// BUY at 65 and above, SELL at 35 and below, NEUTRAL between.
func Classify(score int) model.Signal {
	switch {
	case score >= BuyThreshold:
		return model.SignalBuy
	case score <= SellThreshold:
		return model.SignalSell
	default:
		return model.SignalNeutral
	}
}
