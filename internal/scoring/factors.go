package scoring

import (
	"fmt"
	"math"

	"marketpulse/internal/model"
)

// scoreRSI is contrarian: oversold adds, overbought subtracts.
func scoreRSI(rsi float64) model.FactorScore {
	var points int
	switch {
	case rsi < 30:
		points = 20
	case rsi < 40:
		points = 10
	case rsi > 70:
		points = -20
	case rsi > 60:
		points = -10
	}
	return model.FactorScore{
		Name:       "RSI",
		Points:     points,
		Commentary: fmt.Sprintf("RSI=%.0f", rsi),
	}
}

func scoreChange24h(change float64) model.FactorScore {
	var points int
	switch {
	case change > 3:
		points = 10
	case change > 0:
		points = 5
	case change < -3:
		points = -10
	case change < 0:
		points = -5
	}
	return model.FactorScore{
		Name:       "24h change",
		Points:     points,
		Commentary: fmt.Sprintf("%+.2f%%", change),
	}
}

// scoreVolumeRatio rewards volume running well above the baseline
// volume-to-market-cap ratio.
func scoreVolumeRatio(ratio float64) model.FactorScore {
	var points int
	switch {
	case ratio > 2*baselineVolumeRatio:
		points = 15
	case ratio > 1.5*baselineVolumeRatio:
		points = 8
	}
	return model.FactorScore{
		Name:       "volume",
		Points:     points,
		Commentary: fmt.Sprintf("vol/mcap=%.3f", ratio),
	}
}

func scoreChange7d(change float64) model.FactorScore {
	var points int
	switch {
	case change > 10:
		points = 10
	case change > 0:
		points = 5
	case change < -10:
		points = -10
	case change < 0:
		points = -5
	}
	return model.FactorScore{
		Name:       "7d change",
		Points:     points,
		Commentary: fmt.Sprintf("%+.2f%%", change),
	}
}

func scoreMACDHistogram(macd model.MACDResult) model.FactorScore {
	var points int
	if macd.Histogram > 0 {
		points = 6
	} else if macd.Histogram < 0 {
		points = -6
	}
	return model.FactorScore{
		Name:       "MACD histogram",
		Points:     points,
		Commentary: fmt.Sprintf("hist=%.4f", macd.Histogram),
	}
}

func scoreMACDCrossover(macd model.MACDResult) model.FactorScore {
	var points int
	switch macd.Crossover {
	case model.CrossBullish:
		points = 6
	case model.CrossBearish:
		points = -6
	}
	return model.FactorScore{
		Name:       "MACD crossover",
		Points:     points,
		Commentary: string(macd.Crossover),
	}
}

// scoreEMA combines the fast/mid EMA relationship (golden/death cross
// alignment) with the price position relative to both EMAs.
func scoreEMA(price float64, snap model.IndicatorSnapshot) model.FactorScore {
	var points int
	commentary := "mixed"
	if snap.EMA9 > snap.EMA21 {
		points += 10
		commentary = "golden cross"
	} else if snap.EMA9 < snap.EMA21 {
		points -= 10
		commentary = "death cross"
	}
	if price > snap.EMA9 && price > snap.EMA21 {
		points += 5
	} else if price < snap.EMA9 && price < snap.EMA21 {
		points -= 5
	}
	return model.FactorScore{
		Name:       "EMA",
		Points:     points,
		Commentary: commentary,
	}
}

// scoreBollinger is contrarian on band position. The squeeze bonus only
// applies to a band with real width: a degenerate zero-width band (flat
// series) reports Squeeze but carries no volatility information.
func scoreBollinger(b model.BollingerResult) model.FactorScore {
	var points int
	commentary := string(b.Position)
	switch b.Position {
	case model.BandBelow:
		points = 8
	case model.BandAbove:
		points = -8
	}
	if b.Squeeze && b.Upper > b.Lower {
		points += 3
		commentary += ", squeeze"
	}
	return model.FactorScore{
		Name:       "Bollinger",
		Points:     points,
		Commentary: commentary,
	}
}

// scoreTrend folds in the consolidated label plus full multi-timeframe
// alignment.
func scoreTrend(trend model.TrendLabel, mt model.MultiTrend) model.FactorScore {
	var points int
	switch trend {
	case model.TrendBullish:
		points += 10
	case model.TrendBearish:
		points -= 10
	}
	if mt.Short == model.TrendBullish && mt.Medium == model.TrendBullish && mt.Long == model.TrendBullish {
		points += 5
	} else if mt.Short == model.TrendBearish && mt.Medium == model.TrendBearish && mt.Long == model.TrendBearish {
		points -= 5
	}
	return model.FactorScore{
		Name:       "trend",
		Points:     points,
		Commentary: string(trend),
	}
}

// scoreLevels rewards price sitting just above a major support (bounce
// zone) and penalizes price pressing into a major resistance.
func scoreLevels(price float64, supports, resistances []model.PriceLevel) model.FactorScore {
	const proximityPct = 0.02
	var points int
	commentary := ""
	for _, lv := range supports {
		if lv.Strength == model.LevelMajor && relDist(price, lv.Price) < proximityPct {
			points += 5
			commentary = fmt.Sprintf("near support %.2f", lv.Price)
			break
		}
	}
	for _, lv := range resistances {
		if lv.Strength == model.LevelMajor && relDist(price, lv.Price) < proximityPct {
			points -= 5
			commentary = fmt.Sprintf("near resistance %.2f", lv.Price)
			break
		}
	}
	return model.FactorScore{
		Name:       "levels",
		Points:     points,
		Commentary: commentary,
	}
}

func relDist(a, b float64) float64 {
	if b == 0 {
		return math.Inf(1)
	}
	return math.Abs(a-b) / math.Abs(b)
}
