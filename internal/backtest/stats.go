package backtest

import "marketpulse/internal/model"

// Aggregate folds a trade ledger into performance statistics plus the
// parallel equity curve. strategyValue accumulates realized P&L at each
// trade's exit bar; buyHoldValue scales the initial capital by the price
// ratio relative to the first bar.
func Aggregate(assetID string, prices []float64, trades []model.BacktestTrade, initialCapital float64) *model.BacktestResult {
	res := &model.BacktestResult{
		AssetID:     assetID,
		Trades:      trades,
		TotalTrades: len(trades),
	}

	// Realized P&L keyed by exit bar for the equity curve.
	pnlByExit := make(map[int]float64, len(trades))

	var totalPnL float64
	var winPctSum, lossPctSum float64
	for _, tr := range trades {
		totalPnL += tr.PnLAbsolute
		pnlByExit[tr.ExitIndex] += tr.PnLAbsolute
		switch tr.Outcome {
		case model.OutcomeWin:
			res.Wins++
			winPctSum += tr.PnLPercent
		case model.OutcomeLoss:
			res.Losses++
			lossPctSum += tr.PnLPercent
		}
	}

	res.TotalPnL = totalPnL
	if initialCapital > 0 {
		res.TotalPnLPercent = totalPnL / initialCapital * 100
	}
	if res.TotalTrades > 0 {
		res.WinRate = float64(res.Wins) / float64(res.TotalTrades) * 100
		res.AvgPnLPerTrade = totalPnL / float64(res.TotalTrades)
	}

	// Risk/reward: average winning percent over average losing percent in
	// absolute value; with no losses the winning average stands alone.
	var avgWin, avgLoss float64
	if res.Wins > 0 {
		avgWin = winPctSum / float64(res.Wins)
	}
	if res.Losses > 0 {
		avgLoss = lossPctSum / float64(res.Losses) // negative
	}
	if res.Losses > 0 && avgLoss != 0 {
		res.RiskReward = avgWin / -avgLoss
	} else {
		res.RiskReward = avgWin
	}

	// Equity curve and max drawdown (largest peak-to-trough decline of
	// the strategy value).
	res.EquityCurve = make([]model.EquityPoint, len(prices))
	strategy := initialCapital
	peak := strategy
	firstPrice := 0.0
	if len(prices) > 0 {
		firstPrice = prices[0]
	}
	for i, p := range prices {
		strategy += pnlByExit[i]
		if strategy > peak {
			peak = strategy
		}
		if dd := peak - strategy; dd > res.MaxDrawdown {
			res.MaxDrawdown = dd
		}
		buyHold := initialCapital
		if firstPrice > 0 {
			buyHold = initialCapital * p / firstPrice
		}
		res.EquityCurve[i] = model.EquityPoint{
			Bar:           i,
			StrategyValue: strategy,
			BuyHoldValue:  buyHold,
		}
	}

	return res
}
