package model

// TradeDirection is the side of a simulated trade.
type TradeDirection string

const (
	DirectionLong  TradeDirection = "LONG"
	DirectionShort TradeDirection = "SHORT"
)

// TradeOutcome classifies a closed trade by realized P&L.
type TradeOutcome string

const (
	OutcomeWin       TradeOutcome = "win"
	OutcomeLoss      TradeOutcome = "loss"
	OutcomeBreakeven TradeOutcome = "breakeven"
)

// BacktestTrade is one simulated entry/exit pair. Immutable once generated.
type BacktestTrade struct {
	ID             string         `json:"id"`
	EntryIndex     int            `json:"entry_index"`
	ExitIndex      int            `json:"exit_index"`
	EntryPrice     float64        `json:"entry_price"`
	ExitPrice      float64        `json:"exit_price"`
	Direction      TradeDirection `json:"direction"`
	Confidence     float64        `json:"confidence"`
	PnLAbsolute    float64        `json:"pnl_absolute"`
	PnLPercent     float64        `json:"pnl_percent"`
	DurationInBars int            `json:"duration_in_bars"`
	Outcome        TradeOutcome   `json:"outcome"`
}

// EquityPoint is one bar of the parallel equity curve.
type EquityPoint struct {
	Bar           int     `json:"bar"`
	StrategyValue float64 `json:"strategy_value"`
	BuyHoldValue  float64 `json:"buy_hold_value"`
}

// BacktestResult aggregates a trade ledger into performance statistics.
type BacktestResult struct {
	AssetID         string          `json:"asset_id"`
	Trades          []BacktestTrade `json:"trades"`
	EquityCurve     []EquityPoint   `json:"equity_curve"`
	TotalTrades     int             `json:"total_trades"`
	Wins            int             `json:"wins"`
	Losses          int             `json:"losses"`
	WinRate         float64         `json:"win_rate"`
	TotalPnL        float64         `json:"total_pnl"`
	TotalPnLPercent float64         `json:"total_pnl_percent"`
	AvgPnLPerTrade  float64         `json:"avg_pnl_per_trade"`
	MaxDrawdown     float64         `json:"max_drawdown"`
	RiskReward      float64         `json:"risk_reward"`
}
