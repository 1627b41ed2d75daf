package model

import (
	"encoding/json"
	"time"
)

// TrendLabel classifies price direction over a window.
type TrendLabel string

const (
	TrendBullish TrendLabel = "bullish"
	TrendBearish TrendLabel = "bearish"
	TrendNeutral TrendLabel = "neutral"
)

// Signal is the discrete trading call derived from the composite score.
type Signal string

const (
	SignalBuy     Signal = "BUY"
	SignalSell    Signal = "SELL"
	SignalNeutral Signal = "NEUTRAL"
)

// Crossover describes a MACD/signal line cross within the detection window.
type Crossover string

const (
	CrossBullish Crossover = "bullish"
	CrossBearish Crossover = "bearish"
	CrossNone    Crossover = "none"
)

// BandPosition locates the current price relative to the Bollinger bands.
type BandPosition string

const (
	BandAbove  BandPosition = "above"
	BandBelow  BandPosition = "below"
	BandInside BandPosition = "inside"
)

// MACDResult holds the MACD line, its signal line, the histogram and the
// detected crossover.
type MACDResult struct {
	Value     float64   `json:"value"`
	Signal    float64   `json:"signal"`
	Histogram float64   `json:"histogram"`
	Crossover Crossover `json:"crossover"`
}

// BollingerResult holds the band envelope plus derived state.
type BollingerResult struct {
	Upper    float64      `json:"upper"`
	Middle   float64      `json:"middle"`
	Lower    float64      `json:"lower"`
	Position BandPosition `json:"position"`
	Squeeze  bool         `json:"squeeze"`
}

// IndicatorSnapshot is the full set of indicator values for the latest
// point of a series. Recomputed wholesale on demand, never mutated.
type IndicatorSnapshot struct {
	RSI       float64         `json:"rsi"`
	EMA9      float64         `json:"ema9"`
	EMA21     float64         `json:"ema21"`
	EMA50     float64         `json:"ema50"`
	MACD      MACDResult      `json:"macd"`
	Bollinger BollingerResult `json:"bollinger"`
}

// LevelStrength marks how close a support/resistance level sits to price.
type LevelStrength string

const (
	LevelMajor LevelStrength = "major"
	LevelMinor LevelStrength = "minor"
)

// PriceLevel is one detected support or resistance level.
type PriceLevel struct {
	Price    float64       `json:"price"`
	Strength LevelStrength `json:"strength"`
}

// MultiTrend carries the per-window trend labels (24h / 3d / 7d on the
// hourly reference series).
type MultiTrend struct {
	Short  TrendLabel `json:"short"`
	Medium TrendLabel `json:"medium"`
	Long   TrendLabel `json:"long"`
}

// FactorScore is one scorer contribution, kept for display so the
// dashboard can explain why a signal fired.
type FactorScore struct {
	Name       string `json:"name"`
	Points     int    `json:"points"`
	Commentary string `json:"commentary,omitempty"`
}

// SignalRecord is the fused analysis output for one asset at one point in
// time. Created fresh on every cycle and never partially updated.
type SignalRecord struct {
	AssetID     string            `json:"asset_id"`
	Name        string            `json:"name"`
	Symbol      string            `json:"symbol"`
	Category    string            `json:"category,omitempty"`
	Favorite    bool              `json:"favorite,omitempty"`
	Price       float64           `json:"price"`
	Change24h   float64           `json:"change_24h"`
	Change7d    float64           `json:"change_7d"`
	Volume      float64           `json:"volume"`
	MarketCap   float64           `json:"market_cap"`
	VolumeRatio float64           `json:"volume_ratio"`
	Indicators  IndicatorSnapshot `json:"indicators"`
	Trend       TrendLabel        `json:"trend"`
	MultiTrend  MultiTrend        `json:"multi_trend"`
	Supports    []PriceLevel      `json:"supports"`
	Resistances []PriceLevel      `json:"resistances"`
	Score       int               `json:"score"`
	Signal      Signal            `json:"signal"`
	Factors     []FactorScore     `json:"factors,omitempty"`
	ComputedAt  time.Time         `json:"computed_at"`
}

// JSON returns the JSON-encoded record (ignoring errors for hot-path usage).
func (r *SignalRecord) JSON() []byte {
	b, _ := json.Marshal(r)
	return b
}
