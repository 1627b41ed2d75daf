package model

import "time"

// AssetQuote is the per-asset record delivered by the market-data
// collaborator. CurrentPrice and Change24h are the only fields the
// provider guarantees; everything else degrades to documented defaults
// when absent (zero value = not provided).
type AssetQuote struct {
	AssetID  string `json:"asset_id"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Category string `json:"category,omitempty"`
	Favorite bool   `json:"favorite,omitempty"`

	CurrentPrice float64 `json:"current_price"`
	Change24h    float64 `json:"price_change_percentage_24h"`
	Change7d     float64 `json:"price_change_percentage_7d,omitempty"`
	High24h      float64 `json:"high_24h,omitempty"`
	Low24h       float64 `json:"low_24h,omitempty"`
	MarketCap    float64 `json:"market_cap,omitempty"`
	TotalVolume  float64 `json:"total_volume,omitempty"`
	ATH          float64 `json:"ath,omitempty"`
	ATHChangePct float64 `json:"ath_change_percentage,omitempty"`

	// Sparkline holds recent prices, hourly granularity over 7 days at
	// the reference resolution. May be empty for thin assets.
	Sparkline []float64 `json:"sparkline,omitempty"`

	FetchedAt time.Time `json:"fetched_at"`
}

// VolumeRatio returns total volume relative to market cap, the liquidity
// input of the signal scorer. Returns 0 when market cap is unknown.
func (q *AssetQuote) VolumeRatio() float64 {
	if q.MarketCap <= 0 {
		return 0
	}
	return q.TotalVolume / q.MarketCap
}

// Series builds the analysis series for this quote. Prefers the sparkline;
// falls back to a single-point series at the current price so every asset
// can still produce a (neutral) signal record.
func (q *AssetQuote) Series() (*Series, error) {
	if len(q.Sparkline) > 0 {
		return SeriesFromPrices(q.AssetID, q.Sparkline)
	}
	return SeriesFromPrices(q.AssetID, []float64{q.CurrentPrice})
}
