package model

// PriceTick is one live price observation for an asset, the unit flowing
// between the market-data feed and the live series builder.
type PriceTick struct {
	AssetID string     `json:"asset_id"`
	Point   PricePoint `json:"point"`
}
