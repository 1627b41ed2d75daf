package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrEmptySeries is returned when a series is built from zero points.
var ErrEmptySeries = errors.New("series must contain at least one point")

// PricePoint is a single observation in a price series.
// High, Low and Volume are optional; zero means "not provided".
type PricePoint struct {
	TS     time.Time `json:"ts"`
	Price  float64   `json:"price"`
	High   float64   `json:"high,omitempty"`
	Low    float64   `json:"low,omitempty"`
	Volume float64   `json:"volume,omitempty"`
}

// Series is an ordered, immutable-once-built price series for one asset
// over one horizon. Timestamps are strictly increasing. Construction via
// NewSeries is the only place a malformed series can be rejected; every
// consumer downstream may assume a well-formed series.
type Series struct {
	assetID string
	points  []PricePoint
}

// NewSeries validates and builds a Series. The input slice is copied so
// later mutation by the caller cannot break immutability.
func NewSeries(assetID string, points []PricePoint) (*Series, error) {
	if len(points) == 0 {
		return nil, ErrEmptySeries
	}
	cp := make([]PricePoint, len(points))
	copy(cp, points)
	for i := 1; i < len(cp); i++ {
		if !cp[i].TS.After(cp[i-1].TS) {
			return nil, fmt.Errorf("series %s: non-increasing timestamp at index %d (%s >= %s)",
				assetID, i, cp[i-1].TS.Format(time.RFC3339), cp[i].TS.Format(time.RFC3339))
		}
	}
	return &Series{assetID: assetID, points: cp}, nil
}

// SeriesFromPrices builds a Series from bare prices with synthetic hourly
// timestamps. Used for sparkline arrays where the provider supplies prices
// only, and for test fixtures.
func SeriesFromPrices(assetID string, prices []float64) (*Series, error) {
	if len(prices) == 0 {
		return nil, ErrEmptySeries
	}
	start := time.Now().UTC().Truncate(time.Hour).Add(-time.Duration(len(prices)-1) * time.Hour)
	points := make([]PricePoint, len(prices))
	for i, p := range prices {
		points[i] = PricePoint{TS: start.Add(time.Duration(i) * time.Hour), Price: p}
	}
	return NewSeries(assetID, points)
}

// AssetID returns the asset identifier this series belongs to.
func (s *Series) AssetID() string { return s.assetID }

// Len returns the number of points.
func (s *Series) Len() int { return len(s.points) }

// At returns the point at index i.
func (s *Series) At(i int) PricePoint { return s.points[i] }

// First returns the oldest point.
func (s *Series) First() PricePoint { return s.points[0] }

// Last returns the most recent point.
func (s *Series) Last() PricePoint { return s.points[len(s.points)-1] }

// Prices returns a copy of the close prices in time order.
func (s *Series) Prices() []float64 {
	out := make([]float64, len(s.points))
	for i, p := range s.points {
		out[i] = p.Price
	}
	return out
}

// TailPrices returns the last n prices (or all of them when n >= Len).
func (s *Series) TailPrices(n int) []float64 {
	if n >= len(s.points) {
		return s.Prices()
	}
	out := make([]float64, n)
	for i, p := range s.points[len(s.points)-n:] {
		out[i] = p.Price
	}
	return out
}

// PercentChange returns the percent change between the first and last
// point of the trailing window of n observations. Returns 0 when fewer
// than 2 points are available or the window start price is 0.
func (s *Series) PercentChange(window int) float64 {
	if len(s.points) < 2 {
		return 0
	}
	start := len(s.points) - window
	if start < 0 {
		start = 0
	}
	base := s.points[start].Price
	if base == 0 {
		return 0
	}
	return (s.points[len(s.points)-1].Price - base) / base * 100
}

// MinMax returns the lowest and highest price over the whole series.
func (s *Series) MinMax() (low, high float64) {
	low, high = s.points[0].Price, s.points[0].Price
	for _, p := range s.points[1:] {
		if p.Price < low {
			low = p.Price
		}
		if p.Price > high {
			high = p.Price
		}
	}
	return low, high
}
