// Package levels finds candidate support and resistance price levels from
// local extrema of a price series, merged with known absolute extrema
// (24h high/low, all-time-high).
package levels

import (
	"math"
	"sort"

	"marketpulse/internal/model"
)

const (
	// DefaultMargin is the number of neighbors checked on both sides of a
	// point when scanning for local extrema.
	DefaultMargin = 6

	// dedupePct merges candidates closer than this relative distance.
	dedupePct = 0.01

	// majorPct marks scanned candidates within this relative distance of
	// the current price as "major".
	majorPct = 0.03

	// maxLevels is the number of levels kept per side.
	maxLevels = 3
)

type candidate struct {
	price       float64
	forcedMajor bool // absolute extrema are always major regardless of distance
}

// Detect scans the series for local extrema with the given margin and
// returns up to 3 supports (below current price, nearest first, so
// descending) and up to 3 resistances (above current price, ascending).
// high24, low24 and ath are injected as major candidates when they lie on
// the correct side of the current price; pass 0 for unknown values.
func Detect(s *model.Series, margin int, high24, low24, ath float64) (supports, resistances []model.PriceLevel) {
	current := s.Last().Price
	prices := s.Prices()

	var supCands, resCands []candidate
	for i := range prices {
		if isLocalMin(prices, i, margin) && prices[i] < current {
			supCands = append(supCands, candidate{price: prices[i]})
		}
		if isLocalMax(prices, i, margin) && prices[i] > current {
			resCands = append(resCands, candidate{price: prices[i]})
		}
	}

	for _, abs := range []float64{low24, high24, ath} {
		if abs <= 0 {
			continue
		}
		if abs < current {
			supCands = append(supCands, candidate{price: abs, forcedMajor: true})
		} else if abs > current {
			resCands = append(resCands, candidate{price: abs, forcedMajor: true})
		}
	}

	// Supports: nearest below first (descending price).
	sort.Slice(supCands, func(i, j int) bool { return supCands[i].price > supCands[j].price })
	// Resistances: nearest above first (ascending price).
	sort.Slice(resCands, func(i, j int) bool { return resCands[i].price < resCands[j].price })

	supports = dedupe(supCands, current)
	resistances = dedupe(resCands, current)
	return supports, resistances
}

// dedupe collapses candidates within 1% of an already-kept level (first
// after sorting wins), assigns strength, and truncates to maxLevels.
func dedupe(cands []candidate, current float64) []model.PriceLevel {
	out := make([]model.PriceLevel, 0, maxLevels)
	for _, c := range cands {
		dup := false
		for _, kept := range out {
			if relDist(c.price, kept.Price) < dedupePct {
				dup = true
				break
			}
		}
		if dup {
			continue
		}

		strength := model.LevelMinor
		if c.forcedMajor || relDist(c.price, current) < majorPct {
			strength = model.LevelMajor
		}
		out = append(out, model.PriceLevel{Price: c.price, Strength: strength})
		if len(out) == maxLevels {
			break
		}
	}
	return out
}

func relDist(a, b float64) float64 {
	if b == 0 {
		return math.Inf(1)
	}
	return math.Abs(a-b) / math.Abs(b)
}

// isLocalMin reports whether no neighbor within the margin is lower.
// Points without a full margin on both sides never qualify; the injected
// absolute extrema cover the series edges.
func isLocalMin(prices []float64, i, margin int) bool {
	if i < margin || i > len(prices)-1-margin {
		return false
	}
	for j := i - margin; j <= i+margin; j++ {
		if j != i && prices[j] < prices[i] {
			return false
		}
	}
	return true
}

func isLocalMax(prices []float64, i, margin int) bool {
	if i < margin || i > len(prices)-1-margin {
		return false
	}
	for j := i - margin; j <= i+margin; j++ {
		if j != i && prices[j] > prices[i] {
			return false
		}
	}
	return true
}
