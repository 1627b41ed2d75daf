// Package backtest replays a price series into a simulated trade ledger
// and aggregate performance statistics.
//
// Event generation is pseudo-random but fully deterministic: the generator
// is seeded from a stable hash of (assetID, horizonDays), never from wall
// clock, so re-running with identical inputs reproduces an identical
// ledger. Required for caching, testing and reproducible reports.
package backtest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"math/rand"

	"marketpulse/internal/model"
)

// Generation parameters (reference behavior).
const (
	minEntryGap   = 8 // bars between candidate entries
	maxEntryGap   = 20
	minExitOffset = 3 // bars from entry to exit
	maxExitOffset = 10
	minConfidence = 50.0
	maxConfidence = 95.0

	// momentumLookback is the window used to pick a trade direction.
	momentumLookback = 5
)

// Config controls simulation parameters.
type Config struct {
	// Seed overrides the derived seed when non-zero; tests fix it here.
	Seed int64

	// HorizonDays feeds the derived seed alongside the asset ID.
	HorizonDays int

	// PositionSize is the fixed nominal size per trade.
	PositionSize float64

	// InitialCapital anchors the equity curve.
	InitialCapital float64
}

// Filter narrows the generated event set. Zero value keeps everything.
type Filter struct {
	MinConfidence float64
	Direction     model.TradeDirection // empty = both directions
}

// Simulator generates candidate trade events for one series and answers
// filtered runs against them. Events are generated once at construction;
// filtering never triggers recomputation, so the same simulator can be
// re-queried with different filters cheaply.
type Simulator struct {
	series *model.Series
	cfg    Config
	events []model.BacktestTrade
}

// DefaultConfig returns the reference simulation parameters.
func DefaultConfig(horizonDays int) Config {
	return Config{
		HorizonDays:    horizonDays,
		PositionSize:   1000,
		InitialCapital: 10000,
	}
}

// SeedFor derives the deterministic generator seed from the asset
// identifier and horizon. FNV-1a keeps it stable across runs and hosts.
func SeedFor(assetID string, horizonDays int) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%d", assetID, horizonDays)
	return int64(h.Sum64())
}

// New builds a simulator and generates the full unfiltered event set.
func New(series *model.Series, cfg Config) *Simulator {
	if cfg.PositionSize == 0 {
		cfg.PositionSize = 1000
	}
	if cfg.InitialCapital == 0 {
		cfg.InitialCapital = 10000
	}
	s := &Simulator{series: series, cfg: cfg}
	s.generate()
	return s
}

// Events returns the full unfiltered event set.
func (s *Simulator) Events() []model.BacktestTrade {
	out := make([]model.BacktestTrade, len(s.events))
	copy(out, s.events)
	return out
}

// Run filters the generated events and aggregates them into a result.
func (s *Simulator) Run(f Filter) *model.BacktestResult {
	kept := make([]model.BacktestTrade, 0, len(s.events))
	for _, ev := range s.events {
		if ev.Confidence < f.MinConfidence {
			continue
		}
		if f.Direction != "" && ev.Direction != f.Direction {
			continue
		}
		kept = append(kept, ev)
	}
	return Aggregate(s.series.AssetID(), s.series.Prices(), kept, s.cfg.InitialCapital)
}

func (s *Simulator) generate() {
	seed := s.cfg.Seed
	if seed == 0 {
		seed = SeedFor(s.series.AssetID(), s.cfg.HorizonDays)
	}
	rng := rand.New(rand.NewSource(seed))
	prices := s.series.Prices()
	n := len(prices)

	entry := minEntryGap + rng.Intn(maxEntryGap-minEntryGap+1)
	for entry < n-minExitOffset {
		exit := entry + minExitOffset + rng.Intn(maxExitOffset-minExitOffset+1)
		if exit >= n {
			break
		}
		confidence := minConfidence + rng.Float64()*(maxConfidence-minConfidence)

		direction := model.DirectionLong
		if momentum(prices, entry) < 0 {
			direction = model.DirectionShort
		}

		entryPrice := prices[entry]
		exitPrice := prices[exit]
		var pnlPct float64
		if entryPrice != 0 {
			if direction == model.DirectionLong {
				pnlPct = (exitPrice - entryPrice) / entryPrice * 100
			} else {
				pnlPct = (entryPrice - exitPrice) / entryPrice * 100
			}
		}
		pnlAbs := s.cfg.PositionSize * pnlPct / 100

		s.events = append(s.events, model.BacktestTrade{
			ID:             tradeID(s.series.AssetID(), entry, exit),
			EntryIndex:     entry,
			ExitIndex:      exit,
			EntryPrice:     entryPrice,
			ExitPrice:      exitPrice,
			Direction:      direction,
			Confidence:     confidence,
			PnLAbsolute:    pnlAbs,
			PnLPercent:     pnlPct,
			DurationInBars: exit - entry,
			Outcome:        outcomeOf(pnlAbs),
		})

		entry += minEntryGap + rng.Intn(maxEntryGap-minEntryGap+1)
	}
}

// momentum returns the price change over the bars preceding the entry.
func momentum(prices []float64, entry int) float64 {
	start := entry - momentumLookback
	if start < 0 {
		start = 0
	}
	return prices[entry] - prices[start]
}

func outcomeOf(pnl float64) model.TradeOutcome {
	switch {
	case pnl > 0:
		return model.OutcomeWin
	case pnl < 0:
		return model.OutcomeLoss
	default:
		return model.OutcomeBreakeven
	}
}

// tradeID computes a stable identifier for one entry/exit pair.
func tradeID(assetID string, entry, exit int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%d", assetID, entry, exit)))
	return hex.EncodeToString(sum[:8])
}
