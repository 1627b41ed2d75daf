// Package analyzer fuses indicator, trend, level and scoring outputs into
// one SignalRecord per asset.
//
// Records are recomputed wholesale from the underlying series on every
// cycle, never patched in place. Independent assets are embarrassingly
// parallel: ComputeAll fans work across a bounded worker pool with no
// shared state.
package analyzer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"marketpulse/internal/indicator"
	"marketpulse/internal/levels"
	"marketpulse/internal/model"
	"marketpulse/internal/scoring"
	"marketpulse/internal/trend"
)

// defaultWorkers bounds ComputeAll concurrency.
const defaultWorkers = 8

// Analyzer computes signal records from asset quotes.
type Analyzer struct {
	workers int
}

// New creates an analyzer. workers <= 0 selects the default pool size.
func New(workers int) *Analyzer {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Analyzer{workers: workers}
}

// Compute produces the signal record for one quote. The only hard failure
// is a malformed series; short histories degrade to neutral defaults so a
// record is always produced for well-formed input.
func (a *Analyzer) Compute(q model.AssetQuote) (*model.SignalRecord, error) {
	series, err := q.Series()
	if err != nil {
		return nil, err
	}
	return a.ComputeFromSeries(q, series), nil
}

// ComputeFromSeries produces the signal record for a quote whose series
// has already been built and validated.
func (a *Analyzer) ComputeFromSeries(q model.AssetQuote, series *model.Series) *model.SignalRecord {
	snap := indicator.ComputeSnapshot(series)

	change24h := q.Change24h
	if change24h == 0 && series.Len() > 1 {
		change24h = series.PercentChange(trend.WindowShort)
	}
	change7d := q.Change7d
	if change7d == 0 && series.Len() > 1 {
		change7d = series.PercentChange(trend.WindowLong)
	}

	consolidated := trend.Consolidated(series, snap)
	multi := trend.MultiTimeframe(series)
	supports, resistances := levels.Detect(series, levels.DefaultMargin, q.High24h, q.Low24h, q.ATH)

	price := q.CurrentPrice
	if price == 0 {
		price = series.Last().Price
	}

	res := scoring.Score(scoring.Input{
		Snapshot:    snap,
		Price:       price,
		Change24h:   change24h,
		Change7d:    change7d,
		VolumeRatio: q.VolumeRatio(),
		Trend:       consolidated,
		MultiTrend:  multi,
		Supports:    supports,
		Resistances: resistances,
	})

	return &model.SignalRecord{
		AssetID:     q.AssetID,
		Name:        q.Name,
		Symbol:      q.Symbol,
		Category:    q.Category,
		Favorite:    q.Favorite,
		Price:       price,
		Change24h:   change24h,
		Change7d:    change7d,
		Volume:      q.TotalVolume,
		MarketCap:   q.MarketCap,
		VolumeRatio: q.VolumeRatio(),
		Indicators:  snap,
		Trend:       consolidated,
		MultiTrend:  multi,
		Supports:    supports,
		Resistances: resistances,
		Score:       res.Score,
		Signal:      res.Signal,
		Factors:     res.Factors,
		ComputedAt:  time.Now().UTC(),
	}
}

// ComputeAll computes records for all quotes concurrently, preserving
// input order. Quotes with malformed series are logged and skipped.
func (a *Analyzer) ComputeAll(ctx context.Context, quotes []model.AssetQuote) []*model.SignalRecord {
	results := make([]*model.SignalRecord, len(quotes))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < a.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				rec, err := a.Compute(quotes[i])
				if err != nil {
					slog.Warn("skipping asset with malformed series",
						slog.String("asset", quotes[i].AssetID), slog.Any("err", err))
					continue
				}
				results[i] = rec
			}
		}()
	}

	for i := range quotes {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return compact(results)
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
	return compact(results)
}

// compact drops nil slots left by skipped assets.
func compact(in []*model.SignalRecord) []*model.SignalRecord {
	out := make([]*model.SignalRecord, 0, len(in))
	for _, r := range in {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}
