// Package scheduler drives the periodic work: the analysis cycle that
// refreshes every asset's signal record, and daily housekeeping.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"marketpulse/internal/analyzer"
	"marketpulse/internal/metrics"
	"marketpulse/internal/model"

	"github.com/robfig/cron/v3"
)

// QuoteSource fetches quotes for the configured assets.
type QuoteSource interface {
	Quotes(ctx context.Context, assetIDs []string) ([]model.AssetQuote, error)
}

// RecordSink persists a batch of computed records.
type RecordSink interface {
	WriteRecords(records []*model.SignalRecord) error
}

// Pruner removes signal rows older than the retention window.
type Pruner interface {
	PruneSignals(retention time.Duration) (int64, error)
}

// Engine runs one full analysis cycle: fetch, compute, fan out, persist.
type Engine struct {
	Source   QuoteSource
	Analyzer *analyzer.Analyzer
	Assets   []string

	// Out feeds the in-process record bus. A nil Out skips fan-out,
	// which the backtest CLI uses for one-shot runs.
	Out chan<- *model.SignalRecord

	// Sink is the Redis write path (may be nil in tests).
	Sink RecordSink

	Metrics *metrics.Metrics

	// Health, when set, tracks provider liveness for /healthz.
	Health *metrics.HealthStatus
}

// RunCycle executes one analysis cycle. Partial failures degrade: a
// fetch error aborts the cycle, per-asset compute errors only drop that
// asset.
func (e *Engine) RunCycle(ctx context.Context) error {
	fetchStart := time.Now()
	quotes, err := e.Source.Quotes(ctx, e.Assets)
	if err != nil {
		if e.Metrics != nil {
			e.Metrics.FetchErrors.Inc()
		}
		if e.Health != nil {
			e.Health.SetProviderOK(false)
		}
		return fmt.Errorf("quote fetch: %w", err)
	}
	if e.Metrics != nil {
		e.Metrics.QuotesFetched.Add(float64(len(quotes)))
		e.Metrics.FetchDur.Observe(time.Since(fetchStart).Seconds())
	}
	if e.Health != nil {
		e.Health.SetProviderOK(true)
		e.Health.SetLastFetchTime(time.Now())
		e.Health.SetAssetCount(len(quotes))
	}

	computeStart := time.Now()
	records := e.Analyzer.ComputeAll(ctx, quotes)
	if e.Metrics != nil {
		e.Metrics.AnalysisCycles.Inc()
		e.Metrics.AnalysisDur.Observe(time.Since(computeStart).Seconds())
		e.Metrics.RecordsComputed.Add(float64(len(records)))
		for _, rec := range records {
			e.Metrics.SignalsTotal.WithLabelValues(string(rec.Signal)).Inc()
		}
	}

	if e.Out != nil {
		for _, rec := range records {
			select {
			case e.Out <- rec:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	if e.Sink != nil {
		if err := e.Sink.WriteRecords(records); err != nil {
			log.Printf("[scheduler] redis write error: %v", err)
		}
	}

	log.Printf("[scheduler] cycle done: %d quotes -> %d records in %v",
		len(quotes), len(records), time.Since(fetchStart))
	return nil
}

// Scheduler manages the cron tasks.
type Scheduler struct {
	Cron   *cron.Cron
	engine *Engine
	pruner Pruner
	ctx    context.Context

	// Retention applied by the daily prune. Defaults to 90 days.
	Retention time.Duration
}

// New creates a scheduler around the analysis engine.
func New(ctx context.Context, engine *Engine, pruner Pruner) *Scheduler {
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds()),
		engine:    engine,
		pruner:    pruner,
		ctx:       ctx,
		Retention: 90 * 24 * time.Hour,
	}
}

// RegisterAll registers the analysis cycle and daily prune tasks.
// Schedules use six-field cron syntax with a leading seconds column.
func (s *Scheduler) RegisterAll(analysisCron, pruneCron string) error {
	if _, err := s.Cron.AddFunc(analysisCron, s.analysisTask); err != nil {
		return fmt.Errorf("register analysis task: %w", err)
	}
	if s.pruner != nil {
		if _, err := s.Cron.AddFunc(pruneCron, s.pruneTask); err != nil {
			return fmt.Errorf("register prune task: %w", err)
		}
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[scheduler] started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.Cron.Stop()
	log.Println("[scheduler] stopped")
}

// RunCycleNow executes the analysis cycle immediately, used at startup
// so the dashboard has data before the first scheduled tick.
func (s *Scheduler) RunCycleNow() {
	s.analysisTask()
}

func (s *Scheduler) analysisTask() {
	if err := s.engine.RunCycle(s.ctx); err != nil {
		log.Printf("[scheduler] analysis cycle failed: %v", err)
	}
}

func (s *Scheduler) pruneTask() {
	n, err := s.pruner.PruneSignals(s.Retention)
	if err != nil {
		log.Printf("[scheduler] prune failed: %v", err)
		return
	}
	log.Printf("[scheduler] pruned %d signal rows older than %v", n, s.Retention)
}
