package notification

import (
	"context"
	"fmt"
	"log"
	"sync"

	"marketpulse/internal/model"
)

// Watcher consumes signal records and fires alerts when an asset's
// trading call changes. The first record for an asset sets the baseline
// without alerting; repeats of the same call stay silent, so a noisy
// asset produces one alert per transition, not per cycle.
type Watcher struct {
	notifiers []Notifier

	mu   sync.Mutex
	last map[string]model.Signal

	// AlertOnNeutral includes transitions back to NEUTRAL (exits).
	AlertOnNeutral bool

	// OnAlert reports each delivery per backend name (for metrics).
	OnAlert func(backend string)
}

// NewWatcher creates a watcher delivering to the given backends.
func NewWatcher(notifiers ...Notifier) *Watcher {
	return &Watcher{
		notifiers: notifiers,
		last:      make(map[string]model.Signal),
	}
}

// Run consumes records until ctx is cancelled or the channel closes.
func (w *Watcher) Run(ctx context.Context, records <-chan *model.SignalRecord) {
	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-records:
			if !ok {
				return
			}
			w.Observe(ctx, rec)
		}
	}
}

// Observe processes one record, alerting if the call changed.
func (w *Watcher) Observe(ctx context.Context, rec *model.SignalRecord) {
	w.mu.Lock()
	prev, seen := w.last[rec.AssetID]
	w.last[rec.AssetID] = rec.Signal
	w.mu.Unlock()

	if !seen || prev == rec.Signal {
		return
	}
	if rec.Signal == model.SignalNeutral && !w.AlertOnNeutral {
		return
	}

	alert := buildTransitionAlert(rec, prev)
	for _, n := range w.notifiers {
		if err := n.Send(ctx, alert); err != nil {
			log.Printf("[watcher] alert delivery failed: %v", err)
			continue
		}
		if w.OnAlert != nil {
			w.OnAlert(backendName(n))
		}
	}
}

// LastSignal returns the last observed call for an asset.
func (w *Watcher) LastSignal(assetID string) (model.Signal, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.last[assetID]
	return s, ok
}

func buildTransitionAlert(rec *model.SignalRecord, prev model.Signal) Alert {
	level := AlertInfo
	if rec.Signal == model.SignalBuy || rec.Signal == model.SignalSell {
		level = AlertWarning
	}
	name := rec.Name
	if name == "" {
		name = rec.AssetID
	}
	return Alert{
		Level: level,
		Title: fmt.Sprintf("%s: %s -> %s", name, prev, rec.Signal),
		Message: fmt.Sprintf("%s (%s) flipped to %s with score %d at $%.2f (24h %+.2f%%)",
			name, rec.Symbol, rec.Signal, rec.Score, rec.Price, rec.Change24h),
		AssetID: rec.AssetID,
		Signal:  string(rec.Signal),
		Score:   rec.Score,
		Price:   rec.Price,
	}
}

func backendName(n Notifier) string {
	switch n.(type) {
	case *TelegramNotifier:
		return "telegram"
	case *WebhookNotifier:
		return "webhook"
	case *LogNotifier:
		return "log"
	default:
		return "custom"
	}
}
