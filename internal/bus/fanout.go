// Package bus broadcasts freshly computed signal records from a single
// input channel to N output channels. If an output channel is full, the
// record is dropped for that consumer so a slow subscriber (a stalled
// webhook, a wedged WS client) can never block the analysis pipeline.
package bus

import (
	"context"
	"log/slog"
	"sync"

	"marketpulse/internal/model"
)

// FanOut fans records out to registered subscribers.
type FanOut struct {
	mu      sync.RWMutex
	outputs []chan *model.SignalRecord
	bufSize int

	// OnDrop is called when a record is dropped for a subscriber.
	// subscriberIdx is the 0-based index of the slow consumer.
	OnDrop func(subscriberIdx int)
}

// New creates a FanOut with the given buffer size for output channels.
func New(outputBufferSize int) *FanOut {
	return &FanOut{
		bufSize: outputBufferSize,
	}
}

// Subscribe creates and returns a new output channel. Must be called
// before Run starts.
func (f *FanOut) Subscribe() <-chan *model.SignalRecord {
	ch := make(chan *model.SignalRecord, f.bufSize)
	f.mu.Lock()
	f.outputs = append(f.outputs, ch)
	f.mu.Unlock()
	return ch
}

// Run reads from the input channel and fans out to all subscribers.
// Blocks until ctx is cancelled or input is closed; output channels are
// closed on exit.
func (f *FanOut) Run(ctx context.Context, input <-chan *model.SignalRecord) {
	defer func() {
		f.mu.RLock()
		for _, ch := range f.outputs {
			close(ch)
		}
		f.mu.RUnlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-input:
			if !ok {
				return
			}
			f.mu.RLock()
			for i, ch := range f.outputs {
				select {
				case ch <- rec:
				default:
					if f.OnDrop != nil {
						f.OnDrop(i)
					} else {
						slog.Warn("bus subscriber full, dropping record",
							slog.Int("subscriber", i), slog.String("asset", rec.AssetID))
					}
				}
			}
			f.mu.RUnlock()
		}
	}
}

// ChannelStat reports (length, capacity) of one subscriber channel, used
// for channel saturation metrics.
type ChannelStat struct {
	Len int
	Cap int
}

// ChannelStats returns the stats for every subscriber channel.
func (f *FanOut) ChannelStats() []ChannelStat {
	f.mu.RLock()
	defer f.mu.RUnlock()
	stats := make([]ChannelStat, len(f.outputs))
	for i, ch := range f.outputs {
		stats[i] = ChannelStat{Len: len(ch), Cap: cap(ch)}
	}
	return stats
}
