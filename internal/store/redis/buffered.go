package redis

import (
	"context"
	"log"
	"sync"

	"marketpulse/internal/model"
)

// BufferedStore wraps a Store with a circuit breaker. During circuit-open
// state, record writes are buffered locally and flushed when the circuit
// closes again, so a Redis outage costs latency, not signals.
type BufferedStore struct {
	store *Store
	cb    *CircuitBreaker
	ctx   context.Context

	mu     sync.Mutex
	buffer []*model.SignalRecord
	maxBuf int

	// Callbacks
	OnBuffer func()          // called when a record is buffered (for metrics)
	OnFlush  func(count int) // called after flushing buffered records
}

// NewBufferedStore creates a BufferedStore wrapping the given Store.
func NewBufferedStore(ctx context.Context, s *Store, cb *CircuitBreaker, maxBufferSize int) *BufferedStore {
	if maxBufferSize <= 0 {
		maxBufferSize = 10000
	}
	bs := &BufferedStore{
		store:  s,
		cb:     cb,
		ctx:    ctx,
		buffer: make([]*model.SignalRecord, 0, 256),
		maxBuf: maxBufferSize,
	}

	// Register flush on circuit close
	prevCallback := cb.OnStateChange
	cb.OnStateChange = func(from, to State) {
		if prevCallback != nil {
			prevCallback(from, to)
		}
		if to == StateClosed {
			go bs.flush()
		}
	}

	return bs
}

// WriteRecords writes a cycle through the circuit breaker. If the circuit
// is open, the records are buffered locally.
func (bs *BufferedStore) WriteRecords(records []*model.SignalRecord) error {
	err := bs.cb.Execute(func() error {
		return bs.store.WriteRecords(bs.ctx, records)
	})
	if err == ErrCircuitOpen {
		bs.bufferRecords(records)
		return nil // buffered, not lost
	}
	return err
}

func (bs *BufferedStore) bufferRecords(records []*model.SignalRecord) {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	for _, rec := range records {
		if len(bs.buffer) >= bs.maxBuf {
			// Buffer full, drop oldest
			bs.buffer = bs.buffer[1:]
		}
		bs.buffer = append(bs.buffer, rec)
		if bs.OnBuffer != nil {
			bs.OnBuffer()
		}
	}
}

// flush replays all buffered records through the underlying store. Later
// buffered records for the same asset simply overwrite earlier ones on
// replay, matching the latest-wins cache semantics.
func (bs *BufferedStore) flush() {
	bs.mu.Lock()
	if len(bs.buffer) == 0 {
		bs.mu.Unlock()
		return
	}
	toFlush := bs.buffer
	bs.buffer = make([]*model.SignalRecord, 0, 256)
	bs.mu.Unlock()

	flushed := 0
	for _, rec := range toFlush {
		if err := bs.store.writeRecord(bs.ctx, rec); err != nil {
			log.Printf("[buffered-store] flush write error for %s: %v", rec.AssetID, err)
			continue
		}
		flushed++
	}

	log.Printf("[buffered-store] flushed %d buffered records", flushed)
	if bs.OnFlush != nil {
		bs.OnFlush(flushed)
	}
}

// PendingCount returns the number of buffered records waiting to be flushed.
func (bs *BufferedStore) PendingCount() int {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	return len(bs.buffer)
}

// Underlying returns the wrapped store for direct reads.
func (bs *BufferedStore) Underlying() *Store {
	return bs.store
}
