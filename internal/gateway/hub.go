// Package gateway streams fresh signal records to WebSocket dashboard
// clients and serves the REST surface (signals, screener, backtests,
// CSV export).
//
// The hub holds the latest record per asset so a connecting client gets
// an immediate snapshot, plus a replay buffer of recent envelopes for
// gap backfill after a reconnect.
package gateway

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"sync"
	"time"

	"marketpulse/internal/model"

	"github.com/gorilla/websocket"
)

// Hub manages WebSocket clients and record fan-out.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	latest  map[string]latestEntry // keyed by asset ID
	seq     int64

	// Replay buffer of recent envelopes for client gap backfill.
	replay *ReplayBuffer

	// OnClientChange reports the current client count (for metrics).
	OnClientChange func(count int)
}

type latestEntry struct {
	Record *model.SignalRecord
	Data   json.RawMessage // pre-built envelope payload
	TS     time.Time
	Seq    int64
}

// NewHub creates a hub with a replay buffer of the given capacity.
func NewHub(replayCapacity int) *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		latest:  make(map[string]latestEntry),
		replay:  NewReplayBuffer(replayCapacity),
	}
}

// Run consumes records from the bus and broadcasts each one. Blocks
// until ctx is cancelled or the channel is closed.
func (h *Hub) Run(ctx context.Context, records <-chan *model.SignalRecord) {
	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-records:
			if !ok {
				return
			}
			h.Broadcast(rec)
		}
	}
}

// HandleWSRequest registers an upgraded connection and starts its pumps.
// lastSeq, when > 0, triggers a replay of missed envelopes before the
// live stream resumes.
func (h *Hub) HandleWSRequest(conn *websocket.Conn, lastSeq int64) {
	client := &Client{
		conn: conn,
		send: make(chan []byte, 256),
		hub:  h,
	}

	conn.EnableWriteCompression(true)

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	log.Printf("[gateway] ws client connected (%d total)", count)
	if h.OnClientChange != nil {
		h.OnClientChange(count)
	}

	go client.sendInitialState(lastSeq)
	go client.writePump()
	go client.readPump()
}

// RemoveClient removes a client from the hub.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	count := len(h.clients)
	h.mu.Unlock()
	close(c.send)
	if h.OnClientChange != nil {
		h.OnClientChange(count)
	}
}

// UpdatePrice refreshes the live price on an asset's latest record and
// rebroadcasts it. Fed by the tick poller between full analysis cycles
// so dashboard prices stay fresh without recomputing indicators.
func (h *Hub) UpdatePrice(assetID string, price float64) {
	h.mu.RLock()
	e, ok := h.latest[assetID]
	h.mu.RUnlock()
	if !ok || e.Record.Price == price {
		return
	}
	rec := *e.Record
	rec.Price = price
	h.Broadcast(&rec)
}

// Record returns the latest record for an asset, or nil.
func (h *Hub) Record(assetID string) *model.SignalRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if e, ok := h.latest[assetID]; ok {
		return e.Record
	}
	return nil
}

// Records returns the latest record for every known asset, sorted by
// asset ID for stable output.
func (h *Hub) Records() []*model.SignalRecord {
	h.mu.RLock()
	out := make([]*model.SignalRecord, 0, len(h.latest))
	for _, e := range h.latest {
		out = append(out, e.Record)
	}
	h.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].AssetID < out[j].AssetID })
	return out
}

// ReplayAfter returns the buffered envelopes following lastSeq and
// whether the buffer still reaches back far enough to cover the whole
// gap. ok is false when the oldest surviving envelope no longer joins
// up with lastSeq, meaning intermediate records were evicted and the
// caller must resync from a full snapshot instead.
func (h *Hub) ReplayAfter(lastSeq int64) (envs [][]byte, ok bool) {
	current := h.CurrentSeq()
	if lastSeq >= current {
		return nil, true // nothing missed
	}
	entries := h.replay.Range(lastSeq+1, current)
	if len(entries) == 0 || entries[0].Seq != lastSeq+1 {
		return nil, false
	}
	envs = make([][]byte, len(entries))
	for i, e := range entries {
		envs[i] = e.Data
	}
	return envs, true
}

// GetReplayRange returns buffered envelopes with seq in [fromSeq, toSeq].
// Used by the /api/missed REST endpoint for client gap backfill.
func (h *Hub) GetReplayRange(fromSeq, toSeq int64) [][]byte {
	entries := h.replay.Range(fromSeq, toSeq)
	result := make([][]byte, len(entries))
	for i, e := range entries {
		result[i] = e.Data
	}
	return result
}

// CurrentSeq returns the latest broadcast sequence number.
func (h *Hub) CurrentSeq() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.seq
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
