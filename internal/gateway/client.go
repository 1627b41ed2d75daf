package gateway

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"marketpulse/internal/model"

	"github.com/gorilla/websocket"
)

// Client represents a single WebSocket peer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	// Per-client delivery filter; nil means receive everything.
	filterMu sync.RWMutex
	filter   *clientFilter
}

// clientFilter narrows which records a client receives.
type clientFilter struct {
	assets      map[string]bool // empty = all assets
	minScore    int
	signalsOnly bool // suppress NEUTRAL records
}

// matchesRecord checks whether this client should receive the record.
func (c *Client) matchesRecord(rec *model.SignalRecord) bool {
	c.filterMu.RLock()
	defer c.filterMu.RUnlock()

	f := c.filter
	if f == nil {
		// No subscription yet, receive everything
		return true
	}
	if len(f.assets) > 0 && !f.assets[rec.AssetID] {
		return false
	}
	if rec.Score < f.minScore {
		return false
	}
	if f.signalsOnly && rec.Signal == model.SignalNeutral {
		return false
	}
	return true
}

// sendInitialState pushes the current per-asset snapshot to a fresh
// client. When lastSeq > 0 and the replay buffer still covers the whole
// gap, the missed envelopes are replayed instead so the client resumes
// without losing intermediate updates.
func (c *Client) sendInitialState(lastSeq int64) {
	if lastSeq > 0 {
		missed, ok := c.hub.ReplayAfter(lastSeq)
		// A replay is only safe when it is contiguous with lastSeq.
		// After eviction the oldest buffered envelope may sit past the
		// client's position; fall through to a full snapshot then.
		if ok {
			for _, env := range missed {
				select {
				case c.send <- env:
				default:
				}
			}
			return
		}
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()

	for assetID, entry := range c.hub.latest {
		envelope, _ := json.Marshal(map[string]interface{}{
			"asset":   assetID,
			"data":    json.RawMessage(entry.Data),
			"ts":      entry.TS.Format(time.RFC3339Nano),
			"seq":     entry.Seq,
			"initial": true,
		})
		select {
		case c.send <- envelope:
		default:
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))

			// Write coalescing: use NextWriter to batch queued messages
			// into a single WebSocket frame with newline separators
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)

			// Drain any queued messages into the same write
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
		log.Println("[gateway] ws client disconnected")
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var base struct {
			Type string `json:"type"`
			Ping int64  `json:"ping"`
		}
		if json.Unmarshal(msg, &base) != nil {
			continue
		}

		switch base.Type {
		case "SUBSCRIBE":
			var subMsg SubscribeMsg
			if err := json.Unmarshal(msg, &subMsg); err != nil {
				SendError(c, subMsg.ReqID, "invalid SUBSCRIBE: "+err.Error())
				continue
			}
			c.handleSubscribe(subMsg)

		case "UNSUBSCRIBE":
			c.handleUnsubscribe()

		default:
			// Application-level ping for latency probes
			if base.Ping > 0 {
				pong, _ := json.Marshal(map[string]interface{}{
					"type":      "pong",
					"ping":      base.Ping,
					"server_ts": time.Now().UnixMilli(),
				})
				select {
				case c.send <- pong:
				default:
				}
			}
		}
	}
}

// handleSubscribe installs the client's delivery filter and acks with a
// snapshot of the currently matching records.
func (c *Client) handleSubscribe(msg SubscribeMsg) {
	f := &clientFilter{
		assets:      make(map[string]bool, len(msg.Assets)),
		minScore:    msg.MinScore,
		signalsOnly: msg.SignalsOnly,
	}
	for _, a := range msg.Assets {
		f.assets[a] = true
	}

	c.filterMu.Lock()
	c.filter = f
	c.filterMu.Unlock()

	log.Printf("[gateway] client subscribed: assets=%v min_score=%d signals_only=%v",
		msg.Assets, msg.MinScore, msg.SignalsOnly)

	matching := make([]*model.SignalRecord, 0)
	for _, rec := range c.hub.Records() {
		if c.matchesRecord(rec) {
			matching = append(matching, rec)
		}
	}
	SendJSON(c, SubscribeAck{
		Type:    "SUBSCRIBED",
		ReqID:   msg.ReqID,
		Seq:     c.hub.CurrentSeq(),
		Records: matching,
	})
}

// handleUnsubscribe clears the filter; the client reverts to the full feed.
func (c *Client) handleUnsubscribe() {
	c.filterMu.Lock()
	c.filter = nil
	c.filterMu.Unlock()
	log.Println("[gateway] client unsubscribed, reverting to full feed")
}
