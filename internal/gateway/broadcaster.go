package gateway

import (
	"strconv"
	"time"

	"marketpulse/internal/model"
)

// Broadcast stores the record as the latest for its asset, pushes the
// envelope into the replay buffer and fans it out to matching clients.
// The envelope is hand-crafted JSON; the record payload is already
// serialized once, so fan-out costs no further marshalling.
func (h *Hub) Broadcast(rec *model.SignalRecord) {
	data := rec.JSON()
	now := time.Now().UTC()

	h.mu.Lock()
	h.seq++
	seq := h.seq
	h.latest[rec.AssetID] = latestEntry{Record: rec, Data: data, TS: now, Seq: seq}
	h.mu.Unlock()

	buf := buildEnvelope(rec.AssetID, data, now, seq)
	h.replay.Push(seq, buf)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if !client.matchesRecord(rec) {
			continue
		}
		select {
		case client.send <- buf:
		default:
		}
	}
}

// buildEnvelope hand-crafts the WS envelope JSON:
// {"asset":"...","data":...,"ts":"...","seq":N}
func buildEnvelope(assetID string, data []byte, now time.Time, seq int64) []byte {
	buf := make([]byte, 0, len(assetID)+len(data)+128)
	buf = append(buf, `{"asset":"`...)
	buf = append(buf, assetID...)
	buf = append(buf, `","data":`...)
	buf = append(buf, data...)
	buf = append(buf, `,"ts":"`...)
	buf = now.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, '}')
	return buf
}
