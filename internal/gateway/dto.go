package gateway

import (
	"encoding/json"
	"log"

	"marketpulse/internal/model"
)

// ── WS Protocol Message Types ──

// SubscribeMsg is the client → server SUBSCRIBE request. All fields are
// optional; an empty filter delivers every record.
type SubscribeMsg struct {
	Type        string   `json:"type"`  // "SUBSCRIBE"
	ReqID       string   `json:"reqId"` // client-generated request ID
	Assets      []string `json:"assets"`
	MinScore    int      `json:"min_score"`
	SignalsOnly bool     `json:"signals_only"` // drop NEUTRAL records
}

// SubscribeAck is the server → client acknowledgement carrying the
// records that currently match the installed filter.
type SubscribeAck struct {
	Type    string                `json:"type"` // "SUBSCRIBED"
	ReqID   string                `json:"reqId"`
	Seq     int64                 `json:"seq"` // resume point for reconnects
	Records []*model.SignalRecord `json:"records"`
}

// ErrorResponse is the server → client error message.
type ErrorResponse struct {
	Type  string `json:"type"` // "ERROR"
	ReqID string `json:"reqId"`
	Error string `json:"error"`
}

// SendJSON marshals and sends a message to the client's send channel.
func SendJSON(c *Client, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("[gateway] json marshal error: %v", err)
		return
	}
	select {
	case c.send <- data:
	default:
		log.Println("[gateway] client send buffer full, dropping message")
	}
}

// SendError sends an error response to the client.
func SendError(c *Client, reqID, errMsg string) {
	SendJSON(c, ErrorResponse{
		Type:  "ERROR",
		ReqID: reqID,
		Error: errMsg,
	})
}
