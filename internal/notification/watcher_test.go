package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"marketpulse/internal/model"
)

// captureNotifier records every alert it receives.
type captureNotifier struct {
	alerts []Alert
}

func (c *captureNotifier) Send(ctx context.Context, alert Alert) error {
	c.alerts = append(c.alerts, alert)
	return nil
}

func rec(assetID string, sig model.Signal, score int) *model.SignalRecord {
	return &model.SignalRecord{
		AssetID: assetID,
		Name:    assetID,
		Symbol:  strings.ToUpper(assetID[:3]),
		Signal:  sig,
		Score:   score,
		Price:   100,
	}
}

func TestWatcher_AlertsOnTransitionOnly(t *testing.T) {
	cap := &captureNotifier{}
	w := NewWatcher(cap)
	ctx := context.Background()

	w.Observe(ctx, rec("bitcoin", model.SignalNeutral, 50)) // baseline, silent
	w.Observe(ctx, rec("bitcoin", model.SignalNeutral, 55)) // unchanged, silent
	w.Observe(ctx, rec("bitcoin", model.SignalBuy, 70))     // transition, alert
	w.Observe(ctx, rec("bitcoin", model.SignalBuy, 72))     // unchanged, silent

	if len(cap.alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(cap.alerts))
	}
	a := cap.alerts[0]
	if a.AssetID != "bitcoin" || a.Signal != "BUY" || a.Score != 70 {
		t.Errorf("alert context wrong: %+v", a)
	}
	if a.Level != AlertWarning {
		t.Errorf("level = %s, want WARNING", a.Level)
	}
	if !strings.Contains(a.Title, "NEUTRAL -> BUY") {
		t.Errorf("title = %q, want transition arrow", a.Title)
	}
}

func TestWatcher_NeutralExitSuppressedByDefault(t *testing.T) {
	cap := &captureNotifier{}
	w := NewWatcher(cap)
	ctx := context.Background()

	w.Observe(ctx, rec("bitcoin", model.SignalBuy, 70))
	w.Observe(ctx, rec("bitcoin", model.SignalNeutral, 50))
	if len(cap.alerts) != 0 {
		t.Fatalf("neutral exit alerted with AlertOnNeutral=false: %d alerts", len(cap.alerts))
	}

	w.AlertOnNeutral = true
	w.Observe(ctx, rec("bitcoin", model.SignalBuy, 70))
	w.Observe(ctx, rec("bitcoin", model.SignalNeutral, 50))
	if len(cap.alerts) != 2 {
		t.Fatalf("got %d alerts with AlertOnNeutral=true, want 2", len(cap.alerts))
	}
	if cap.alerts[1].Level != AlertInfo {
		t.Errorf("neutral exit level = %s, want INFO", cap.alerts[1].Level)
	}
}

func TestWatcher_TracksAssetsIndependently(t *testing.T) {
	cap := &captureNotifier{}
	w := NewWatcher(cap)
	ctx := context.Background()

	w.Observe(ctx, rec("bitcoin", model.SignalNeutral, 50))
	w.Observe(ctx, rec("ethereum", model.SignalNeutral, 50))
	w.Observe(ctx, rec("bitcoin", model.SignalBuy, 70))
	w.Observe(ctx, rec("ethereum", model.SignalSell, 30))

	if len(cap.alerts) != 2 {
		t.Fatalf("got %d alerts, want 2", len(cap.alerts))
	}
	if s, _ := w.LastSignal("bitcoin"); s != model.SignalBuy {
		t.Errorf("bitcoin last = %s, want BUY", s)
	}
	if s, _ := w.LastSignal("ethereum"); s != model.SignalSell {
		t.Errorf("ethereum last = %s, want SELL", s)
	}
}

func TestWebhookNotifier_PostsSignalContext(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	err := n.Send(context.Background(), Alert{
		Level:   AlertWarning,
		Title:   "Bitcoin: NEUTRAL -> BUY",
		Message: "flipped",
		AssetID: "bitcoin",
		Signal:  "BUY",
		Score:   78,
		Price:   65000,
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got["asset_id"] != "bitcoin" || got["signal"] != "BUY" {
		t.Errorf("payload missing signal context: %v", got)
	}
	if got["score"].(float64) != 78 {
		t.Errorf("score = %v, want 78", got["score"])
	}
}

func TestWebhookNotifier_ErrorOnBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	if err := n.Send(context.Background(), Alert{Title: "x"}); err == nil {
		t.Error("expected error on 502")
	}
}

func TestTelegramNotifier_SendsEscapedMessage(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/bottoken123/") {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&body)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := NewTelegramNotifier("token123", "chat42")
	n.baseURL = srv.URL
	err := n.Send(context.Background(), Alert{
		Level:   AlertCritical,
		Title:   "Bitcoin: BUY",
		Message: "score 78 (1.2%)",
		AssetID: "bitcoin",
		Signal:  "BUY",
		Score:   78,
		Price:   65000,
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if body["chat_id"] != "chat42" {
		t.Errorf("chat_id = %v", body["chat_id"])
	}
	text, _ := body["text"].(string)
	if !strings.Contains(text, `score 78 \(1\.2%\)`) {
		t.Errorf("markdown not escaped: %q", text)
	}
}
