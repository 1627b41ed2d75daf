package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marketpulse/internal/model"
)

func newTestServer(t *testing.T, hub *Hub, deps Deps) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	RegisterRoutes(mux, hub, deps, time.Now())
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out interface{}) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp
}

func TestSignalsEndpoint(t *testing.T) {
	hub := NewHub(16)
	hub.Broadcast(testRecord("bitcoin", 78, model.SignalBuy))
	hub.Broadcast(testRecord("ethereum", 42, model.SignalNeutral))
	srv := newTestServer(t, hub, Deps{})

	var all []*model.SignalRecord
	getJSON(t, srv.URL+"/api/signals", &all)
	if len(all) != 2 {
		t.Fatalf("got %d records, want 2", len(all))
	}

	var one model.SignalRecord
	getJSON(t, srv.URL+"/api/signals?asset=bitcoin", &one)
	if one.AssetID != "bitcoin" || one.Score != 78 {
		t.Errorf("single asset lookup: got %s/%d, want bitcoin/78", one.AssetID, one.Score)
	}

	resp := getJSON(t, srv.URL+"/api/signals?asset=dogecoin", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown asset: status %d, want 404", resp.StatusCode)
	}
}

func TestScreenEndpoint(t *testing.T) {
	hub := NewHub(16)
	hub.Broadcast(testRecord("bitcoin", 78, model.SignalBuy))
	hub.Broadcast(testRecord("ethereum", 42, model.SignalNeutral))
	hub.Broadcast(testRecord("solana", 70, model.SignalBuy))
	srv := newTestServer(t, hub, Deps{})

	var out struct {
		Total   int                   `json:"total"`
		Records []*model.SignalRecord `json:"records"`
	}
	getJSON(t, srv.URL+"/api/screen?min_score=65&sort=score", &out)

	if out.Total != 2 {
		t.Fatalf("total = %d, want 2", out.Total)
	}
	// Default order is descending
	if out.Records[0].AssetID != "bitcoin" || out.Records[1].AssetID != "solana" {
		t.Errorf("order = [%s %s], want [bitcoin solana]",
			out.Records[0].AssetID, out.Records[1].AssetID)
	}
}

func TestBacktestEndpoint_Deterministic(t *testing.T) {
	hub := NewHub(16)
	prices := make([]float64, 200)
	for i := range prices {
		prices[i] = 100 + float64(i)*0.5
	}
	deps := Deps{
		SeriesFor: func(assetID string) (*model.Series, error) {
			return model.SeriesFromPrices(assetID, prices)
		},
	}
	srv := newTestServer(t, hub, deps)

	var first, second model.BacktestResult
	getJSON(t, srv.URL+"/api/backtest?asset=bitcoin&horizon=30", &first)
	getJSON(t, srv.URL+"/api/backtest?asset=bitcoin&horizon=30", &second)

	if first.TotalTrades == 0 {
		t.Fatal("expected at least one simulated trade")
	}
	if first.TotalTrades != second.TotalTrades || first.TotalPnL != second.TotalPnL {
		t.Errorf("same asset and horizon must reproduce identical results: %d/%f vs %d/%f",
			first.TotalTrades, first.TotalPnL, second.TotalTrades, second.TotalPnL)
	}

	resp := getJSON(t, srv.URL+"/api/backtest?asset=bitcoin&direction=sideways", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad direction: status %d, want 400", resp.StatusCode)
	}
}

func TestMissedEndpoint(t *testing.T) {
	hub := NewHub(16)
	for i := 0; i < 4; i++ {
		hub.Broadcast(testRecord("bitcoin", 50+i, model.SignalNeutral))
	}
	srv := newTestServer(t, hub, Deps{})

	var out struct {
		Envelopes []envelope `json:"envelopes"`
	}
	getJSON(t, srv.URL+"/api/missed?from=2&to=3", &out)

	if len(out.Envelopes) != 2 {
		t.Fatalf("got %d envelopes, want 2", len(out.Envelopes))
	}
	if out.Envelopes[0].Seq != 2 || out.Envelopes[1].Seq != 3 {
		t.Errorf("seqs = [%d %d], want [2 3]", out.Envelopes[0].Seq, out.Envelopes[1].Seq)
	}
}

func TestExportEndpointServesCSV(t *testing.T) {
	hub := NewHub(16)
	hub.Broadcast(testRecord("bitcoin", 78, model.SignalBuy))
	srv := newTestServer(t, hub, Deps{})

	resp, err := http.Get(srv.URL + "/api/export.csv")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/csv" {
		t.Errorf("content type = %q, want text/csv", ct)
	}
}
