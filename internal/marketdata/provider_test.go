package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marketpulse/internal/ringbuf"
)

const marketsFixture = `[
  {
    "id": "bitcoin",
    "symbol": "btc",
    "name": "Bitcoin",
    "current_price": 65000,
    "market_cap": 1280000000000,
    "total_volume": 32000000000,
    "high_24h": 66200,
    "low_24h": 64100,
    "price_change_percentage_24h": 1.8,
    "price_change_percentage_7d_in_currency": -2.4,
    "ath": 73750,
    "ath_change_percentage": -11.9,
    "sparkline_in_7d": {"price": [64000, 64500, 65000]}
  },
  {
    "id": "ethereum",
    "symbol": "eth",
    "name": "Ethereum",
    "current_price": 3400,
    "market_cap": 408000000000,
    "total_volume": 15000000000,
    "price_change_percentage_24h": -0.6
  }
]`

func TestQuotes_MapsProviderRows(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if r.URL.Query().Get("sparkline") != "true" {
			t.Errorf("sparkline param missing: %s", r.URL.RawQuery)
		}
		w.Write([]byte(marketsFixture))
	}))
	defer srv.Close()

	p := New(Config{
		BaseURL:    srv.URL,
		Favorites:  []string{"bitcoin"},
		Categories: map[string]string{"bitcoin": "layer1"},
	})
	quotes, err := p.Quotes(context.Background(), []string{"bitcoin", "ethereum"})
	if err != nil {
		t.Fatalf("Quotes: %v", err)
	}
	if gotPath != "/coins/markets" {
		t.Errorf("path = %s, want /coins/markets", gotPath)
	}
	if len(quotes) != 2 {
		t.Fatalf("got %d quotes, want 2", len(quotes))
	}

	btc := quotes[0]
	if btc.AssetID != "bitcoin" || btc.Symbol != "BTC" || btc.Name != "Bitcoin" {
		t.Errorf("identity fields wrong: %+v", btc)
	}
	if btc.CurrentPrice != 65000 || btc.Change24h != 1.8 || btc.Change7d != -2.4 {
		t.Errorf("price fields wrong: %+v", btc)
	}
	if !btc.Favorite || btc.Category != "layer1" {
		t.Errorf("overlay not applied: favorite=%v category=%q", btc.Favorite, btc.Category)
	}
	if len(btc.Sparkline) != 3 || btc.Sparkline[2] != 65000 {
		t.Errorf("sparkline wrong: %v", btc.Sparkline)
	}
	if btc.FetchedAt.IsZero() {
		t.Error("FetchedAt not set")
	}

	eth := quotes[1]
	if eth.Favorite || eth.Category != "" {
		t.Errorf("overlay leaked onto ethereum: %+v", eth)
	}
	if len(eth.Sparkline) != 0 {
		t.Errorf("expected empty sparkline for ethereum, got %v", eth.Sparkline)
	}
}

func TestQuotes_ErrorStatuses(t *testing.T) {
	status := http.StatusInternalServerError
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()

	p := New(Config{BaseURL: srv.URL})
	if _, err := p.Quotes(context.Background(), []string{"bitcoin"}); err == nil {
		t.Error("expected error on 500")
	}

	status = http.StatusTooManyRequests
	if _, err := p.Quotes(context.Background(), []string{"bitcoin"}); err == nil {
		t.Error("expected error on 429")
	}
}

func TestQuotes_EmptyAssetListSkipsRequest(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	p := New(Config{BaseURL: srv.URL})
	quotes, err := p.Quotes(context.Background(), nil)
	if err != nil || quotes != nil {
		t.Errorf("empty list: got %v, %v", quotes, err)
	}
	if called {
		t.Error("request made for empty asset list")
	}
}

func TestSimplePrices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/simple/price" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"bitcoin":{"usd":65000},"ethereum":{"usd":3400}}`))
	}))
	defer srv.Close()

	p := New(Config{BaseURL: srv.URL})
	prices, err := p.SimplePrices(context.Background(), []string{"bitcoin", "ethereum"})
	if err != nil {
		t.Fatalf("SimplePrices: %v", err)
	}
	if prices["bitcoin"] != 65000 || prices["ethereum"] != 3400 {
		t.Errorf("prices = %v", prices)
	}
}

func TestPoller_FeedsRing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"bitcoin":{"usd":65000}}`))
	}))
	defer srv.Close()

	ring := ringbuf.New(8)
	p := New(Config{BaseURL: srv.URL})
	poller := NewPoller(p, ring, []string{"bitcoin"}, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Run(ctx) // initial poll fires immediately
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for ring.Len() == 0 {
		select {
		case <-deadline:
			t.Fatal("no tick arrived in ring")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	tk, ok := ring.Pop()
	if !ok {
		t.Fatal("ring empty after poll")
	}
	if tk.AssetID != "bitcoin" || tk.Point.Price != 65000 {
		t.Errorf("tick = %+v", tk)
	}
}
