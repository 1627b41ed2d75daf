package analyzer

import (
	"context"
	"fmt"
	"math"
	"testing"

	"marketpulse/internal/model"
)

func flatQuote(n int) model.AssetQuote {
	prices := make([]float64, n)
	for i := range prices {
		prices[i] = 100
	}
	return model.AssetQuote{
		AssetID:      "flatcoin",
		Name:         "Flatcoin",
		Symbol:       "FLAT",
		CurrentPrice: 100,
		Sparkline:    prices,
	}
}

// A dead-flat history must yield a fully neutral record: RSI at 50, a
// squeezed zero-width band, score exactly at the base and no signal.
func TestCompute_FlatSeriesIsNeutral(t *testing.T) {
	a := New(0)
	rec, err := a.Compute(flatQuote(30))
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}

	if rec.Indicators.RSI != 50 {
		t.Errorf("RSI = %.2f, want 50", rec.Indicators.RSI)
	}
	if !rec.Indicators.Bollinger.Squeeze {
		t.Error("flat series should report a Bollinger squeeze")
	}
	if rec.Score != 50 {
		t.Errorf("score = %d, want 50", rec.Score)
	}
	if rec.Signal != model.SignalNeutral {
		t.Errorf("signal = %s, want NEUTRAL", rec.Signal)
	}
	if rec.Trend != model.TrendNeutral {
		t.Errorf("trend = %s, want neutral", rec.Trend)
	}
	if len(rec.Factors) != 0 {
		t.Errorf("neutral record should carry no contributing factors, got %v", rec.Factors)
	}
}

// A steady +1% per bar over 60 bars is a strong uptrend: overbought RSI,
// bullish EMA stack, price riding the upper half of the band, bullish
// trend on every window, and a composite score that clears the BUY
// threshold.
func TestCompute_SteadyUptrendIsBuy(t *testing.T) {
	prices := make([]float64, 60)
	p := 100.0
	for i := range prices {
		prices[i] = p
		p *= 1.01
	}
	q := model.AssetQuote{
		AssetID:      "upcoin",
		Symbol:       "UP",
		CurrentPrice: prices[59],
		Sparkline:    prices,
	}

	rec, err := New(0).Compute(q)
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}

	if rec.Indicators.RSI <= 70 {
		t.Errorf("RSI = %.2f, want overbought (>70)", rec.Indicators.RSI)
	}
	snap := rec.Indicators
	if !(snap.EMA9 > snap.EMA21 && snap.EMA21 > snap.EMA50) {
		t.Errorf("EMA stack not bullish: 9=%.2f 21=%.2f 50=%.2f", snap.EMA9, snap.EMA21, snap.EMA50)
	}
	// A uniform slope never pierces the band: the 20-bar middle trails
	// the close by less than the two-sigma half-width.
	if snap.Bollinger.Position != model.BandInside {
		t.Errorf("band position = %s, want inside", snap.Bollinger.Position)
	}
	mt := rec.MultiTrend
	if mt.Short != model.TrendBullish || mt.Medium != model.TrendBullish || mt.Long != model.TrendBullish {
		t.Errorf("expected bullish on all windows, got %+v", mt)
	}
	if rec.Trend != model.TrendBullish {
		t.Errorf("consolidated trend = %s, want bullish", rec.Trend)
	}
	if rec.Signal != model.SignalBuy {
		t.Errorf("signal = %s (score %d), want BUY", rec.Signal, rec.Score)
	}
	// Overbought RSI is the only drag in a uniform uptrend, holding the
	// score under the clamp.
	if rec.Score != 86 {
		t.Errorf("score = %d, want 86", rec.Score)
	}
}

func TestCompute_FallbackChangesFromSeries(t *testing.T) {
	prices := make([]float64, 30)
	for i := range prices {
		prices[i] = 100
	}
	prices[29] = 110 // +10% on the final bar
	q := model.AssetQuote{AssetID: "gapcoin", CurrentPrice: 110, Sparkline: prices}

	rec, err := New(0).Compute(q)
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}
	if math.Abs(rec.Change24h-10) > 1e-9 {
		t.Errorf("derived 24h change = %.4f, want 10", rec.Change24h)
	}
	if math.Abs(rec.Change7d-10) > 1e-9 {
		t.Errorf("derived 7d change = %.4f, want 10", rec.Change7d)
	}
}

func TestCompute_QuoteWithoutSparkline(t *testing.T) {
	q := model.AssetQuote{AssetID: "thin", CurrentPrice: 42, Change24h: 1.5}
	rec, err := New(0).Compute(q)
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}
	if rec.Price != 42 {
		t.Errorf("price = %.2f, want 42", rec.Price)
	}
	if rec.Indicators.RSI != 50 {
		t.Errorf("single-point RSI = %.2f, want neutral 50", rec.Indicators.RSI)
	}
	if rec.Signal != model.SignalNeutral {
		t.Errorf("signal = %s, want NEUTRAL", rec.Signal)
	}
	if rec.Change24h != 1.5 {
		t.Errorf("provider 24h change not preserved: %.2f", rec.Change24h)
	}
}

func TestComputeAll_PreservesOrder(t *testing.T) {
	quotes := make([]model.AssetQuote, 25)
	for i := range quotes {
		q := flatQuote(30)
		q.AssetID = fmt.Sprintf("asset-%02d", i)
		quotes[i] = q
	}

	recs := New(4).ComputeAll(context.Background(), quotes)
	if len(recs) != len(quotes) {
		t.Fatalf("got %d records, want %d", len(recs), len(quotes))
	}
	for i, r := range recs {
		if r.AssetID != quotes[i].AssetID {
			t.Errorf("position %d: got %s, want %s", i, r.AssetID, quotes[i].AssetID)
		}
	}
}

func TestComputeAll_CancelledContextStopsEarly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	quotes := make([]model.AssetQuote, 100)
	for i := range quotes {
		quotes[i] = flatQuote(30)
	}
	recs := New(2).ComputeAll(ctx, quotes)
	if len(recs) == len(quotes) {
		t.Skip("all workers drained before cancellation was observed")
	}
}
