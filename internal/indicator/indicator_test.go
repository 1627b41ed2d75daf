package indicator

import (
	"math"
	"testing"

	"marketpulse/internal/model"
)

// flatPrices returns n identical prices.
func flatPrices(n int, price float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = price
	}
	return out
}

// rampPrices returns n prices growing by pct percent per bar.
func rampPrices(n int, start, pct float64) []float64 {
	out := make([]float64, n)
	p := start
	for i := range out {
		out[i] = p
		p *= 1 + pct/100
	}
	return out
}

func TestRSI_Bounds(t *testing.T) {
	cases := [][]float64{
		rampPrices(30, 100, 1),
		rampPrices(30, 100, -1),
		{100, 101, 99, 102, 98, 103, 97, 104, 96, 105, 95, 106, 94, 107, 93, 108},
	}
	for i, prices := range cases {
		rsi := RSI(prices, DefaultRSIPeriod)
		if rsi < 0 || rsi > 100 {
			t.Errorf("case %d: RSI %.4f out of [0,100]", i, rsi)
		}
	}
}

func TestRSI_InsufficientHistory(t *testing.T) {
	// Fewer than period+1 points must return the neutral default.
	for n := 0; n <= DefaultRSIPeriod; n++ {
		if got := RSI(rampPrices(n, 100, 2), DefaultRSIPeriod); got != 50 {
			t.Errorf("len=%d: expected RSI=50, got %.4f", n, got)
		}
	}
}

func TestRSI_FlatSeriesIsNeutral(t *testing.T) {
	// avgGain == avgLoss == 0 must resolve to 50, not the avgLoss==0 → 100 branch.
	if got := RSI(flatPrices(30, 250.0), DefaultRSIPeriod); got != 50 {
		t.Errorf("flat series: expected RSI=50, got %.4f", got)
	}
}

func TestRSI_AllGainsIsMaximal(t *testing.T) {
	if got := RSI(rampPrices(20, 100, 1), DefaultRSIPeriod); got != 100 {
		t.Errorf("monotonic gains: expected RSI=100, got %.4f", got)
	}
}

func TestEMA_ConstantSeries(t *testing.T) {
	for _, period := range []int{EMAShortPeriod, EMAMidPeriod, EMALongPeriod} {
		got := EMA(flatPrices(period+10, 42.5), period)
		if math.Abs(got-42.5) > 1e-9 {
			t.Errorf("period=%d: expected EMA=42.5, got %.6f", period, got)
		}
	}
}

func TestEMA_ShortSeriesFallsBackToLastPrice(t *testing.T) {
	prices := []float64{10, 11, 12}
	if got := EMA(prices, 50); got != 12 {
		t.Errorf("expected flat EMA fallback to 12, got %.4f", got)
	}
}

func TestEMA_TracksRecentPrices(t *testing.T) {
	// A rising series keeps the short EMA above the long EMA.
	prices := rampPrices(60, 100, 1)
	ema9 := EMA(prices, EMAShortPeriod)
	ema21 := EMA(prices, EMAMidPeriod)
	ema50 := EMA(prices, EMALongPeriod)
	if !(ema9 > ema21 && ema21 > ema50) {
		t.Errorf("expected EMA9 > EMA21 > EMA50 on rising series, got %.2f / %.2f / %.2f",
			ema9, ema21, ema50)
	}
}

func TestMACD_InsufficientHistory(t *testing.T) {
	res := MACD(rampPrices(minMACDPoints-1, 100, 1))
	if res.Value != 0 || res.Signal != 0 || res.Histogram != 0 {
		t.Errorf("expected zero MACD for short series, got %+v", res)
	}
	if res.Crossover != model.CrossNone {
		t.Errorf("expected crossover=none, got %s", res.Crossover)
	}
}

func TestMACD_RisingSeriesPositiveHistogram(t *testing.T) {
	res := MACD(rampPrices(80, 100, 1))
	if res.Value <= 0 {
		t.Errorf("expected positive MACD line on rising series, got %.6f", res.Value)
	}
	if res.Histogram <= 0 {
		t.Errorf("expected positive histogram on rising series, got %.6f", res.Histogram)
	}
}

func TestMACD_BullishCrossover(t *testing.T) {
	// Flat base, a 5-bar dip, then a sharp rebound: the macd line starts
	// below its signal line and crosses above it inside the 3-bar
	// detection window.
	prices := flatPrices(50, 100)
	p := 100.0
	for i := 0; i < 5; i++ {
		p *= 0.98
		prices = append(prices, p)
	}
	for i := 0; i < 3; i++ {
		p *= 1.05
		prices = append(prices, p)
	}
	res := MACD(prices)
	if res.Crossover != model.CrossBullish {
		t.Errorf("expected bullish crossover, got %s (hist=%.6f)", res.Crossover, res.Histogram)
	}
}

func TestBollinger_BandOrdering(t *testing.T) {
	cases := [][]float64{
		flatPrices(25, 100),
		rampPrices(40, 100, 1),
		rampPrices(40, 100, -0.5),
	}
	for i, prices := range cases {
		b := Bollinger(prices, DefaultBollingerPeriod, DefaultBollingerWidth)
		if !(b.Upper >= b.Middle && b.Middle >= b.Lower) {
			t.Errorf("case %d: band ordering violated: %.4f / %.4f / %.4f", i, b.Upper, b.Middle, b.Lower)
		}
		wantSqueeze := b.Middle != 0 && (b.Upper-b.Lower)/b.Middle < squeezeThreshold
		if b.Squeeze != wantSqueeze {
			t.Errorf("case %d: squeeze=%v, want %v", i, b.Squeeze, wantSqueeze)
		}
	}
}

func TestBollinger_FlatSeriesSqueezes(t *testing.T) {
	b := Bollinger(flatPrices(30, 100), DefaultBollingerPeriod, DefaultBollingerWidth)
	if !b.Squeeze {
		t.Error("expected squeeze=true for flat series")
	}
	if b.Position != model.BandInside {
		t.Errorf("expected position=inside, got %s", b.Position)
	}
}

func TestBollinger_ShortSeriesDegenerates(t *testing.T) {
	b := Bollinger([]float64{10, 12, 11}, DefaultBollingerPeriod, DefaultBollingerWidth)
	if b.Upper != 11 || b.Middle != 11 || b.Lower != 11 {
		t.Errorf("expected degenerate band at 11, got %+v", b)
	}
	if b.Squeeze {
		t.Error("degenerate band must not report a squeeze")
	}
}

func TestBollinger_PositionAboveOnBreakout(t *testing.T) {
	prices := flatPrices(25, 100)
	prices = append(prices, 120) // breakout above a tight band
	b := Bollinger(prices, DefaultBollingerPeriod, DefaultBollingerWidth)
	if b.Position != model.BandAbove {
		t.Errorf("expected position=above, got %s", b.Position)
	}
}

func TestComputeSnapshot_FlatSeries(t *testing.T) {
	s, err := model.SeriesFromPrices("btc", flatPrices(30, 50000))
	if err != nil {
		t.Fatalf("series build failed: %v", err)
	}
	snap := ComputeSnapshot(s)
	if snap.RSI != 50 {
		t.Errorf("expected RSI=50, got %.4f", snap.RSI)
	}
	if snap.EMA9 != 50000 || snap.EMA21 != 50000 {
		t.Errorf("expected flat EMAs at 50000, got %.2f / %.2f", snap.EMA9, snap.EMA21)
	}
	if !snap.Bollinger.Squeeze {
		t.Error("expected bollinger squeeze on flat series")
	}
}
