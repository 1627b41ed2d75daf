package trend

import (
	"testing"

	"marketpulse/internal/indicator"
	"marketpulse/internal/model"
)

func seriesFromPct(t *testing.T, n int, pct float64) *model.Series {
	t.Helper()
	prices := make([]float64, n)
	p := 100.0
	for i := range prices {
		prices[i] = p
		p *= 1 + pct/100
	}
	s, err := model.SeriesFromPrices("test", prices)
	if err != nil {
		t.Fatalf("series build failed: %v", err)
	}
	return s
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		pct  float64
		want model.TrendLabel
	}{
		{"rising", 0.5, model.TrendBullish},
		{"falling", -0.5, model.TrendBearish},
		{"flat", 0, model.TrendNeutral},
	}
	for _, tc := range cases {
		s := seriesFromPct(t, 30, tc.pct)
		if got := Classify(s, WindowShort); got != tc.want {
			t.Errorf("%s: got %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestClassify_TinyMoveIsNeutral(t *testing.T) {
	// +0.5% over the whole window sits inside the ±1% neutral zone.
	s, err := model.SeriesFromPrices("test", []float64{100, 100.2, 100.5})
	if err != nil {
		t.Fatal(err)
	}
	if got := Classify(s, WindowShort); got != model.TrendNeutral {
		t.Errorf("got %s, want neutral", got)
	}
}

func TestClassify_InsufficientHistory(t *testing.T) {
	s, err := model.SeriesFromPrices("test", []float64{100, 150})
	if err != nil {
		t.Fatal(err)
	}
	if got := Classify(s, WindowShort); got != model.TrendNeutral {
		t.Errorf("2-point series: got %s, want neutral", got)
	}
}

func TestMultiTimeframe_AllBullishOnSteadyRise(t *testing.T) {
	s := seriesFromPct(t, 200, 1)
	mt := MultiTimeframe(s)
	if mt.Short != model.TrendBullish || mt.Medium != model.TrendBullish || mt.Long != model.TrendBullish {
		t.Errorf("expected bullish on all windows, got %+v", mt)
	}
}

func TestConsolidated_EMABiasBreaksNeutral(t *testing.T) {
	// Window change is neutral but price sits above both EMAs.
	s := seriesFromPct(t, 30, 0)
	snap := model.IndicatorSnapshot{EMA9: 90, EMA21: 85}
	if got := Consolidated(s, snap); got != model.TrendBullish {
		t.Errorf("got %s, want bullish", got)
	}
	snap = model.IndicatorSnapshot{EMA9: 110, EMA21: 120}
	if got := Consolidated(s, snap); got != model.TrendBearish {
		t.Errorf("got %s, want bearish", got)
	}
}

func TestConsolidated_AgreesWithIndicators(t *testing.T) {
	s := seriesFromPct(t, 60, 1)
	snap := indicator.ComputeSnapshot(s)
	if got := Consolidated(s, snap); got != model.TrendBullish {
		t.Errorf("rising series: got %s, want bullish", got)
	}
}
