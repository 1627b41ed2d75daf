package screener

import (
	"testing"

	"marketpulse/internal/model"
)

func f(v float64) *float64 { return &v }

func fixture() []*model.SignalRecord {
	return []*model.SignalRecord{
		{
			AssetID: "btc", Name: "Bitcoin", Category: "layer1", Favorite: true,
			Score: 72, Signal: model.SignalBuy, Trend: model.TrendBullish,
			Change24h: 4.2, MarketCap: 9e11, Volume: 3e10, VolumeRatio: 0.033,
			Indicators: model.IndicatorSnapshot{RSI: 61},
		},
		{
			AssetID: "eth", Name: "Ethereum", Category: "layer1",
			Score: 55, Signal: model.SignalNeutral, Trend: model.TrendNeutral,
			Change24h: -1.1, MarketCap: 4e11, Volume: 1.5e10, VolumeRatio: 0.0375,
			Indicators: model.IndicatorSnapshot{RSI: 48},
		},
		{
			AssetID: "doge", Name: "Dogecoin", Category: "meme",
			Score: 28, Signal: model.SignalSell, Trend: model.TrendBearish,
			Change24h: -8.3, MarketCap: 1e10, Volume: 8e8, VolumeRatio: 0.08,
			Indicators: model.IndicatorSnapshot{RSI: 24},
		},
		{
			AssetID: "sol", Name: "Solana", Category: "layer1", Favorite: true,
			Score: 68, Signal: model.SignalBuy, Trend: model.TrendBullish,
			Change24h: 6.9, MarketCap: 7e10, Volume: 4e9, VolumeRatio: 0.057,
			Indicators: model.IndicatorSnapshot{RSI: 69},
		},
	}
}

func ids(rs []*model.SignalRecord) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.AssetID
	}
	return out
}

func TestScreen_EmptyQueryKeepsEverything(t *testing.T) {
	res := Screen(fixture(), Query{})
	if res.Total != 4 || len(res.Records) != 4 {
		t.Fatalf("empty query must pass all records, got total=%d page=%d", res.Total, len(res.Records))
	}
}

func TestScreen_PredicatesCombineWithAnd(t *testing.T) {
	// Bullish + BUY alone matches btc and sol; adding an RSI ceiling of 65
	// must narrow it to btc only.
	res := Screen(fixture(), Query{
		Trend:  model.TrendBullish,
		Signal: model.SignalBuy,
		RSIMax: f(65),
	})
	if res.Total != 1 || res.Records[0].AssetID != "btc" {
		t.Fatalf("got %v, want [btc]", ids(res.Records))
	}
}

func TestScreen_RSIRange(t *testing.T) {
	res := Screen(fixture(), Query{RSIMin: f(20), RSIMax: f(50)})
	got := ids(res.Records)
	if len(got) != 2 {
		t.Fatalf("got %v, want eth and doge", got)
	}
}

func TestScreen_ZeroBoundIsHonored(t *testing.T) {
	// An explicit Change24hMin of 0 is a real bound, not "unset".
	res := Screen(fixture(), Query{Change24hMin: f(0)})
	for _, r := range res.Records {
		if r.Change24h < 0 {
			t.Errorf("record %s with negative 24h change passed a >=0 filter", r.AssetID)
		}
	}
	if res.Total != 2 {
		t.Errorf("total = %d, want 2", res.Total)
	}
}

func TestScreen_CategoryAndFavorites(t *testing.T) {
	res := Screen(fixture(), Query{Category: "Layer1", OnlyFavorite: true})
	got := ids(res.Records)
	if len(got) != 2 {
		t.Fatalf("got %v, want btc and sol", got)
	}
}

func TestScreen_SortByScoreDescending(t *testing.T) {
	res := Screen(fixture(), Query{Sort: SortByScore, Descending: true})
	got := ids(res.Records)
	want := []string{"btc", "sol", "eth", "doge"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestScreen_Pagination(t *testing.T) {
	q := Query{Sort: SortByScore, Descending: true, Limit: 2}
	page1 := Screen(fixture(), q)
	if page1.Total != 4 {
		t.Errorf("total = %d, want 4 (pre-paging count)", page1.Total)
	}
	if len(page1.Records) != 2 || page1.Records[0].AssetID != "btc" {
		t.Fatalf("page 1 = %v", ids(page1.Records))
	}

	q.Offset = 2
	page2 := Screen(fixture(), q)
	if len(page2.Records) != 2 || page2.Records[0].AssetID != "eth" {
		t.Fatalf("page 2 = %v", ids(page2.Records))
	}

	q.Offset = 10
	empty := Screen(fixture(), q)
	if len(empty.Records) != 0 {
		t.Errorf("offset beyond the result set must return an empty page, got %v", ids(empty.Records))
	}
}

func TestScreen_DoesNotMutateInput(t *testing.T) {
	in := fixture()
	first := in[0].AssetID
	Screen(in, Query{Sort: SortByName, Descending: true})
	// The filtered slice is sorted, not the caller's slice.
	if in[0].AssetID != first {
		t.Error("input slice order changed")
	}
}
