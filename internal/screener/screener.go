// Package screener filters, ranks and pages computed signal records.
//
// Filtering is pure: predicates AND together over an input snapshot and
// never mutate the records, so one analysis cycle can serve many
// concurrent screen queries.
package screener

import (
	"sort"
	"strings"

	"marketpulse/internal/model"
)

// SortKey selects the ranking applied after filtering.
type SortKey string

const (
	SortByScore     SortKey = "score"
	SortByChange24h SortKey = "change_24h"
	SortByVolume    SortKey = "volume"
	SortByMarketCap SortKey = "market_cap"
	SortByRSI       SortKey = "rsi"
	SortByName      SortKey = "name"
)

// Query is one screen request. Zero-valued fields are inactive; pointer
// fields distinguish "unset" from a legitimate zero bound.
type Query struct {
	RSIMin       *float64
	RSIMax       *float64
	Change24hMin *float64
	Change24hMax *float64
	MinVolRatio  float64
	MinScore     int
	MinMarketCap float64
	Trend        model.TrendLabel // empty = any
	Signal       model.Signal     // empty = any
	Category     string           // empty = any
	OnlyFavorite bool

	Sort       SortKey
	Descending bool
	Offset     int
	Limit      int // <= 0 means no cap
}

// Result is one screen response page.
type Result struct {
	Records []*model.SignalRecord
	Total   int // matches before paging
}

// Screen applies the query to a snapshot of records and returns the
// requested page plus the pre-paging match count.
func Screen(records []*model.SignalRecord, q Query) Result {
	matched := make([]*model.SignalRecord, 0, len(records))
	for _, r := range records {
		if matches(r, q) {
			matched = append(matched, r)
		}
	}

	sortRecords(matched, q.Sort, q.Descending)

	total := len(matched)
	start := q.Offset
	if start < 0 {
		start = 0
	}
	if start > total {
		start = total
	}
	end := total
	if q.Limit > 0 && start+q.Limit < end {
		end = start + q.Limit
	}
	return Result{Records: matched[start:end], Total: total}
}

func matches(r *model.SignalRecord, q Query) bool {
	if q.RSIMin != nil && r.Indicators.RSI < *q.RSIMin {
		return false
	}
	if q.RSIMax != nil && r.Indicators.RSI > *q.RSIMax {
		return false
	}
	if q.Change24hMin != nil && r.Change24h < *q.Change24hMin {
		return false
	}
	if q.Change24hMax != nil && r.Change24h > *q.Change24hMax {
		return false
	}
	if q.MinVolRatio > 0 && r.VolumeRatio < q.MinVolRatio {
		return false
	}
	if q.MinScore > 0 && r.Score < q.MinScore {
		return false
	}
	if q.MinMarketCap > 0 && r.MarketCap < q.MinMarketCap {
		return false
	}
	if q.Trend != "" && r.Trend != q.Trend {
		return false
	}
	if q.Signal != "" && r.Signal != q.Signal {
		return false
	}
	if q.Category != "" && !strings.EqualFold(r.Category, q.Category) {
		return false
	}
	if q.OnlyFavorite && !r.Favorite {
		return false
	}
	return true
}

// sortRecords orders in place. Ties fall back to asset ID so pages are
// stable across identical queries.
func sortRecords(rs []*model.SignalRecord, key SortKey, desc bool) {
	less := lessFunc(key)
	sort.SliceStable(rs, func(i, j int) bool {
		a, b := rs[i], rs[j]
		if desc {
			a, b = b, a
		}
		if less(a, b) {
			return true
		}
		if less(b, a) {
			return false
		}
		return rs[i].AssetID < rs[j].AssetID
	})
}

func lessFunc(key SortKey) func(a, b *model.SignalRecord) bool {
	switch key {
	case SortByChange24h:
		return func(a, b *model.SignalRecord) bool { return a.Change24h < b.Change24h }
	case SortByVolume:
		return func(a, b *model.SignalRecord) bool { return a.Volume < b.Volume }
	case SortByMarketCap:
		return func(a, b *model.SignalRecord) bool { return a.MarketCap < b.MarketCap }
	case SortByRSI:
		return func(a, b *model.SignalRecord) bool { return a.Indicators.RSI < b.Indicators.RSI }
	case SortByName:
		return func(a, b *model.SignalRecord) bool {
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		}
	default:
		return func(a, b *model.SignalRecord) bool { return a.Score < b.Score }
	}
}
