package gateway

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"marketpulse/internal/backtest"
	"marketpulse/internal/export"
	"marketpulse/internal/metrics"
	"marketpulse/internal/model"
	"marketpulse/internal/screener"
	"marketpulse/internal/store/redis"
	"marketpulse/internal/store/sqlite"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// Deps carries the optional backends the REST surface reads from.
// Redis and History may be nil; endpoints degrade to hub-only data.
type Deps struct {
	Redis   *redis.Store
	History *sqlite.Reader

	// SeriesFor resolves a price series for backtests. Required for
	// /api/backtest; when nil the endpoint returns 503.
	SeriesFor func(assetID string) (*model.Series, error)

	// DefaultHorizonDays applies when the request omits "horizon".
	DefaultHorizonDays int

	// Metrics is optional; nil disables request counters.
	Metrics *metrics.Metrics
}

// RegisterRoutes registers all HTTP routes on the provided mux.
func RegisterRoutes(mux *http.ServeMux, hub *Hub, deps Deps, processStart time.Time) {
	if deps.DefaultHorizonDays <= 0 {
		deps.DefaultHorizonDays = 30
	}

	// WebSocket endpoint. last_seq lets a reconnecting client backfill
	// from the replay buffer instead of receiving a full snapshot.
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[gateway] ws upgrade error: %v", err)
			return
		}
		lastSeq, _ := strconv.ParseInt(r.URL.Query().Get("last_seq"), 10, 64)
		hub.HandleWSRequest(conn, lastSeq)
	})

	// REST: latest records, all assets or one
	mux.HandleFunc("/api/signals", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.Header().Set("Content-Type", "application/json")

		if assetID := r.URL.Query().Get("asset"); assetID != "" {
			rec := hub.Record(assetID)
			if rec == nil && deps.Redis != nil {
				rec, _ = deps.Redis.ReadRecord(r.Context(), assetID)
			}
			if rec == nil {
				http.Error(w, `{"error":"unknown asset"}`, http.StatusNotFound)
				return
			}
			json.NewEncoder(w).Encode(rec)
			return
		}

		json.NewEncoder(w).Encode(hub.Records())
	})

	// REST: stored signal history for one asset
	mux.HandleFunc("/api/signals/history", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.Header().Set("Content-Type", "application/json")

		if deps.History == nil {
			http.Error(w, `{"error":"history store unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		assetID := r.URL.Query().Get("asset")
		if assetID == "" {
			http.Error(w, `{"error":"asset is required"}`, http.StatusBadRequest)
			return
		}
		afterTS, _ := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		recs, err := deps.History.SignalHistory(assetID, afterTS, limit)
		if err != nil {
			log.Printf("[gateway] history query error: %v", err)
			http.Error(w, `{"error":"history query failed"}`, http.StatusInternalServerError)
			return
		}
		if recs == nil {
			recs = []*model.SignalRecord{}
		}
		json.NewEncoder(w).Encode(recs)
	})

	// REST: screener over the current snapshot
	mux.HandleFunc("/api/screen", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.Header().Set("Content-Type", "application/json")

		if deps.Metrics != nil {
			deps.Metrics.ScreenQueries.Inc()
		}
		q := parseScreenQuery(r)
		res := screener.Screen(hub.Records(), q)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"total":   res.Total,
			"records": res.Records,
		})
	})

	// REST: CSV export of the (optionally screened) current snapshot
	mux.HandleFunc("/api/export.csv", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="signals.csv"`)

		if deps.Metrics != nil {
			deps.Metrics.ExportsServed.Inc()
		}
		res := screener.Screen(hub.Records(), parseScreenQuery(r))
		if err := export.WriteCSV(w, res.Records); err != nil {
			log.Printf("[gateway] csv export error: %v", err)
		}
	})

	// REST: deterministic backtest, cached in Redis then SQLite
	mux.HandleFunc("/api/backtest", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.Header().Set("Content-Type", "application/json")

		assetID := r.URL.Query().Get("asset")
		if assetID == "" {
			http.Error(w, `{"error":"asset is required"}`, http.StatusBadRequest)
			return
		}
		horizon, _ := strconv.Atoi(r.URL.Query().Get("horizon"))
		if horizon <= 0 {
			horizon = deps.DefaultHorizonDays
		}
		minConf, _ := strconv.ParseFloat(r.URL.Query().Get("min_confidence"), 64)
		direction := model.TradeDirection(strings.ToUpper(r.URL.Query().Get("direction")))
		if direction != "" && direction != model.DirectionLong && direction != model.DirectionShort {
			http.Error(w, `{"error":"direction must be LONG or SHORT"}`, http.StatusBadRequest)
			return
		}

		// Filtered runs are cheap but not cacheable under a shared key;
		// only the unfiltered result goes through the caches.
		unfiltered := minConf == 0 && direction == ""
		if unfiltered {
			if res := readCachedBacktest(r.Context(), deps, assetID, horizon); res != nil {
				json.NewEncoder(w).Encode(res)
				return
			}
		}

		if deps.SeriesFor == nil {
			http.Error(w, `{"error":"backtest unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		series, err := deps.SeriesFor(assetID)
		if err != nil {
			log.Printf("[gateway] backtest series error for %s: %v", assetID, err)
			http.Error(w, `{"error":"price series unavailable"}`, http.StatusNotFound)
			return
		}

		runStart := time.Now()
		sim := backtest.New(series, backtest.DefaultConfig(horizon))
		res := sim.Run(backtest.Filter{MinConfidence: minConf, Direction: direction})
		if deps.Metrics != nil {
			deps.Metrics.BacktestsRun.Inc()
			deps.Metrics.BacktestRunDur.Observe(time.Since(runStart).Seconds())
		}

		if unfiltered && deps.Redis != nil {
			if err := deps.Redis.WriteBacktest(r.Context(), horizon, res); err != nil {
				log.Printf("[gateway] backtest cache write error: %v", err)
			}
		}
		json.NewEncoder(w).Encode(res)
	})

	// REST: replay buffer backfill for WS clients that detected a seq gap
	mux.HandleFunc("/api/missed", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.Header().Set("Content-Type", "application/json")

		from, _ := strconv.ParseInt(r.URL.Query().Get("from"), 10, 64)
		to, _ := strconv.ParseInt(r.URL.Query().Get("to"), 10, 64)
		if to == 0 {
			to = hub.CurrentSeq()
		}

		envelopes := hub.GetReplayRange(from, to)
		w.Write([]byte(`{"envelopes":[`))
		for i, env := range envelopes {
			if i > 0 {
				w.Write([]byte{','})
			}
			w.Write(env)
		}
		w.Write([]byte(`]}`))
	})

	// REST: liveness with basic stream stats
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "ok",
			"uptime":  time.Since(processStart).String(),
			"clients": hub.ClientCount(),
			"assets":  len(hub.Records()),
			"seq":     hub.CurrentSeq(),
		})
	})
}

// readCachedBacktest checks Redis first, then SQLite. Results are
// deterministic for a given (asset, horizon) so staleness only matters
// when the stored series has moved on; TTL and the daily refresh handle
// that.
func readCachedBacktest(ctx context.Context, deps Deps, assetID string, horizon int) *model.BacktestResult {
	if deps.Redis != nil {
		if res, err := deps.Redis.ReadBacktest(ctx, assetID, horizon); err == nil && res != nil {
			return res
		}
	}
	if deps.History != nil {
		if res, err := deps.History.ReadBacktest(assetID, horizon); err == nil && res != nil {
			return res
		}
	}
	return nil
}

// parseScreenQuery maps URL query params onto a screener query.
func parseScreenQuery(r *http.Request) screener.Query {
	var q screener.Query
	get := r.URL.Query().Get

	q.RSIMin = parseFloatPtr(get("rsi_min"))
	q.RSIMax = parseFloatPtr(get("rsi_max"))
	q.Change24hMin = parseFloatPtr(get("change_24h_min"))
	q.Change24hMax = parseFloatPtr(get("change_24h_max"))
	q.MinVolRatio, _ = strconv.ParseFloat(get("min_vol_ratio"), 64)
	q.MinScore, _ = strconv.Atoi(get("min_score"))
	q.MinMarketCap, _ = strconv.ParseFloat(get("min_market_cap"), 64)
	q.Trend = model.TrendLabel(get("trend"))
	q.Signal = model.Signal(strings.ToUpper(get("signal")))
	q.Category = get("category")
	q.OnlyFavorite = get("favorites") == "true"

	q.Sort = screener.SortKey(get("sort"))
	if q.Sort == "" {
		q.Sort = screener.SortByScore
	}
	q.Descending = get("order") != "asc"
	q.Offset, _ = strconv.Atoi(get("offset"))
	q.Limit, _ = strconv.Atoi(get("limit"))
	return q
}

func parseFloatPtr(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
