// Package metrics exposes Prometheus instrumentation and health probes
// for the analysis engine.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the signal engine.
type Metrics struct {
	QuotesFetched   prometheus.Counter
	FetchErrors     prometheus.Counter
	FetchDur        prometheus.Histogram
	AnalysisCycles  prometheus.Counter
	AnalysisDur     prometheus.Histogram
	RecordsComputed prometheus.Counter
	SignalsTotal    *prometheus.CounterVec // labels: signal

	RedisWriteDur   prometheus.Histogram
	SQLiteCommitDur prometheus.Histogram

	BusDropsTotal        *prometheus.CounterVec // labels: subscriber
	ChannelSaturationPct *prometheus.GaugeVec   // labels: channel_name
	TickRingOverflow     prometheus.Counter

	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter
	RedisBufferedWrites      prometheus.Counter

	WSClients      prometheus.Gauge
	AlertsSent     *prometheus.CounterVec // labels: backend
	BacktestsRun   prometheus.Counter
	BacktestRunDur prometheus.Histogram
	ScreenQueries  prometheus.Counter
	ExportsServed  prometheus.Counter
}

// New registers and returns all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		QuotesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketpulse_quotes_fetched_total",
			Help: "Total asset quotes fetched from the market-data provider",
		}),
		FetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketpulse_fetch_errors_total",
			Help: "Failed quote fetch attempts",
		}),
		FetchDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "marketpulse_fetch_duration_seconds",
			Help:    "Market-data fetch latency per cycle",
			Buckets: prometheus.DefBuckets,
		}),
		AnalysisCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketpulse_analysis_cycles_total",
			Help: "Completed analysis cycles",
		}),
		AnalysisDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "marketpulse_analysis_duration_seconds",
			Help:    "Full-universe analysis latency per cycle",
			Buckets: prometheus.DefBuckets,
		}),
		RecordsComputed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketpulse_records_computed_total",
			Help: "Signal records computed",
		}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketpulse_signals_total",
			Help: "Signals emitted by type",
		}, []string{"signal"}),

		RedisWriteDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "marketpulse_redis_write_duration_seconds",
			Help:    "Redis pipeline write latency per cycle",
			Buckets: prometheus.DefBuckets,
		}),
		SQLiteCommitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "marketpulse_sqlite_commit_duration_seconds",
			Help:    "SQLite batch commit latency",
			Buckets: prometheus.DefBuckets,
		}),

		BusDropsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketpulse_bus_drops_total",
			Help: "Records dropped by the fan-out bus per subscriber",
		}, []string{"subscriber"}),
		ChannelSaturationPct: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "marketpulse_channel_saturation_pct",
			Help: "Channel fill percentage (len/cap * 100)",
		}, []string{"channel_name"}),
		TickRingOverflow: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketpulse_tick_ring_overflow_total",
			Help: "Live price ticks dropped by the SPSC ring",
		}),

		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marketpulse_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketpulse_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
		RedisBufferedWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketpulse_redis_buffered_writes_total",
			Help: "Records buffered locally during Redis circuit breaker open state",
		}),

		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marketpulse_ws_clients",
			Help: "Currently connected WebSocket clients",
		}),
		AlertsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketpulse_alerts_sent_total",
			Help: "Signal alerts delivered per backend",
		}, []string{"backend"}),
		BacktestsRun: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketpulse_backtests_total",
			Help: "Backtest simulations executed",
		}),
		BacktestRunDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "marketpulse_backtest_duration_seconds",
			Help:    "Backtest simulation latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		ScreenQueries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketpulse_screen_queries_total",
			Help: "Screener queries served",
		}),
		ExportsServed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketpulse_exports_total",
			Help: "CSV exports served",
		}),
	}

	prometheus.MustRegister(
		m.QuotesFetched,
		m.FetchErrors,
		m.FetchDur,
		m.AnalysisCycles,
		m.AnalysisDur,
		m.RecordsComputed,
		m.SignalsTotal,
		m.RedisWriteDur,
		m.SQLiteCommitDur,
		m.BusDropsTotal,
		m.ChannelSaturationPct,
		m.TickRingOverflow,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
		m.RedisBufferedWrites,
		m.WSClients,
		m.AlertsSent,
		m.BacktestsRun,
		m.BacktestRunDur,
		m.ScreenQueries,
		m.ExportsServed,
	)

	return m
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	ProviderOK     bool      `json:"provider_ok"`
	LastFetchTime  time.Time `json:"last_fetch_time"`
	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`
	AssetCount     int       `json:"asset_count"`

	// Liveness probe results
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetProviderOK(v bool) {
	h.mu.Lock()
	h.ProviderOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastFetchTime(t time.Time) {
	h.mu.Lock()
	h.LastFetchTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetAssetCount(n int) {
	h.mu.Lock()
	h.AssetCount = n
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite runs a trivial query and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK

	if !h.ProviderOK || !h.RedisConnected || !h.SQLiteOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if !h.RedisConnected && !h.SQLiteOK {
		overallStatus = "unhealthy"
	}

	fetchAge := ""
	if !h.LastFetchTime.IsZero() {
		fetchAge = time.Since(h.LastFetchTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		ProviderOK      bool    `json:"provider_ok"`
		LastFetchTime   string  `json:"last_fetch_time"`
		FetchAge        string  `json:"fetch_age"`
		AssetCount      int     `json:"asset_count"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		ProviderOK:      h.ProviderOK,
		LastFetchTime:   h.LastFetchTime.Format(time.RFC3339),
		FetchAge:        fetchAge,
		AssetCount:      h.AssetCount,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
