package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketpulse/config"
	"marketpulse/internal/analyzer"
	"marketpulse/internal/bus"
	"marketpulse/internal/gateway"
	"marketpulse/internal/logger"
	"marketpulse/internal/marketdata"
	"marketpulse/internal/metrics"
	"marketpulse/internal/model"
	"marketpulse/internal/notification"
	"marketpulse/internal/ringbuf"
	"marketpulse/internal/scheduler"
	redisstore "marketpulse/internal/store/redis"
	"marketpulse/internal/store/sqlite"
)

var processStart = time.Now()

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	configPath := flag.String("config", "config.yaml", "path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[marketpulse] config: %v", err)
	}
	logger.Init("marketpulse", logger.ParseLevel(cfg.LogLevel))
	log.Printf("[marketpulse] starting: %d assets, cycle %q", len(cfg.Assets), cfg.Schedule.AnalysisCron)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	health := metrics.NewHealthStatus()

	// Redis: latest-record cache, leaderboard, pub/sub. Writes go through
	// the circuit breaker so an outage buffers instead of failing cycles.
	store, err := redisstore.New(redisstore.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatalf("[marketpulse] redis: %v", err)
	}
	defer store.Close()

	cb := redisstore.NewCircuitBreaker(5, 30*time.Second)
	cb.OnStateChange = func(from, to redisstore.State) {
		m.RedisCircuitBreakerState.Set(float64(to))
		if to == redisstore.StateOpen {
			m.RedisCircuitBreakerTrips.Inc()
		}
		log.Printf("[marketpulse] redis circuit %s -> %s", from, to)
	}
	buffered := redisstore.NewBufferedStore(ctx, store, cb, 10000)
	buffered.OnBuffer = m.RedisBufferedWrites.Inc

	// SQLite: signal history and backtest persistence.
	writer, err := sqlite.New(sqlite.WriterConfig{DBPath: cfg.Database.SQLitePath})
	if err != nil {
		log.Fatalf("[marketpulse] sqlite: %v", err)
	}
	defer writer.Close()
	reader, err := sqlite.NewReader(cfg.Database.SQLitePath)
	if err != nil {
		log.Fatalf("[marketpulse] sqlite reader: %v", err)
	}
	defer reader.Close()

	health.StartLivenessChecker(ctx, store.Client(), writer.DB(), 15*time.Second)
	metricsSrv := metrics.NewServer(cfg.Server.MetricsAddr, health)
	metricsSrv.Start()
	defer metricsSrv.Stop(context.Background())

	provider := marketdata.New(marketdata.Config{
		BaseURL:    cfg.Provider.BaseURL,
		APIKey:     cfg.Provider.APIKey,
		Favorites:  cfg.Favorites,
		Categories: cfg.Categories,
	})

	// Record bus: analysis cycle in, (gateway, sqlite, alerts) out.
	busIn := make(chan *model.SignalRecord, 256)
	fan := bus.New(256)
	fan.OnDrop = func(idx int) {
		m.BusDropsTotal.WithLabelValues(subscriberName(idx)).Inc()
	}
	hubCh := fan.Subscribe()
	sqliteCh := fan.Subscribe()
	alertCh := fan.Subscribe()
	go fan.Run(ctx, busIn)
	go reportSaturation(ctx, fan, m)

	hub := gateway.NewHub(cfg.Server.ReplaySize)
	hub.OnClientChange = func(n int) { m.WSClients.Set(float64(n)) }
	go hub.Run(ctx, hubCh)

	go writer.Run(ctx, sqliteCh)

	watcher := notification.NewWatcher(buildNotifiers(cfg)...)
	watcher.OnAlert = func(backend string) { m.AlertsSent.WithLabelValues(backend).Inc() }
	go watcher.Run(ctx, alertCh)

	// Live tick path: cheap spot-price polls between analysis cycles.
	ring := ringbuf.New(4096)
	poller := marketdata.NewPoller(provider, ring, cfg.Assets,
		time.Duration(cfg.Schedule.TickPollSeconds)*time.Second)
	poller.OnOverflow = m.TickRingOverflow.Inc
	go poller.Run(ctx)
	go drainTicks(ctx, ring, hub)

	engine := &scheduler.Engine{
		Source:   provider,
		Analyzer: analyzer.New(cfg.Analysis.Workers),
		Assets:   cfg.Assets,
		Out:      busIn,
		Sink:     buffered,
		Metrics:  m,
		Health:   health,
	}
	sched := scheduler.New(ctx, engine, writer)
	sched.Retention = time.Duration(cfg.Analysis.RetentionDays) * 24 * time.Hour
	if err := sched.RegisterAll(cfg.Schedule.AnalysisCron, cfg.Schedule.PruneCron); err != nil {
		log.Fatalf("[marketpulse] scheduler: %v", err)
	}
	go sched.RunCycleNow()
	sched.Start()
	defer sched.Stop()

	mux := http.NewServeMux()
	gateway.RegisterRoutes(mux, hub, gateway.Deps{
		Redis:     store,
		History:   reader,
		SeriesFor: seriesResolver(ctx, provider, reader),
		Metrics:   m,
	}, processStart)

	srv := &http.Server{Addr: cfg.Server.ListenAddr, Handler: mux}
	go func() {
		log.Printf("[marketpulse] listening on %s", cfg.Server.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[marketpulse] http: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("[marketpulse] shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
	cancel()
}

// subscriberName maps fan-out indices to stable metric labels; order
// must match the Subscribe calls above.
func subscriberName(idx int) string {
	switch idx {
	case 0:
		return "gateway"
	case 1:
		return "sqlite"
	case 2:
		return "alerts"
	default:
		return "unknown"
	}
}

// buildNotifiers assembles alert backends from config. Always logs;
// Telegram and webhook attach when configured.
func buildNotifiers(cfg *config.Config) []notification.Notifier {
	notifiers := []notification.Notifier{notification.NewLogNotifier()}
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		notifiers = append(notifiers, notification.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID))
	}
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, notification.NewWebhookNotifier(cfg.WebhookURL))
	}
	return notifiers
}

// reportSaturation samples bus channel fill levels for the saturation
// gauge so a slow subscriber shows up before records start dropping.
func reportSaturation(ctx context.Context, fan *bus.FanOut, m *metrics.Metrics) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for i, st := range fan.ChannelStats() {
				pct := 0.0
				if st.Cap > 0 {
					pct = float64(st.Len) / float64(st.Cap) * 100
				}
				m.ChannelSaturationPct.WithLabelValues(subscriberName(i)).Set(pct)
			}
		}
	}
}

// drainTicks pushes fresh spot prices from the ring into the hub.
func drainTicks(ctx context.Context, ring *ringbuf.Ring, hub *gateway.Hub) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				tk, ok := ring.Pop()
				if !ok {
					break
				}
				hub.UpdatePrice(tk.AssetID, tk.Point.Price)
			}
		}
	}
}

// seriesResolver builds the price series used by on-demand backtests:
// a fresh provider sparkline when reachable, stored history otherwise.
func seriesResolver(ctx context.Context, provider *marketdata.Provider, reader *sqlite.Reader) func(string) (*model.Series, error) {
	return func(assetID string) (*model.Series, error) {
		quotes, err := provider.Quotes(ctx, []string{assetID})
		if err == nil && len(quotes) == 1 && len(quotes[0].Sparkline) > 0 {
			return quotes[0].Series()
		}

		points, err := reader.PriceHistory(assetID, 1000)
		if err != nil {
			return nil, err
		}
		return model.NewSeries(assetID, points)
	}
}
