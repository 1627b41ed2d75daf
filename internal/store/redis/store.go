// Package redis caches the latest signal record per asset, keeps a
// score-ordered leaderboard, and publishes fresh records over Pub/Sub for
// downstream gateways. One analysis cycle is written as a single pipeline
// so readers never observe a half-updated universe.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"marketpulse/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	defaultLatestTTL   = 30 * time.Minute
	defaultBacktestTTL = 6 * time.Hour

	leaderboardKey = "signals:by_score"

	// SignalsChannel carries every fresh record; per-asset channels carry
	// "pub:signal:<asset>".
	SignalsChannel = "pub:signals"
)

// Config configures the Redis store.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Store reads and writes signal records and cached backtest results.
type Store struct {
	client *goredis.Client
}

// Client returns the underlying Redis client for health checks.
func (s *Store) Client() *goredis.Client { return s.client }

// New creates a Store and pings the server.
func New(cfg Config) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Store{client: client}, nil
}

func latestKey(assetID string) string { return "signal:latest:" + assetID }

func assetChannel(assetID string) string { return "pub:signal:" + assetID }

func backtestKey(assetID string, horizonDays int) string {
	return fmt.Sprintf("backtest:%s:%dd", assetID, horizonDays)
}

// WriteRecords writes one analysis cycle in a single pipeline:
// SET latest + ZADD leaderboard + PUBLISH per asset and on the shared
// channel.
func (s *Store) WriteRecords(ctx context.Context, records []*model.SignalRecord) error {
	if len(records) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for _, rec := range records {
		data := string(rec.JSON())
		pipe.Set(ctx, latestKey(rec.AssetID), data, defaultLatestTTL)
		pipe.ZAdd(ctx, leaderboardKey, &goredis.Z{
			Score:  float64(rec.Score),
			Member: rec.AssetID,
		})
		pipe.Publish(ctx, assetChannel(rec.AssetID), data)
		pipe.Publish(ctx, SignalsChannel, data)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis record pipeline (%d records): %w", len(records), err)
	}
	return nil
}

// writeRecord writes a single record, used by the buffered flush path.
func (s *Store) writeRecord(ctx context.Context, rec *model.SignalRecord) error {
	return s.WriteRecords(ctx, []*model.SignalRecord{rec})
}

// ReadRecord returns the cached latest record for one asset, or nil when
// none is cached.
func (s *Store) ReadRecord(ctx context.Context, assetID string) (*model.SignalRecord, error) {
	data, err := s.client.Get(ctx, latestKey(assetID)).Result()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get %s: %w", latestKey(assetID), err)
	}

	var rec model.SignalRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("unmarshal record %s: %w", assetID, err)
	}
	return &rec, nil
}

// ReadTop returns up to n cached records in descending score order,
// resolved through the leaderboard. Assets whose latest entry expired are
// skipped.
func (s *Store) ReadTop(ctx context.Context, n int) ([]*model.SignalRecord, error) {
	ids, err := s.client.ZRevRange(ctx, leaderboardKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrevrange %s: %w", leaderboardKey, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = latestKey(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget latest records: %w", err)
	}

	out := make([]*model.SignalRecord, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var rec model.SignalRecord
		if err := json.Unmarshal([]byte(str), &rec); err != nil {
			continue
		}
		out = append(out, &rec)
	}
	return out, nil
}

// WriteBacktest caches a backtest result. Simulations are deterministic
// for (asset, horizon), so the cache is safe to serve until the series
// itself refreshes.
func (s *Store) WriteBacktest(ctx context.Context, horizonDays int, res *model.BacktestResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal backtest %s: %w", res.AssetID, err)
	}
	return s.client.Set(ctx, backtestKey(res.AssetID, horizonDays), string(data), defaultBacktestTTL).Err()
}

// ReadBacktest returns a cached backtest result, or nil on cache miss.
func (s *Store) ReadBacktest(ctx context.Context, assetID string, horizonDays int) (*model.BacktestResult, error) {
	data, err := s.client.Get(ctx, backtestKey(assetID, horizonDays)).Result()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get backtest %s/%dd: %w", assetID, horizonDays, err)
	}

	var res model.BacktestResult
	if err := json.Unmarshal([]byte(data), &res); err != nil {
		return nil, fmt.Errorf("unmarshal backtest %s: %w", assetID, err)
	}
	return &res, nil
}

// SubscribeSignals subscribes to the shared signal channel. Returns the
// PubSub handle so the caller can listen on .Channel().
func (s *Store) SubscribeSignals(ctx context.Context) *goredis.PubSub {
	pubsub := s.client.Subscribe(ctx, SignalsChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		log.Printf("[redis] subscribe to %s failed: %v", SignalsChannel, err)
		pubsub.Close()
		return nil
	}
	return pubsub
}

// Close closes the Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
