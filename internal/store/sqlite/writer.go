// Package sqlite persists signal history and backtest results. Signals
// are appended by a single writer goroutine with transaction batching;
// the full record JSON travels alongside the indexed columns so history
// queries can rehydrate complete records.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"marketpulse/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/signals.db"
}

// Writer is a single-goroutine SQLite writer with transaction batching.
type Writer struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New creates a new SQLite Writer, initializes the database with WAL mode and schema.
func New(cfg WriterConfig) (*Writer, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Set connection pool for single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Writer{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS signals (
			asset_id  TEXT    NOT NULL,
			ts        INTEGER NOT NULL,
			score     INTEGER NOT NULL,
			signal    TEXT    NOT NULL,
			trend     TEXT    NOT NULL,
			price     REAL    NOT NULL,
			data      TEXT    NOT NULL,
			PRIMARY KEY (asset_id, ts)
		);

		CREATE INDEX IF NOT EXISTS idx_signals_ts ON signals (ts);

		CREATE TABLE IF NOT EXISTS backtests (
			asset_id     TEXT    NOT NULL,
			horizon_days INTEGER NOT NULL,
			created_at   INTEGER NOT NULL,
			data         TEXT    NOT NULL,
			PRIMARY KEY (asset_id, horizon_days)
		);
	`)
	return err
}

// Run reads signal records from recordCh and inserts them in batched
// transactions. Flushes every batchSize records OR every flushDelay,
// whichever first. Blocks until ctx is cancelled or recordCh is closed.
func (w *Writer) Run(ctx context.Context, recordCh <-chan *model.SignalRecord) {
	batch := make([]*model.SignalRecord, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		if err := w.insertBatch(batch); err != nil {
			log.Printf("[sqlite] batch insert error: %v", err)
		} else {
			log.Printf("[sqlite] committed %d signals in %v", len(batch), time.Since(start))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case rec, ok := <-recordCh:
			if !ok {
				flush()
				return
			}
			batch = append(batch, rec)
			if len(batch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

// insertBatch inserts a batch of signal records in a single transaction.
func (w *Writer) insertBatch(records []*model.SignalRecord) error {
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO signals (asset_id, ts, score, signal, trend, price, data)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		_, err := stmt.Exec(rec.AssetID, rec.ComputedAt.Unix(), rec.Score,
			string(rec.Signal), string(rec.Trend), rec.Price, string(rec.JSON()))
		if err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// SaveBacktest upserts the latest backtest result for (asset, horizon).
func (w *Writer) SaveBacktest(horizonDays int, res *model.BacktestResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal backtest: %w", err)
	}

	_, err = w.db.Exec(`
		INSERT OR REPLACE INTO backtests (asset_id, horizon_days, created_at, data)
		VALUES (?, ?, ?, ?)
	`, res.AssetID, horizonDays, time.Now().Unix(), string(data))
	if err != nil {
		return fmt.Errorf("sqlite insert backtest: %w", err)
	}
	return nil
}

// PruneSignals removes signal rows older than the retention window.
func (w *Writer) PruneSignals(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).Unix()
	res, err := w.db.Exec(`DELETE FROM signals WHERE ts < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sqlite prune signals: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// GetLastTimestamp returns the last stored signal timestamp for an asset.
// Returns 0 if no signals exist.
func (w *Writer) GetLastTimestamp(assetID string) (int64, error) {
	var ts sql.NullInt64
	err := w.db.QueryRow(
		`SELECT MAX(ts) FROM signals WHERE asset_id = ?`, assetID,
	).Scan(&ts)
	if err != nil {
		return 0, err
	}
	if !ts.Valid {
		return 0, nil
	}
	return ts.Int64, nil
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
