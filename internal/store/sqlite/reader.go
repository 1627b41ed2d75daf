package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"marketpulse/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Reader provides read-only access to SQLite for history queries and
// backtest lookups.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	log.Printf("[sqlite-reader] opened %s", dbPath)
	return &Reader{db: db}, nil
}

// SignalHistory returns up to limit stored records for an asset, oldest
// first, newer than afterTS (unix seconds; 0 = all).
func (r *Reader) SignalHistory(assetID string, afterTS int64, limit int) ([]*model.SignalRecord, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := r.db.Query(`
		SELECT data FROM signals
		WHERE asset_id = ? AND ts > ?
		ORDER BY ts ASC
		LIMIT ?
	`, assetID, afterTS, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query signals: %w", err)
	}
	defer rows.Close()

	var out []*model.SignalRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("sqlite scan signals: %w", err)
		}
		var rec model.SignalRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			continue // skip rows written by an older schema
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// LatestSignal returns the most recent stored record for an asset, or nil
// when the asset has no history.
func (r *Reader) LatestSignal(assetID string) (*model.SignalRecord, error) {
	var data string
	err := r.db.QueryRow(`
		SELECT data FROM signals
		WHERE asset_id = ?
		ORDER BY ts DESC
		LIMIT 1
	`, assetID).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite latest signal: %w", err)
	}

	var rec model.SignalRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("unmarshal signal %s: %w", assetID, err)
	}
	return &rec, nil
}

// PriceHistory returns the stored price sequence for an asset, oldest
// first. Feeds the backtest CLI when no fresh sparkline is available.
func (r *Reader) PriceHistory(assetID string, limit int) ([]model.PricePoint, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := r.db.Query(`
		SELECT ts, price FROM signals
		WHERE asset_id = ?
		ORDER BY ts DESC
		LIMIT ?
	`, assetID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query price history: %w", err)
	}
	defer rows.Close()

	var pts []model.PricePoint
	for rows.Next() {
		var ts int64
		var price float64
		if err := rows.Scan(&ts, &price); err != nil {
			return nil, fmt.Errorf("sqlite scan price history: %w", err)
		}
		pts = append(pts, model.PricePoint{TS: time.Unix(ts, 0).UTC(), Price: price})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to chronological order
	for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
		pts[i], pts[j] = pts[j], pts[i]
	}
	return pts, nil
}

// ReadBacktest returns the stored backtest result for (asset, horizon),
// or nil when none exists.
func (r *Reader) ReadBacktest(assetID string, horizonDays int) (*model.BacktestResult, error) {
	var data string
	err := r.db.QueryRow(`
		SELECT data FROM backtests
		WHERE asset_id = ? AND horizon_days = ?
	`, assetID, horizonDays).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite read backtest: %w", err)
	}

	var res model.BacktestResult
	if err := json.Unmarshal([]byte(data), &res); err != nil {
		return nil, fmt.Errorf("unmarshal backtest %s: %w", assetID, err)
	}
	return &res, nil
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
