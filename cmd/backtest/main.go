// cmd/backtest runs the deterministic trade simulator against an asset's
// price series and prints the aggregated performance report.
//
// The series comes from the provider's 7-day sparkline by default, or
// from stored SQLite history with --source=db.
//
// Usage:
//
//	go run ./cmd/backtest --asset=bitcoin --horizon=30 --min-confidence=70
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"marketpulse/internal/backtest"
	"marketpulse/internal/marketdata"
	"marketpulse/internal/model"
	sqlitestore "marketpulse/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	// Flags
	asset := flag.String("asset", "bitcoin", "Asset ID to simulate")
	horizon := flag.Int("horizon", 30, "Backtest horizon in days (seeds the generator)")
	seed := flag.Int64("seed", 0, "Seed override (0 = derive from asset and horizon)")
	minConf := flag.Float64("min-confidence", 0, "Drop trades below this confidence")
	direction := flag.String("direction", "", "Restrict to LONG or SHORT trades")
	source := flag.String("source", "provider", "Series source: provider or db")
	dbPath := flag.String("db", "data/signals.db", "Path to SQLite database (for --source=db)")
	baseURL := flag.String("base-url", "", "Provider base URL override")
	csvOut := flag.String("csv", "", "Write the trade ledger to this CSV file")
	flag.Parse()

	dir := model.TradeDirection(strings.ToUpper(*direction))
	if dir != "" && dir != model.DirectionLong && dir != model.DirectionShort {
		log.Fatalf("[backtest] invalid direction %q, want LONG or SHORT", *direction)
	}

	series, err := loadSeries(*source, *asset, *dbPath, *baseURL)
	if err != nil {
		log.Fatalf("[backtest] load series: %v", err)
	}
	log.Printf("[backtest] %s: %d price points (%.2f .. %.2f)",
		*asset, series.Len(), series.First().Price, series.Last().Price)

	cfg := backtest.DefaultConfig(*horizon)
	cfg.Seed = *seed
	sim := backtest.New(series, cfg)
	res := sim.Run(backtest.Filter{MinConfidence: *minConf, Direction: dir})

	printReport(os.Stdout, res, *horizon)

	if *csvOut != "" {
		if err := writeLedgerCSV(*csvOut, res.Trades); err != nil {
			log.Fatalf("[backtest] write csv: %v", err)
		}
		log.Printf("[backtest] ledger written to %s", *csvOut)
	}
}

func loadSeries(source, asset, dbPath, baseURL string) (*model.Series, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch source {
	case "db":
		reader, err := sqlitestore.NewReader(dbPath)
		if err != nil {
			return nil, err
		}
		defer reader.Close()
		points, err := reader.PriceHistory(asset, 1000)
		if err != nil {
			return nil, err
		}
		return model.NewSeries(asset, points)

	case "provider":
		provider := marketdata.New(marketdata.Config{BaseURL: baseURL})
		quotes, err := provider.Quotes(ctx, []string{asset})
		if err != nil {
			return nil, err
		}
		if len(quotes) != 1 {
			return nil, fmt.Errorf("asset %q not found", asset)
		}
		return quotes[0].Series()

	default:
		return nil, fmt.Errorf("unknown source %q, want provider or db", source)
	}
}

func printReport(w io.Writer, res *model.BacktestResult, horizon int) {
	for i, tr := range res.Trades {
		if i >= 10 && i < len(res.Trades)-2 {
			if i == 10 {
				fmt.Fprintf(w, "  ... %d more trades ...\n", len(res.Trades)-12)
			}
			continue
		}
		fmt.Fprintf(w, "  [%s] %-5s bars %3d-%3d  %.2f -> %.2f  %+.2f%% (%s, conf %.0f)\n",
			tr.ID, tr.Direction, tr.EntryIndex, tr.ExitIndex,
			tr.EntryPrice, tr.ExitPrice, tr.PnLPercent, tr.Outcome, tr.Confidence)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "╔══════════════════════════════════════╗")
	fmt.Fprintln(w, "║        BACKTEST COMPLETE             ║")
	fmt.Fprintln(w, "╠══════════════════════════════════════╣")
	fmt.Fprintf(w, "║  Asset:        %-21s ║\n", res.AssetID)
	fmt.Fprintf(w, "║  Horizon:      %-21s ║\n", fmt.Sprintf("%d days", horizon))
	fmt.Fprintf(w, "║  Trades:       %-21d ║\n", res.TotalTrades)
	fmt.Fprintf(w, "║  Wins/Losses:  %-21s ║\n", fmt.Sprintf("%d / %d", res.Wins, res.Losses))
	fmt.Fprintf(w, "║  Win rate:     %-21s ║\n", fmt.Sprintf("%.1f%%", res.WinRate))
	fmt.Fprintf(w, "║  Total P&L:    %-21s ║\n", fmt.Sprintf("%+.2f (%+.2f%%)", res.TotalPnL, res.TotalPnLPercent))
	fmt.Fprintf(w, "║  Avg/trade:    %-21s ║\n", fmt.Sprintf("%+.2f", res.AvgPnLPerTrade))
	// Drawdown is the peak-to-trough drop of strategy value, a currency
	// amount like Total P&L.
	fmt.Fprintf(w, "║  Max drawdown: %-21s ║\n", fmt.Sprintf("%.2f", res.MaxDrawdown))
	fmt.Fprintf(w, "║  Risk/reward:  %-21s ║\n", fmt.Sprintf("%.2f", res.RiskReward))
	fmt.Fprintln(w, "╚══════════════════════════════════════╝")
}

func writeLedgerCSV(path string, trades []model.BacktestTrade) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"id", "direction", "entry_index", "exit_index",
		"entry_price", "exit_price", "pnl_percent", "confidence", "outcome"}); err != nil {
		return err
	}
	for _, tr := range trades {
		rec := []string{
			tr.ID,
			string(tr.Direction),
			strconv.Itoa(tr.EntryIndex),
			strconv.Itoa(tr.ExitIndex),
			strconv.FormatFloat(tr.EntryPrice, 'f', 4, 64),
			strconv.FormatFloat(tr.ExitPrice, 'f', 4, 64),
			strconv.FormatFloat(tr.PnLPercent, 'f', 4, 64),
			strconv.FormatFloat(tr.Confidence, 'f', 1, 64),
			string(tr.Outcome),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return w.Error()
}
