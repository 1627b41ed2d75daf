// Package export renders signal records into flat interchange formats.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"marketpulse/internal/model"
)

// csvHeader is the fixed column set of the screener export.
var csvHeader = []string{
	"Name", "Symbol", "Price", "Change 24h %", "Change 7d %",
	"RSI", "MACD", "EMA", "Bollinger",
	"Score", "Signal", "Trend", "Volume", "Market Cap",
}

// WriteCSV streams the records as CSV. Indicator columns are condensed to
// their qualitative reading; raw values stay in the JSON API.
func WriteCSV(w io.Writer, records []*model.SignalRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.Name,
			r.Symbol,
			formatFloat(r.Price, 6),
			formatFloat(r.Change24h, 2),
			formatFloat(r.Change7d, 2),
			formatFloat(r.Indicators.RSI, 1),
			macdCell(r.Indicators.MACD),
			emaCell(r.Price, r.Indicators),
			bollingerCell(r.Indicators.Bollinger),
			strconv.Itoa(r.Score),
			string(r.Signal),
			string(r.Trend),
			formatFloat(r.Volume, 0),
			formatFloat(r.MarketCap, 0),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row for %s: %w", r.AssetID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

// macdCell reports histogram direction, annotated with a fresh crossover.
func macdCell(m model.MACDResult) string {
	dir := "flat"
	if m.Histogram > 0 {
		dir = "positive"
	} else if m.Histogram < 0 {
		dir = "negative"
	}
	if m.Crossover == model.CrossBullish || m.Crossover == model.CrossBearish {
		return fmt.Sprintf("%s (%s cross)", dir, m.Crossover)
	}
	return dir
}

// emaCell condenses the EMA stack relative to price.
func emaCell(price float64, s model.IndicatorSnapshot) string {
	switch {
	case price > s.EMA9 && s.EMA9 > s.EMA21:
		return "above stack"
	case price < s.EMA9 && s.EMA9 < s.EMA21:
		return "below stack"
	default:
		return "mixed"
	}
}

func bollingerCell(b model.BollingerResult) string {
	cell := string(b.Position)
	if b.Squeeze {
		cell += " (squeeze)"
	}
	return cell
}
