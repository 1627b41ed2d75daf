// Package marketdata fetches per-asset quotes with hourly sparklines from
// the upstream market provider and feeds the live tick path.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"marketpulse/internal/model"
)

const defaultBaseURL = "https://api.coingecko.com/api/v3"

// Provider fetches quotes over the provider's REST markets endpoint.
type Provider struct {
	client  *http.Client
	baseURL string
	apiKey  string

	// Favorites and category overlays applied to fetched quotes; the
	// provider API does not carry either.
	favorites  map[string]bool
	categories map[string]string
}

// Config configures the market-data provider.
type Config struct {
	BaseURL   string // empty = public endpoint
	APIKey    string
	Timeout   time.Duration
	Favorites []string
	// Categories maps asset ID to a display category, e.g. "layer1".
	Categories map[string]string
}

// New creates a provider client.
func New(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	favs := make(map[string]bool, len(cfg.Favorites))
	for _, id := range cfg.Favorites {
		favs[id] = true
	}
	return &Provider{
		client:     &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		favorites:  favs,
		categories: cfg.Categories,
	}
}

// marketRow is the provider's markets response row.
type marketRow struct {
	ID           string  `json:"id"`
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name"`
	CurrentPrice float64 `json:"current_price"`
	MarketCap    float64 `json:"market_cap"`
	TotalVolume  float64 `json:"total_volume"`
	High24h      float64 `json:"high_24h"`
	Low24h       float64 `json:"low_24h"`
	Change24h    float64 `json:"price_change_percentage_24h"`
	Change7d     float64 `json:"price_change_percentage_7d_in_currency"`
	ATH          float64 `json:"ath"`
	ATHChangePct float64 `json:"ath_change_percentage"`
	Sparkline    *struct {
		Price []float64 `json:"price"`
	} `json:"sparkline_in_7d"`
}

// Quotes fetches quotes for the given asset IDs in one markets call.
// Hourly 7-day sparklines are included so the analyzer can build its
// reference series without extra requests.
func (p *Provider) Quotes(ctx context.Context, assetIDs []string) ([]model.AssetQuote, error) {
	if len(assetIDs) == 0 {
		return nil, nil
	}

	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("ids", strings.Join(assetIDs, ","))
	q.Set("sparkline", "true")
	q.Set("price_change_percentage", "24h,7d")
	q.Set("per_page", fmt.Sprintf("%d", len(assetIDs)))

	u := p.baseURL + "/coins/markets?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("markets fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("markets read body: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("markets: rate limited (429)")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("markets: status %d, body: %s", resp.StatusCode, truncate(body, 200))
	}

	var rows []marketRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("markets decode: %w", err)
	}

	now := time.Now().UTC()
	quotes := make([]model.AssetQuote, 0, len(rows))
	for _, row := range rows {
		quote := model.AssetQuote{
			AssetID:      row.ID,
			Name:         row.Name,
			Symbol:       strings.ToUpper(row.Symbol),
			Favorite:     p.favorites[row.ID],
			CurrentPrice: row.CurrentPrice,
			Change24h:    row.Change24h,
			Change7d:     row.Change7d,
			High24h:      row.High24h,
			Low24h:       row.Low24h,
			MarketCap:    row.MarketCap,
			TotalVolume:  row.TotalVolume,
			ATH:          row.ATH,
			ATHChangePct: row.ATHChangePct,
			FetchedAt:    now,
		}
		if p.categories != nil {
			quote.Category = p.categories[row.ID]
		}
		if row.Sparkline != nil {
			quote.Sparkline = row.Sparkline.Price
		}
		quotes = append(quotes, quote)
	}
	return quotes, nil
}

// getJSON performs a GET against the provider and decodes the response.
func (p *Provider) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("provider fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("provider read body: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("provider: rate limited (429)")
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider: status %d, body: %s", resp.StatusCode, truncate(body, 200))
	}
	return json.Unmarshal(body, out)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
