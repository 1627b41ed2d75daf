package marketdata

import (
	"context"
	"log"
	"net/url"
	"strings"
	"time"

	"marketpulse/internal/model"
	"marketpulse/internal/ringbuf"
)

// Poller fetches lightweight spot prices on a short interval and pushes
// them as ticks into the SPSC ring feeding the live price path. The full
// quote fetch (sparkline, volumes) runs on the slower analysis schedule;
// this keeps dashboard prices fresh between cycles.
type Poller struct {
	provider *Provider
	ring     *ringbuf.Ring
	assets   []string
	interval time.Duration

	// OnOverflow reports each dropped tick (for metrics).
	OnOverflow func()
}

// NewPoller creates a price poller. interval <= 0 defaults to 10s.
func NewPoller(provider *Provider, ring *ringbuf.Ring, assets []string, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Poller{
		provider: provider,
		ring:     ring,
		assets:   assets,
		interval: interval,
	}
}

// Run polls until ctx is cancelled. Fetch errors are logged and the next
// tick retries; a flaky provider must not kill the loop.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	log.Printf("[marketdata] poller started: %d assets every %v", len(p.assets), p.interval)

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	prices, err := p.provider.SimplePrices(ctx, p.assets)
	if err != nil {
		log.Printf("[marketdata] price poll error: %v", err)
		return
	}

	now := time.Now().UTC()
	for assetID, price := range prices {
		tk := model.PriceTick{
			AssetID: assetID,
			Point:   model.PricePoint{TS: now, Price: price},
		}
		if !p.ring.Push(tk) && p.OnOverflow != nil {
			p.OnOverflow()
		}
	}
}

// SimplePrices fetches spot prices only, the cheap call used between
// full quote cycles.
func (p *Provider) SimplePrices(ctx context.Context, assetIDs []string) (map[string]float64, error) {
	if len(assetIDs) == 0 {
		return nil, nil
	}

	q := url.Values{}
	q.Set("ids", strings.Join(assetIDs, ","))
	q.Set("vs_currencies", "usd")

	var out map[string]struct {
		USD float64 `json:"usd"`
	}
	if err := p.getJSON(ctx, "/simple/price?"+q.Encode(), &out); err != nil {
		return nil, err
	}

	prices := make(map[string]float64, len(out))
	for id, v := range out {
		prices[id] = v.USD
	}
	return prices, nil
}
