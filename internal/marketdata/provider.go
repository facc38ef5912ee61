package marketdata

import (
	"context"
	"time"

	"github.com/tradekit/bandtrack/internal/contracts"
	"github.com/tradekit/bandtrack/pkg/logger"
	"github.com/tradekit/bandtrack/pkg/redis"
)

// QuoteFetcher is the narrow interface shared by the chart client and the
// scrape fallback.
type QuoteFetcher interface {
	LastQuote(ctx context.Context) (*contracts.Quote, error)
}

// Provider is the production Source: chart API first, scrape fallback for
// quotes, with an injected TTL cache in front of the last quote. The cache
// is explicit state owned here, not a process-wide global.
type Provider struct {
	chart    *ChartClient
	fallback QuoteFetcher
	cache    *redis.Cache
	symbol   string
	quoteTTL time.Duration
	logger   *logger.Logger
}

// NewProvider assembles the market data source. fallback may be nil.
func NewProvider(chart *ChartClient, fallback QuoteFetcher, cache *redis.Cache, symbol string, quoteTTL time.Duration, log *logger.Logger) *Provider {
	return &Provider{
		chart:    chart,
		fallback: fallback,
		cache:    cache,
		symbol:   symbol,
		quoteTTL: quoteTTL,
		logger:   log,
	}
}

func (p *Provider) DailyOHLC(ctx context.Context, date time.Time) (*contracts.DailyOHLC, error) {
	return p.chart.DailyOHLC(ctx, date)
}

func (p *Provider) DailyHistory(ctx context.Context, from, to time.Time) ([]*contracts.DailyOHLC, error) {
	return p.chart.DailyHistory(ctx, from, to)
}

func (p *Provider) MinuteBars(ctx context.Context, date time.Time) ([]contracts.MinuteBar, error) {
	return p.chart.MinuteBars(ctx, date)
}

// LastQuote serves from the TTL cache when fresh, then the chart API, then
// the scrape fallback. Successful fetches refill the cache.
func (p *Provider) LastQuote(ctx context.Context) (*contracts.Quote, error) {
	key := redis.QuoteKey(p.symbol)

	var cached contracts.Quote
	if found, err := p.cache.Get(ctx, key, &cached); err == nil && found {
		return &cached, nil
	}

	quote, err := p.chart.LastQuote(ctx)
	if err != nil && p.fallback != nil {
		p.logger.WithError(err).Warn("Chart quote failed, trying scrape fallback")
		quote, err = p.fallback.LastQuote(ctx)
	}
	if err != nil {
		return nil, err
	}

	if cacheErr := p.cache.Set(ctx, key, quote, p.quoteTTL); cacheErr != nil {
		p.logger.WithError(cacheErr).Warn("Failed to cache quote")
	}
	return quote, nil
}
