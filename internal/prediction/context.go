package prediction

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/tradekit/bandtrack/internal/contracts"
	"github.com/tradekit/bandtrack/internal/marketdata"
)

const (
	atrPeriod          = 14
	historyFetchWindow = 60 // calendar days fetched to cover the ATR period
)

// SentimentContext is the optional cross-asset sentiment block.
type SentimentContext struct {
	Score   float64 `json:"score"`
	Summary string  `json:"summary,omitempty"`
}

// ModelContext is the typed payload handed to a predictor. Every field is
// enumerated here; nothing is assembled ad hoc at the call site.
type ModelContext struct {
	Date        time.Time              `json:"date"`
	AnchorPrice float64                `json:"anchor_price"`
	PrevClose   float64                `json:"prev_close"`
	History     []*contracts.DailyOHLC `json:"history"`
	RecentHigh  float64                `json:"recent_high"`
	RecentLow   float64                `json:"recent_low"`
	Volatility  float64                `json:"volatility"`
	Sentiment   *SentimentContext      `json:"sentiment,omitempty"`
}

// ContextBuilder assembles ModelContext records from the market data source.
type ContextBuilder struct {
	source       marketdata.Source
	lookbackDays int
}

// NewContextBuilder creates a context builder. lookbackDays bounds the
// recent high/low window.
func NewContextBuilder(source marketdata.Source, lookbackDays int) *ContextBuilder {
	if lookbackDays <= 0 {
		lookbackDays = 5
	}
	return &ContextBuilder{source: source, lookbackDays: lookbackDays}
}

// BuildLive assembles context for predicting date using everything known
// now, anchored on the live quote when one is available.
func (b *ContextBuilder) BuildLive(ctx context.Context, date time.Time) (*ModelContext, error) {
	mc, err := b.BuildAsOf(ctx, date)
	if err != nil {
		return nil, err
	}

	if quote, qErr := b.source.LastQuote(ctx); qErr == nil && quote.Price > 0 {
		mc.AnchorPrice = quote.Price
	}
	return mc, nil
}

// BuildAsOf assembles context as it would have looked at the start of date:
// every source timestamp is strictly before date, and the anchor is the
// prior session's close. Same-day data in this path is a correctness
// defect, not a tunable.
func (b *ContextBuilder) BuildAsOf(ctx context.Context, date time.Time) (*ModelContext, error) {
	day := date.Truncate(24 * time.Hour)
	from := day.AddDate(0, 0, -historyFetchWindow)

	history, err := b.source.DailyHistory(ctx, from, day.AddDate(0, 0, -1))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch price history: %w", err)
	}

	// The upper bound is exclusive: drop anything the feed returned at or
	// after the prediction date.
	filtered := history[:0]
	for _, c := range history {
		if c.Date.Before(day) {
			filtered = append(filtered, c)
		}
	}
	if len(filtered) == 0 {
		return nil, marketdata.ErrNoData
	}

	prevClose := filtered[len(filtered)-1].Close

	mc := &ModelContext{
		Date:        day,
		AnchorPrice: prevClose,
		PrevClose:   prevClose,
		History:     filtered,
		Volatility:  averageTrueRange(filtered, atrPeriod),
	}
	mc.RecentHigh, mc.RecentLow = recentRange(filtered, b.lookbackDays)
	return mc, nil
}

// averageTrueRange computes the ATR over the trailing period. Falls back to
// a plain high-low average when there are too few candles for true ranges.
func averageTrueRange(history []*contracts.DailyOHLC, period int) float64 {
	if len(history) == 0 {
		return 0
	}
	if len(history) < 2 {
		return history[0].High - history[0].Low
	}

	start := len(history) - period
	if start < 1 {
		start = 1
	}

	sum := 0.0
	count := 0
	for i := start; i < len(history); i++ {
		prevClose := history[i-1].Close
		tr := math.Max(history[i].High-history[i].Low,
			math.Max(math.Abs(history[i].High-prevClose), math.Abs(history[i].Low-prevClose)))
		sum += tr
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// recentRange returns the high/low over the trailing lookback candles.
func recentRange(history []*contracts.DailyOHLC, lookback int) (high, low float64) {
	start := len(history) - lookback
	if start < 0 {
		start = 0
	}
	for i := start; i < len(history); i++ {
		if high == 0 || history[i].High > high {
			high = history[i].High
		}
		if low == 0 || history[i].Low < low {
			low = history[i].Low
		}
	}
	return high, low
}
