package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tradekit/bandtrack/internal/contracts"
	"github.com/tradekit/bandtrack/pkg/httputil"
	"github.com/tradekit/bandtrack/pkg/logger"
)

// ChartClient fetches candles and quotes from the chart JSON API.
type ChartClient struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	symbol     string
}

// NewChartClient creates a chart API client for one instrument.
func NewChartClient(httpClient *httputil.Client, log *logger.Logger, baseURL, symbol string) *ChartClient {
	return &ChartClient{
		httpClient: httpClient,
		logger:     log,
		baseURL:    baseURL,
		symbol:     symbol,
	}
}

// chartResponse mirrors the chart API JSON envelope.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				RegularMarketTime  int64   `json:"regularMarketTime"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// fetch retrieves and decodes one chart API response.
func (c *ChartClient) fetch(ctx context.Context, interval string, from, to time.Time) (*chartResponse, error) {
	fullURL := fmt.Sprintf(
		"%s/v8/finance/chart/%s?interval=%s&period1=%d&period2=%d",
		c.baseURL, c.symbol, interval, from.Unix(), to.Unix(),
	)

	resp, err := c.httpClient.GetWithHeaders(ctx, fullURL, map[string]string{
		"User-Agent": "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36",
	})
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNoData
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var parsed chartResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse chart response: %w", err)
	}
	if parsed.Chart.Error != nil {
		return nil, fmt.Errorf("chart API error %s: %s", parsed.Chart.Error.Code, parsed.Chart.Error.Description)
	}
	if len(parsed.Chart.Result) == 0 {
		return nil, ErrNoData
	}
	return &parsed, nil
}

// DailyOHLC returns the official daily candle for a date.
func (c *ChartClient) DailyOHLC(ctx context.Context, date time.Time) (*contracts.DailyOHLC, error) {
	day := date.Truncate(24 * time.Hour)
	candles, err := c.DailyHistory(ctx, day, day)
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, ErrNoData
	}
	return candles[0], nil
}

// DailyHistory returns daily candles in [from, to], ascending.
func (c *ChartClient) DailyHistory(ctx context.Context, from, to time.Time) ([]*contracts.DailyOHLC, error) {
	parsed, err := c.fetch(ctx, "1d", from.Truncate(24*time.Hour), to.Truncate(24*time.Hour).Add(24*time.Hour))
	if err != nil {
		return nil, err
	}

	result := parsed.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, ErrNoData
	}
	quote := result.Indicators.Quote[0]

	var candles []*contracts.DailyOHLC
	for i, ts := range result.Timestamp {
		if !complete(quote.Open, quote.High, quote.Low, quote.Close, i) {
			continue // feeds pad incomplete days with nulls
		}
		candle := &contracts.DailyOHLC{
			Date:  time.Unix(ts, 0).UTC().Truncate(24 * time.Hour),
			Open:  *quote.Open[i],
			High:  *quote.High[i],
			Low:   *quote.Low[i],
			Close: *quote.Close[i],
		}
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			candle.Volume = *quote.Volume[i]
		}
		candles = append(candles, candle)
	}

	if len(candles) == 0 {
		return nil, ErrNoData
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol": c.symbol,
		"from":   from.Format(contracts.DateFormat),
		"to":     to.Format(contracts.DateFormat),
		"count":  len(candles),
	}).Debug("Fetched daily history")
	return candles, nil
}

// MinuteBars returns the ascending minute series covering one date.
func (c *ChartClient) MinuteBars(ctx context.Context, date time.Time) ([]contracts.MinuteBar, error) {
	day := date.Truncate(24 * time.Hour)
	parsed, err := c.fetch(ctx, "1m", day, day.Add(24*time.Hour))
	if err != nil {
		return nil, err
	}

	result := parsed.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, ErrNoData
	}
	quote := result.Indicators.Quote[0]

	var bars []contracts.MinuteBar
	for i, ts := range result.Timestamp {
		if !complete(quote.Open, quote.High, quote.Low, quote.Close, i) {
			continue
		}
		bar := contracts.MinuteBar{
			Timestamp: time.Unix(ts, 0).UTC(),
			Open:      *quote.Open[i],
			High:      *quote.High[i],
			Low:       *quote.Low[i],
			Close:     *quote.Close[i],
		}
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			bar.Volume = *quote.Volume[i]
		}
		bars = append(bars, bar)
	}

	if len(bars) == 0 {
		return nil, ErrNoData
	}
	return bars, nil
}

// LastQuote returns the feed's most recent price from the chart meta block.
func (c *ChartClient) LastQuote(ctx context.Context) (*contracts.Quote, error) {
	now := time.Now()
	parsed, err := c.fetch(ctx, "1m", now.Add(-24*time.Hour), now)
	if err != nil {
		return nil, err
	}

	meta := parsed.Chart.Result[0].Meta
	if meta.RegularMarketPrice <= 0 {
		return nil, ErrNoData
	}

	ts := now
	if meta.RegularMarketTime > 0 {
		ts = time.Unix(meta.RegularMarketTime, 0).UTC()
	}
	return &contracts.Quote{
		Price:     meta.RegularMarketPrice,
		Timestamp: ts,
		Source:    "chart",
	}, nil
}

// complete reports whether all four OHLC slices hold a value at index i.
func complete(open, high, low, closeP []*float64, i int) bool {
	if i >= len(open) || i >= len(high) || i >= len(low) || i >= len(closeP) {
		return false
	}
	return open[i] != nil && high[i] != nil && low[i] != nil && closeP[i] != nil
}
