package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/tradekit/bandtrack/internal/contracts"
	"github.com/tradekit/bandtrack/pkg/httputil"
	"github.com/tradekit/bandtrack/pkg/logger"
)

// ScrapeClient pulls the last quote out of the public quote page HTML.
// Used as a fallback when the chart JSON API is refusing requests.
type ScrapeClient struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	symbol     string
}

// NewScrapeClient creates an HTML scrape fallback for one instrument.
func NewScrapeClient(httpClient *httputil.Client, log *logger.Logger, baseURL, symbol string) *ScrapeClient {
	return &ScrapeClient{
		httpClient: httpClient,
		logger:     log,
		baseURL:    baseURL,
		symbol:     symbol,
	}
}

// LastQuote scrapes the quote page for the current price.
func (c *ScrapeClient) LastQuote(ctx context.Context) (*contracts.Quote, error) {
	url := fmt.Sprintf("%s/quote/%s", c.baseURL, c.symbol)

	resp, err := c.httpClient.GetWithHeaders(ctx, url, map[string]string{
		"User-Agent": "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36",
	})
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse quote page: %w", err)
	}

	price, err := c.extractPrice(doc)
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol": c.symbol,
		"price":  price,
	}).Debug("Scraped last quote")

	return &contracts.Quote{
		Price:     price,
		Timestamp: time.Now().UTC(),
		Source:    "scrape",
	}, nil
}

// extractPrice finds the market-price element in the page. The streamer tag
// carries the numeric value as an attribute; older page layouts render it
// as text.
func (c *ScrapeClient) extractPrice(doc *goquery.Document) (float64, error) {
	sel := doc.Find(fmt.Sprintf(`fin-streamer[data-field="regularMarketPrice"][data-symbol=%q]`, c.symbol)).First()
	if sel.Length() == 0 {
		sel = doc.Find(`fin-streamer[data-field="regularMarketPrice"]`).First()
	}
	if sel.Length() == 0 {
		return 0, ErrNoData
	}

	raw, ok := sel.Attr("data-value")
	if !ok || raw == "" {
		raw = strings.TrimSpace(sel.Text())
	}
	raw = strings.ReplaceAll(raw, ",", "")

	price, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse scraped price %q: %w", raw, err)
	}
	return price, nil
}
