package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradekit/bandtrack/pkg/httputil"
)

func newTestScrapeClient(t *testing.T, handler http.HandlerFunc) *ScrapeClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	log := testLogger()
	return NewScrapeClient(httputil.New(log).DisableRetry(), log, srv.URL, "SPY")
}

func TestScrapeClientLastQuote(t *testing.T) {
	t.Run("streamer attribute", func(t *testing.T) {
		client := newTestScrapeClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/quote/SPY", r.URL.Path)
			fmt.Fprint(w, `<html><body>
				<fin-streamer data-field="regularMarketPrice" data-symbol="SPY" data-value="584.31">584.31</fin-streamer>
			</body></html>`)
		})

		quote, err := client.LastQuote(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 584.31, quote.Price)
		assert.Equal(t, "scrape", quote.Source)
	})

	t.Run("text content with thousands separator", func(t *testing.T) {
		client := newTestScrapeClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `<html><body>
				<fin-streamer data-field="regularMarketPrice">1,234.50</fin-streamer>
			</body></html>`)
		})

		quote, err := client.LastQuote(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1234.50, quote.Price)
	})

	t.Run("price element missing", func(t *testing.T) {
		client := newTestScrapeClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `<html><body><p>maintenance</p></body></html>`)
		})

		_, err := client.LastQuote(context.Background())
		assert.ErrorIs(t, err, ErrNoData)
	})

	t.Run("unparseable price", func(t *testing.T) {
		client := newTestScrapeClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `<html><body>
				<fin-streamer data-field="regularMarketPrice">N/A</fin-streamer>
			</body></html>`)
		})

		_, err := client.LastQuote(context.Background())
		assert.Error(t, err)
	})
}
