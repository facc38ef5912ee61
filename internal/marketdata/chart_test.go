package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradekit/bandtrack/pkg/config"
	"github.com/tradekit/bandtrack/pkg/httputil"
	"github.com/tradekit/bandtrack/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(&config.Config{LogLevel: "error", LogFormat: "json"})
}

func newTestChartClient(t *testing.T, handler http.HandlerFunc) (*ChartClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	log := testLogger()
	httpClient := httputil.New(log).DisableRetry()
	return NewChartClient(httpClient, log, srv.URL, "SPY"), srv
}

const chartDailyBody = `{
  "chart": {
    "result": [{
      "meta": {"regularMarketPrice": 584.3, "regularMarketTime": 1755288000},
      "timestamp": [1755230400, 1755316800],
      "indicators": {"quote": [{
        "open":   [580.1, 582.0],
        "high":   [585.5, 586.2],
        "low":    [578.9, 581.4],
        "close":  [584.3, 585.0],
        "volume": [41000000, 39000000]
      }]}
    }],
    "error": null
  }
}`

func TestChartClientDailyHistory(t *testing.T) {
	client, _ := newTestChartClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/v8/finance/chart/SPY")
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		fmt.Fprint(w, chartDailyBody)
	})

	from := time.Date(2025, 8, 14, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC)

	candles, err := client.DailyHistory(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, candles, 2)

	assert.Equal(t, 580.1, candles[0].Open)
	assert.Equal(t, 584.3, candles[0].Close)
	assert.Equal(t, int64(41000000), candles[0].Volume)
	assert.True(t, candles[0].Date.Before(candles[1].Date))
}

func TestChartClientSkipsNullPaddedRows(t *testing.T) {
	body := `{
	  "chart": {
	    "result": [{
	      "meta": {},
	      "timestamp": [1755230400, 1755316800],
	      "indicators": {"quote": [{
	        "open":   [580.1, null],
	        "high":   [585.5, null],
	        "low":    [578.9, null],
	        "close":  [584.3, null],
	        "volume": [41000000, null]
	      }]}
	    }],
	    "error": null
	  }
	}`
	client, _ := newTestChartClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	})

	bars, err := client.MinuteBars(context.Background(), time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 584.3, bars[0].Close)
}

func TestChartClientNoData(t *testing.T) {
	t.Run("empty result", func(t *testing.T) {
		client, _ := newTestChartClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"chart": {"result": [], "error": null}}`)
		})
		_, err := client.DailyOHLC(context.Background(), time.Now())
		assert.ErrorIs(t, err, ErrNoData)
	})

	t.Run("not found", func(t *testing.T) {
		client, _ := newTestChartClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		_, err := client.MinuteBars(context.Background(), time.Now())
		assert.ErrorIs(t, err, ErrNoData)
	})

	t.Run("API error payload", func(t *testing.T) {
		client, _ := newTestChartClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"chart": {"result": null, "error": {"code": "Not Found", "description": "No data found"}}}`)
		})
		_, err := client.LastQuote(context.Background())
		assert.Error(t, err)
	})
}

func TestChartClientLastQuote(t *testing.T) {
	client, _ := newTestChartClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chartDailyBody)
	})

	quote, err := client.LastQuote(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 584.3, quote.Price)
	assert.Equal(t, "chart", quote.Source)
	assert.False(t, quote.Timestamp.IsZero())
}
