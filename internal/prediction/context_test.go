package prediction

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradekit/bandtrack/internal/contracts"
)

func TestBuildAsOfLeakageGuard(t *testing.T) {
	day := time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC)

	// A misbehaving feed returns candles at and after the prediction date.
	source := &fakeSource{history: historyFixture(day.AddDate(0, 0, 3), 40)}
	builder := NewContextBuilder(source, 5)

	mc, err := builder.BuildAsOf(context.Background(), day)
	require.NoError(t, err)
	require.NotEmpty(t, mc.History)

	for _, c := range mc.History {
		assert.True(t, c.Date.Before(day),
			"context must only contain data strictly before %s, got %s",
			day.Format(contracts.DateFormat), c.Date.Format(contracts.DateFormat))
	}

	prior := mc.History[len(mc.History)-1]
	assert.Equal(t, prior.Close, mc.AnchorPrice, "anchor is the prior session close")
	assert.Equal(t, prior.Close, mc.PrevClose)
	assert.Greater(t, mc.Volatility, 0.0)
	assert.Greater(t, mc.RecentHigh, mc.RecentLow)
}

func TestBuildAsOfNoHistory(t *testing.T) {
	builder := NewContextBuilder(&fakeSource{}, 5)
	_, err := builder.BuildAsOf(context.Background(), time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC))
	assert.Error(t, err)
}

func TestBuildLiveAnchorsOnQuote(t *testing.T) {
	day := time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC)
	source := &fakeSource{
		history: historyFixture(day.AddDate(0, 0, -1), 40),
		quote:   &contracts.Quote{Price: 591.25, Timestamp: time.Now(), Source: "chart"},
	}

	mc, err := NewContextBuilder(source, 5).BuildLive(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, 591.25, mc.AnchorPrice, "live quote overrides the prior close anchor")
	assert.NotEqual(t, mc.AnchorPrice, mc.PrevClose)
}

func TestBuildLiveFallsBackToPrevClose(t *testing.T) {
	day := time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC)
	source := &fakeSource{history: historyFixture(day.AddDate(0, 0, -1), 40)}

	mc, err := NewContextBuilder(source, 5).BuildLive(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, mc.PrevClose, mc.AnchorPrice)
}

func TestAverageTrueRange(t *testing.T) {
	t.Run("uses close-to-close gaps", func(t *testing.T) {
		d := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
		history := []*contracts.DailyOHLC{
			{Date: d, Open: 100, High: 102, Low: 99, Close: 100},
			// Gap up: true range is high minus previous close, not high minus low.
			{Date: d.AddDate(0, 0, 1), Open: 105, High: 106, Low: 104, Close: 105},
		}
		assert.InDelta(t, 6.0, averageTrueRange(history, 14), 1e-9)
	})

	t.Run("empty history", func(t *testing.T) {
		assert.Equal(t, 0.0, averageTrueRange(nil, 14))
	})
}
