package checkpoint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradekit/bandtrack/internal/contracts"
)

func bar(ts time.Time, open, close float64) contracts.MinuteBar {
	return contracts.MinuteBar{
		Timestamp: ts,
		Open:      open,
		High:      close + 0.5,
		Low:       open - 0.5,
		Close:     close,
		Volume:    1000,
	}
}

func TestSelectBarPolicyOrder(t *testing.T) {
	target := time.Date(2025, 8, 15, 12, 0, 0, 0, time.UTC)

	t.Run("exact match wins", func(t *testing.T) {
		bars := []contracts.MinuteBar{
			bar(target.Add(-time.Minute), 580, 580.5),
			bar(target, 581, 581.5),
			bar(target.Add(time.Minute), 582, 582.5),
		}
		got, err := SelectBar(bars, target, contracts.CheckpointNoon)
		require.NoError(t, err)
		assert.True(t, got.Timestamp.Equal(target))
	})

	t.Run("gap at target selects next minute", func(t *testing.T) {
		// Bars at T-1 and T+1 but not T: non-close checkpoints absorb the
		// one-minute provider skew forward.
		bars := []contracts.MinuteBar{
			bar(target.Add(-time.Minute), 580, 580.5),
			bar(target.Add(time.Minute), 582, 582.5),
		}
		got, err := SelectBar(bars, target, contracts.CheckpointNoon)
		require.NoError(t, err)
		assert.True(t, got.Timestamp.Equal(target.Add(time.Minute)))
	})

	t.Run("no exact or next falls back to last before", func(t *testing.T) {
		bars := []contracts.MinuteBar{
			bar(target.Add(-3*time.Minute), 580, 580.5),
			bar(target.Add(-2*time.Minute), 581, 581.2),
		}
		got, err := SelectBar(bars, target, contracts.CheckpointNoon)
		require.NoError(t, err)
		assert.True(t, got.Timestamp.Equal(target.Add(-2*time.Minute)))
	})
}

func TestSelectBarClose(t *testing.T) {
	nominal := time.Date(2025, 8, 15, 16, 0, 0, 0, time.UTC)

	t.Run("closing print labeled one minute early", func(t *testing.T) {
		bars := []contracts.MinuteBar{
			bar(nominal.Add(-2*time.Minute), 584, 584.2),
			bar(nominal.Add(-time.Minute), 584.2, 584.8),
		}
		got, err := SelectBar(bars, nominal, contracts.CheckpointClose)
		require.NoError(t, err)
		assert.True(t, got.Timestamp.Equal(nominal.Add(-time.Minute)))
	})

	t.Run("exact close bar still wins", func(t *testing.T) {
		bars := []contracts.MinuteBar{
			bar(nominal.Add(-time.Minute), 584, 584.2),
			bar(nominal, 584.2, 585),
		}
		got, err := SelectBar(bars, nominal, contracts.CheckpointClose)
		require.NoError(t, err)
		assert.True(t, got.Timestamp.Equal(nominal))
	})

	t.Run("close never selects a later bar", func(t *testing.T) {
		bars := []contracts.MinuteBar{
			bar(nominal.Add(time.Minute), 585, 585.5),
		}
		_, err := SelectBar(bars, nominal, contracts.CheckpointClose)
		assert.ErrorIs(t, err, ErrBarUnavailable)
	})
}

func TestSelectBarUnavailable(t *testing.T) {
	target := time.Date(2025, 8, 15, 9, 30, 0, 0, time.UTC)

	t.Run("empty series", func(t *testing.T) {
		_, err := SelectBar(nil, target, contracts.CheckpointOpen)
		assert.ErrorIs(t, err, ErrBarUnavailable)
	})

	t.Run("no bar before target and none matching", func(t *testing.T) {
		// Series starts well after the open with no exact or next-minute
		// bar: nothing usable, no value is fabricated.
		bars := []contracts.MinuteBar{
			bar(target.Add(10*time.Minute), 581, 581.5),
		}
		_, err := SelectBar(bars, target, contracts.CheckpointOpen)
		assert.ErrorIs(t, err, ErrBarUnavailable)
	})
}

func TestSelectPriceFieldExtraction(t *testing.T) {
	open930 := time.Date(2025, 8, 15, 9, 30, 0, 0, time.UTC)
	noon := time.Date(2025, 8, 15, 12, 0, 0, 0, time.UTC)

	bars := []contracts.MinuteBar{
		bar(open930, 580.25, 580.9),
		bar(noon, 582.1, 582.4),
	}

	t.Run("open reads session first bar open", func(t *testing.T) {
		price, err := SelectPrice(bars, open930, contracts.CheckpointOpen)
		require.NoError(t, err)
		assert.Equal(t, 580.25, price)
	})

	t.Run("noon reads selected bar close", func(t *testing.T) {
		price, err := SelectPrice(bars, noon, contracts.CheckpointNoon)
		require.NoError(t, err)
		assert.Equal(t, 582.4, price)
	})
}
