package checkpoint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradekit/bandtrack/internal/contracts"
)

func TestNewResolver(t *testing.T) {
	t.Run("valid timezone", func(t *testing.T) {
		r, err := NewResolver("America/New_York")
		require.NoError(t, err)
		assert.NotNil(t, r)
	})

	t.Run("invalid timezone", func(t *testing.T) {
		_, err := NewResolver("Mars/Olympus_Mons")
		assert.Error(t, err)
	})
}

func TestResolveWallClockTargets(t *testing.T) {
	r, err := NewResolver("America/New_York")
	require.NoError(t, err)

	date := time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		cp       contracts.Checkpoint
		wantHour int
		wantMin  int
	}{
		{contracts.CheckpointOpen, 9, 30},
		{contracts.CheckpointNoon, 12, 0},
		{contracts.CheckpointTwoPM, 14, 0},
		{contracts.CheckpointClose, 16, 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.cp), func(t *testing.T) {
			instant, err := r.Resolve(date, tt.cp)
			require.NoError(t, err)

			local := instant.In(r.Location())
			assert.Equal(t, tt.wantHour, local.Hour())
			assert.Equal(t, tt.wantMin, local.Minute())
			assert.Equal(t, 15, local.Day())
		})
	}
}

func TestResolveDSTFromDate(t *testing.T) {
	r, err := NewResolver("America/New_York")
	require.NoError(t, err)

	// August is EDT (UTC-4), January is EST (UTC-5). The offset must come
	// from the resolved date, never from when Resolve is called.
	summer := time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC)
	winter := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	summerOpen, err := r.Resolve(summer, contracts.CheckpointOpen)
	require.NoError(t, err)
	winterOpen, err := r.Resolve(winter, contracts.CheckpointOpen)
	require.NoError(t, err)

	assert.Equal(t, 13, summerOpen.UTC().Hour(), "9:30 EDT is 13:30 UTC")
	assert.Equal(t, 14, winterOpen.UTC().Hour(), "9:30 EST is 14:30 UTC")
}

func TestResolvePreMarket(t *testing.T) {
	r, err := NewResolver("America/New_York")
	require.NoError(t, err)

	_, err = r.Resolve(time.Now(), contracts.CheckpointPreMarket)
	assert.ErrorIs(t, err, ErrNoHistoricalInstant)
}
