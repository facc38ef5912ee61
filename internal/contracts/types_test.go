package contracts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCheckpoint(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Checkpoint
		wantErr bool
	}{
		{name: "pre market", input: "preMarket", want: CheckpointPreMarket},
		{name: "open", input: "open", want: CheckpointOpen},
		{name: "noon", input: "noon", want: CheckpointNoon},
		{name: "two pm", input: "twoPM", want: CheckpointTwoPM},
		{name: "close", input: "close", want: CheckpointClose},
		{name: "unknown", input: "midnight", wantErr: true},
		{name: "wrong case", input: "Open", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCheckpoint(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAllCheckpointsOrder(t *testing.T) {
	want := []Checkpoint{
		CheckpointPreMarket,
		CheckpointOpen,
		CheckpointNoon,
		CheckpointTwoPM,
		CheckpointClose,
	}
	assert.Equal(t, want, AllCheckpoints)
}

func TestComputeDerived(t *testing.T) {
	tests := []struct {
		name        string
		close       float64
		predLow     float64
		predHigh    float64
		wantHit     bool
		wantAbsErr  float64
	}{
		{name: "inside band", close: 583, predLow: 580, predHigh: 585, wantHit: true, wantAbsErr: 0.5},
		{name: "below band", close: 578, predLow: 580, predHigh: 585, wantHit: false, wantAbsErr: 4.5},
		{name: "above band", close: 590, predLow: 580, predHigh: 585, wantHit: false, wantAbsErr: 7.5},
		{name: "at lower edge", close: 580, predLow: 580, predHigh: 585, wantHit: true, wantAbsErr: 2.5},
		{name: "at upper edge", close: 585, predLow: 580, predHigh: 585, wantHit: true, wantAbsErr: 2.5},
		{name: "at midpoint", close: 582.5, predLow: 580, predHigh: 585, wantHit: true, wantAbsErr: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hit, absErr := ComputeDerived(tt.close, tt.predLow, tt.predHigh)
			assert.Equal(t, tt.wantHit, hit)
			assert.InDelta(t, tt.wantAbsErr, absErr, 1e-9)
		})
	}
}

func TestComputeDerivedDeterministic(t *testing.T) {
	h1, e1 := ComputeDerived(583, 580, 585)
	h2, e2 := ComputeDerived(583, 580, 585)
	assert.Equal(t, h1, h2)
	assert.Equal(t, e1, e2)
}

func TestRecomputeDerived(t *testing.T) {
	closeP := 583.0
	low := 580.0
	high := 585.0

	t.Run("all fields present", func(t *testing.T) {
		agg := &DailyAggregate{Close: &closeP, PredLow: &low, PredHigh: &high}
		agg.RecomputeDerived()
		require.NotNil(t, agg.RangeHit)
		require.NotNil(t, agg.AbsErrorToClose)
		assert.True(t, *agg.RangeHit)
		assert.InDelta(t, 0.5, *agg.AbsErrorToClose, 1e-9)
	})

	t.Run("missing close leaves derived untouched", func(t *testing.T) {
		agg := &DailyAggregate{PredLow: &low, PredHigh: &high}
		agg.RecomputeDerived()
		assert.Nil(t, agg.RangeHit)
		assert.Nil(t, agg.AbsErrorToClose)
	})

	t.Run("missing band leaves derived untouched", func(t *testing.T) {
		agg := &DailyAggregate{Close: &closeP}
		agg.RecomputeDerived()
		assert.Nil(t, agg.RangeHit)
		assert.Nil(t, agg.AbsErrorToClose)
	})
}

func TestCheckpointPriceRoundTrip(t *testing.T) {
	agg := &DailyAggregate{Date: time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC)}

	for i, cp := range AllCheckpoints {
		price := 580.0 + float64(i)
		agg.SetCheckpointPrice(cp, price)
		got := agg.CheckpointPrice(cp)
		require.NotNil(t, got, "checkpoint %s", cp)
		assert.Equal(t, price, *got)
	}
}
