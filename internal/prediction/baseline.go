package prediction

import (
	"fmt"

	"github.com/tradekit/bandtrack/internal/contracts"
)

// Intraday seasonality: expected drift from the anchor at each checkpoint,
// in units of ATR. The open carries no drift; midday drifts furthest on
// average before fading into the close.
var seasonalityWeights = map[contracts.Checkpoint]float64{
	contracts.CheckpointOpen:  0.0,
	contracts.CheckpointNoon:  0.2,
	contracts.CheckpointTwoPM: 0.1,
	contracts.CheckpointClose: 0.15,
}

const (
	baseIntervalWidth = 0.5  // interval half-width at the open, ATR units
	intervalWidening  = 0.25 // extra half-width per later checkpoint
	baseConfidence    = 0.70
	confidenceDecay   = 0.05
)

// Baseline is the statistical fallback predictor: previous-close anchor,
// ATR-scaled seasonality drift and widening confidence intervals through
// the day. Deterministic over a fixed context.
type Baseline struct{}

// NewBaseline creates the baseline predictor.
func NewBaseline() *Baseline {
	return &Baseline{}
}

// Predict produces a forecast from context alone. Returns
// contracts.ErrCannotPredict when there is no anchor price: this is the one
// unrecoverable path, since no price may be fabricated.
func (b *Baseline) Predict(mc *ModelContext) (*Forecast, error) {
	if mc.AnchorPrice <= 0 {
		return nil, contracts.ErrCannotPredict
	}

	atr := mc.Volatility
	if atr <= 0 {
		// Without a usable range the intervals collapse to a conservative
		// fraction of the anchor.
		atr = mc.AnchorPrice * 0.005
	}

	forecast := &Forecast{
		Date:     mc.Date,
		Source:   SourceBaseline,
		Analysis: fmt.Sprintf("Statistical baseline: anchor %.2f, ATR %.2f", mc.AnchorPrice, atr),
	}

	for i, cp := range contracts.IntradayCheckpoints {
		price := mc.AnchorPrice + seasonalityWeights[cp]*atr
		half := (baseIntervalWidth + intervalWidening*float64(i)) * atr

		forecast.Checkpoints = append(forecast.Checkpoints, CheckpointForecast{
			Checkpoint: cp,
			Price:      price,
			Confidence: baseConfidence - confidenceDecay*float64(i),
			Rationale:  fmt.Sprintf("anchor %.2f + %.2f ATR seasonal drift", mc.AnchorPrice, seasonalityWeights[cp]),
			Low:        price - half,
			High:       price + half,
		})
	}
	return forecast, nil
}
