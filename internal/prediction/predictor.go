package prediction

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tradekit/bandtrack/internal/contracts"
)

// Prediction sources recorded on persisted rows.
const (
	SourceModel      = "model"
	SourceBaseline   = "baseline"
	SourceSimulation = "simulation"
)

// CheckpointForecast is one predicted checkpoint price.
type CheckpointForecast struct {
	Checkpoint contracts.Checkpoint `json:"checkpoint"`
	Price      float64              `json:"price"`
	Confidence float64              `json:"confidence"`
	Rationale  string               `json:"rationale,omitempty"`
	Low        float64              `json:"low"`
	High       float64              `json:"high"`
}

// Forecast is a full day's prediction set.
type Forecast struct {
	Date        time.Time            `json:"date"`
	Checkpoints []CheckpointForecast `json:"checkpoints"`
	Analysis    string               `json:"analysis,omitempty"`
	Source      string               `json:"source"`
}

// Records converts the forecast into persistable prediction rows.
func (f *Forecast) Records(createdAt time.Time) []*contracts.PredictionRecord {
	records := make([]*contracts.PredictionRecord, 0, len(f.Checkpoints))
	for _, cf := range f.Checkpoints {
		low, high := cf.Low, cf.High
		records = append(records, &contracts.PredictionRecord{
			Date:       f.Date,
			Checkpoint: cf.Checkpoint,
			Price:      cf.Price,
			Confidence: cf.Confidence,
			Rationale:  cf.Rationale,
			PredLow:    &low,
			PredHigh:   &high,
			Source:     f.Source,
			CreatedAt:  createdAt,
		})
	}
	return records
}

// Band derives the daily band: lowest interval bound to highest, falling
// back to the point prices when a forecast carries no intervals.
func (f *Forecast) Band() (low, high float64) {
	for _, cf := range f.Checkpoints {
		l, h := cf.Low, cf.High
		if l == 0 && h == 0 {
			l, h = cf.Price, cf.Price
		}
		if low == 0 || l < low {
			low = l
		}
		if h > high {
			high = h
		}
	}
	return low, high
}

// Predictor generates forecasts: external model first, statistical baseline
// when the model is unreachable or returns garbage.
type Predictor struct {
	model    *ModelClient
	baseline *Baseline
	builder  *ContextBuilder
	logger   zerolog.Logger
}

// NewPredictor creates a predictor. model may be nil to run baseline-only.
func NewPredictor(model *ModelClient, baseline *Baseline, builder *ContextBuilder, log zerolog.Logger) *Predictor {
	return &Predictor{
		model:    model,
		baseline: baseline,
		builder:  builder,
		logger:   log.With().Str("component", "predictor").Logger(),
	}
}

// Predict produces the forecast for a date from live context.
func (p *Predictor) Predict(ctx context.Context, date time.Time) (*Forecast, error) {
	mc, err := p.builder.BuildLive(ctx, date)
	if err != nil {
		return nil, err
	}
	return p.forecast(ctx, mc)
}

// PredictAsOf produces the forecast a predictor would have made at the
// start of a past date. Context is strictly-past and the baseline is used
// directly: backtests stay deterministic and make no model calls.
func (p *Predictor) PredictAsOf(ctx context.Context, date time.Time) (*Forecast, error) {
	mc, err := p.builder.BuildAsOf(ctx, date)
	if err != nil {
		return nil, err
	}
	return p.baseline.Predict(mc)
}

func (p *Predictor) forecast(ctx context.Context, mc *ModelContext) (*Forecast, error) {
	if p.model != nil {
		f, err := p.model.Predict(ctx, mc)
		if err == nil {
			return f, nil
		}
		p.logger.Warn().Err(err).
			Str("date", mc.Date.Format(contracts.DateFormat)).
			Msg("model prediction failed, using baseline")
	}
	return p.baseline.Predict(mc)
}
