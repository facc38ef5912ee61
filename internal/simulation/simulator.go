package simulation

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/tradekit/bandtrack/internal/capture"
	"github.com/tradekit/bandtrack/internal/contracts"
	"github.com/tradekit/bandtrack/internal/marketdata"
	"github.com/tradekit/bandtrack/internal/prediction"
)

// Simulator replays the predictor over past trading dates under the
// temporal leakage guard: context for date D is built from strictly-<D
// data with the prior session close as anchor. Intraday actuals are
// approximated from the daily high/low when no true minute series exists,
// a documented modeling simplification.
type Simulator struct {
	predictor   *prediction.Predictor
	source      marketdata.Source
	predictions contracts.PredictionRepository
	logger      zerolog.Logger

	now func() time.Time
}

// NewSimulator creates a simulator. predictions may be nil when simulated
// rows should never be persisted.
func NewSimulator(predictor *prediction.Predictor, source marketdata.Source, predictions contracts.PredictionRepository, log zerolog.Logger) *Simulator {
	return &Simulator{
		predictor:   predictor,
		source:      source,
		predictions: predictions,
		logger:      log.With().Str("component", "simulation").Logger(),
		now:         time.Now,
	}
}

// Run simulates every weekday in [from, to]. Days without recorded actuals
// or without enough history to predict are skipped and listed in the
// report; one bad date never aborts the run.
func (s *Simulator) Run(ctx context.Context, from, to time.Time, persist bool) (*Report, error) {
	from = from.Truncate(24 * time.Hour)
	to = to.Truncate(24 * time.Hour)
	if to.Before(from) {
		return nil, fmt.Errorf("invalid range: %s after %s", from.Format(contracts.DateFormat), to.Format(contracts.DateFormat))
	}
	if !to.Before(s.now().Truncate(24 * time.Hour)) {
		return nil, fmt.Errorf("simulation range must end before today")
	}

	report := newReport(from, to)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}

		day, err := s.simulateDay(ctx, d, persist)
		if err != nil {
			s.logger.Debug().Err(err).
				Str("date", d.Format(contracts.DateFormat)).
				Msg("skipping date")
			report.SkippedDates = append(report.SkippedDates, d.Format(contracts.DateFormat))
			continue
		}
		report.record(day)
	}

	report.finalize()
	s.logger.Info().
		Int("days", report.Days).
		Float64("mae", report.OverallMAE).
		Float64("hit_rate", report.HitRate).
		Str("grade", report.Grade).
		Msg("simulation complete")
	return report, nil
}

// simulateDay generates one leakage-guarded forecast and scores it against
// the recorded daily candle.
func (s *Simulator) simulateDay(ctx context.Context, date time.Time, persist bool) (*DayResult, error) {
	actual, err := s.source.DailyOHLC(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("no actuals: %w", err)
	}

	forecast, err := s.predictor.PredictAsOf(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("prediction failed: %w", err)
	}

	day := &DayResult{Date: date}
	sum := 0.0
	for _, cf := range forecast.Checkpoints {
		actualPrice, ok := actualFor(cf.Checkpoint, actual)
		if !ok {
			continue
		}

		outcome := CheckpointOutcome{
			Checkpoint: cf.Checkpoint,
			Predicted:  cf.Price,
			Actual:     actualPrice,
			AbsError:   math.Abs(cf.Price - actualPrice),
			Hit:        cf.Low <= actualPrice && actualPrice <= cf.High,
			Confidence: cf.Confidence,
		}
		day.Outcomes = append(day.Outcomes, outcome)
		sum += outcome.AbsError
	}
	if len(day.Outcomes) == 0 {
		return nil, fmt.Errorf("no scorable checkpoints")
	}
	day.MAE = sum / float64(len(day.Outcomes))

	if persist && s.predictions != nil {
		if err := s.persistDay(ctx, date, forecast, day); err != nil {
			s.logger.Warn().Err(err).
				Str("date", date.Format(contracts.DateFormat)).
				Msg("failed to persist simulated predictions")
		}
	}
	return day, nil
}

// persistDay stores the simulated rows, completed with actuals and tagged
// with the simulation source. A rerun replaces the previous run's rows.
func (s *Simulator) persistDay(ctx context.Context, date time.Time, forecast *prediction.Forecast, day *DayResult) error {
	if _, err := s.predictions.DeleteByDateAndSource(ctx, date, prediction.SourceSimulation); err != nil {
		return err
	}

	records := forecast.Records(s.now().UTC())
	outcomes := make(map[contracts.Checkpoint]CheckpointOutcome, len(day.Outcomes))
	for _, o := range day.Outcomes {
		outcomes[o.Checkpoint] = o
	}
	for _, rec := range records {
		rec.Source = prediction.SourceSimulation
		if o, ok := outcomes[rec.Checkpoint]; ok {
			actual, absErr := o.Actual, o.AbsError
			rec.ActualPrice, rec.AbsError = &actual, &absErr
		}
	}
	return s.predictions.InsertBatch(ctx, date, records, false)
}

// actualFor resolves the recorded actual for a checkpoint from the daily
// candle: exact for open/close, high/low-weighted estimates for the
// intraday instants.
func actualFor(cp contracts.Checkpoint, daily *contracts.DailyOHLC) (float64, bool) {
	switch cp {
	case contracts.CheckpointOpen:
		return daily.Open, true
	case contracts.CheckpointClose:
		return daily.Close, true
	case contracts.CheckpointNoon, contracts.CheckpointTwoPM:
		price, _ := capture.ApproximateIntraday(cp, daily.High, daily.Low)
		return price, true
	}
	return 0, false
}
