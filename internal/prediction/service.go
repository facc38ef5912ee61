package prediction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tradekit/bandtrack/internal/contracts"
)

// Service is the canonical-read and race-safe-write layer over prediction
// rows, plus the one-way band lock on the daily aggregate.
type Service struct {
	predictions contracts.PredictionRepository
	aggregates  contracts.AggregateRepository
	predictor   *Predictor
	logger      zerolog.Logger

	now func() time.Time
}

// NewService creates a prediction service.
func NewService(predictions contracts.PredictionRepository, aggregates contracts.AggregateRepository, predictor *Predictor, log zerolog.Logger) *Service {
	return &Service{
		predictions: predictions,
		aggregates:  aggregates,
		predictor:   predictor,
		logger:      log.With().Str("component", "prediction").Logger(),
		now:         time.Now,
	}
}

// GetCanonical returns at most one prediction per checkpoint for a date, in
// fixed checkpoint order. With duplicate physical rows the newest by
// creation time wins. This is the single read path used everywhere
// predictions surface.
func (s *Service) GetCanonical(ctx context.Context, date time.Time) ([]*contracts.PredictionRecord, error) {
	rows, err := s.predictions.ListByDateNewestFirst(ctx, date)
	if err != nil {
		return nil, err
	}

	newest := make(map[contracts.Checkpoint]*contracts.PredictionRecord, len(contracts.AllCheckpoints))
	for _, rec := range rows {
		if _, seen := newest[rec.Checkpoint]; !seen {
			newest[rec.Checkpoint] = rec
		}
	}

	var canonical []*contracts.PredictionRecord
	for _, cp := range contracts.AllCheckpoints {
		if rec, ok := newest[cp]; ok {
			canonical = append(canonical, rec)
		}
	}
	return canonical, nil
}

// CreateAtomic persists a prediction batch transactionally. When the write
// loses a uniqueness race and replaceExisting is false, the loser adopts
// the winner's state: the existing canonical predictions are returned
// instead of an error. With replaceExisting set, a violation is unexpected
// and propagates.
func (s *Service) CreateAtomic(ctx context.Context, date time.Time, records []*contracts.PredictionRecord, replaceExisting bool) ([]*contracts.PredictionRecord, error) {
	err := s.predictions.InsertBatch(ctx, date, records, replaceExisting)
	if err == nil {
		return records, nil
	}

	if errors.Is(err, contracts.ErrDuplicatePrediction) && !replaceExisting {
		s.logger.Info().
			Str("date", date.Format(contracts.DateFormat)).
			Msg("prediction write lost race, adopting existing rows")
		return s.GetCanonical(ctx, date)
	}
	return nil, err
}

// CreateOrGet returns the date's canonical predictions, generating and
// persisting a fresh set when none exist or regeneration is forced. On any
// persistence failure it falls back to pre-existing canonical predictions
// if there were any: no prediction is strictly worse than a fabricated one,
// so only a date with no predictions at all propagates the error.
func (s *Service) CreateOrGet(ctx context.Context, date time.Time, forceRegenerate bool) ([]*contracts.PredictionRecord, error) {
	existing, err := s.GetCanonical(ctx, date)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 && !forceRegenerate {
		return existing, nil
	}

	forecast, err := s.predictor.Predict(ctx, date)
	if err != nil {
		if len(existing) > 0 {
			s.logger.Warn().Err(err).
				Str("date", date.Format(contracts.DateFormat)).
				Msg("generation failed, keeping existing predictions")
			return existing, nil
		}
		return nil, err
	}

	created, err := s.CreateAtomic(ctx, date, forecast.Records(s.now().UTC()), forceRegenerate)
	if err != nil {
		if len(existing) > 0 {
			s.logger.Warn().Err(err).
				Str("date", date.Format(contracts.DateFormat)).
				Msg("persist failed, keeping existing predictions")
			return existing, nil
		}
		return nil, err
	}
	return created, nil
}

// PublishBand locks the daily band. The lock is one-way and enforced by the
// conditional store write, so two near-simultaneous publishes that both read
// an unlocked row still resolve to exactly one winner; the loser gets
// contracts.ErrBandLocked, never a silent overwrite.
func (s *Service) PublishBand(ctx context.Context, date time.Time, low, high float64, source string) (*contracts.DailyAggregate, error) {
	if low > high {
		return nil, fmt.Errorf("invalid band: low %.2f above high %.2f", low, high)
	}

	if _, err := s.aggregates.GetOrCreate(ctx, date); err != nil {
		return nil, err
	}

	if err := s.aggregates.LockBand(ctx, date, low, high, source); err != nil {
		if errors.Is(err, contracts.ErrBandLocked) {
			return nil, fmt.Errorf("%w: %s", contracts.ErrBandLocked, date.Format(contracts.DateFormat))
		}
		return nil, err
	}

	agg, err := s.aggregates.GetByDate(ctx, date)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("date", date.Format(contracts.DateFormat)).
		Float64("low", low).
		Float64("high", high).
		Str("source", source).
		Msg("band published and locked")
	return agg, nil
}

// BackfillActuals completes the date's canonical predictions with the
// captured checkpoint prices and their absolute errors. Predictions whose
// checkpoint has no captured price yet are left open for a later pass.
func (s *Service) BackfillActuals(ctx context.Context, date time.Time) (int, error) {
	agg, err := s.aggregates.GetByDate(ctx, date)
	if err != nil {
		return 0, err
	}
	if agg == nil {
		return 0, nil
	}

	canonical, err := s.GetCanonical(ctx, date)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, rec := range canonical {
		if rec.ActualPrice != nil {
			continue
		}
		actual := agg.CheckpointPrice(rec.Checkpoint)
		if actual == nil {
			continue
		}

		absErr := rec.Price - *actual
		if absErr < 0 {
			absErr = -absErr
		}
		if err := s.predictions.UpdateActual(ctx, rec.ID, *actual, absErr); err != nil {
			return updated, err
		}
		updated++
	}

	if updated > 0 {
		s.logger.Info().
			Str("date", date.Format(contracts.DateFormat)).
			Int("updated", updated).
			Msg("actuals backfilled")
	}
	return updated, nil
}
