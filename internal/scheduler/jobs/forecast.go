package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tradekit/bandtrack/internal/contracts"
	"github.com/tradekit/bandtrack/internal/prediction"
	"github.com/tradekit/bandtrack/pkg/logger"
)

// ForecastJob generates the day's predictions before the open and locks
// the daily band derived from them.
type ForecastJob struct {
	service *prediction.Service
	loc     *time.Location
	logger  *logger.Logger
}

// NewForecastJob creates the pre-open forecast job.
func NewForecastJob(service *prediction.Service, loc *time.Location, log *logger.Logger) *ForecastJob {
	return &ForecastJob{service: service, loc: loc, logger: log}
}

// Name returns the job name
func (j *ForecastJob) Name() string {
	return "forecast_generation"
}

// Schedule runs at 8:00 exchange time on weekdays, well before the open.
func (j *ForecastJob) Schedule() string {
	return "0 0 8 * * 1-5"
}

// Run generates predictions for today and publishes the band. An already
// locked band is not an error: the job reruns safely.
func (j *ForecastJob) Run(ctx context.Context) error {
	today := tradingDate(time.Now().In(j.loc))

	records, err := j.service.CreateOrGet(ctx, today, false)
	if err != nil {
		return fmt.Errorf("generate predictions: %w", err)
	}
	if len(records) == 0 {
		return fmt.Errorf("no predictions generated for %s", today.Format(contracts.DateFormat))
	}

	low, high := bandFromRecords(records)
	if low == 0 || high == 0 {
		return fmt.Errorf("predictions for %s carry no usable band", today.Format(contracts.DateFormat))
	}

	_, err = j.service.PublishBand(ctx, today, low, high, records[0].Source)
	if errors.Is(err, contracts.ErrBandLocked) {
		j.logger.WithField("date", today.Format(contracts.DateFormat)).Info("Band already locked")
		return nil
	}
	if err != nil {
		return fmt.Errorf("publish band: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"date":        today.Format(contracts.DateFormat),
		"predictions": len(records),
		"band_low":    low,
		"band_high":   high,
	}).Info("Forecast generated and band locked")
	return nil
}

// bandFromRecords derives the daily band from prediction intervals,
// falling back to point prices for records without intervals.
func bandFromRecords(records []*contracts.PredictionRecord) (low, high float64) {
	for _, rec := range records {
		l, h := rec.Price, rec.Price
		if rec.PredLow != nil {
			l = *rec.PredLow
		}
		if rec.PredHigh != nil {
			h = *rec.PredHigh
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

// ActualsJob completes the day's predictions with captured prices after
// the close.
type ActualsJob struct {
	service *prediction.Service
	loc     *time.Location
	logger  *logger.Logger
}

// NewActualsJob creates the post-close actuals backfill job.
func NewActualsJob(service *prediction.Service, loc *time.Location, log *logger.Logger) *ActualsJob {
	return &ActualsJob{service: service, loc: loc, logger: log}
}

// Name returns the job name
func (j *ActualsJob) Name() string {
	return "actuals_backfill"
}

// Schedule runs at 16:20 exchange time, after the close capture settles.
func (j *ActualsJob) Schedule() string {
	return "0 20 16 * * 1-5"
}

// Run backfills actuals for today's predictions.
func (j *ActualsJob) Run(ctx context.Context) error {
	today := tradingDate(time.Now().In(j.loc))

	updated, err := j.service.BackfillActuals(ctx, today)
	if err != nil {
		return fmt.Errorf("backfill actuals: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"date":    today.Format(contracts.DateFormat),
		"updated": updated,
	}).Info("Actuals backfill finished")
	return nil
}
