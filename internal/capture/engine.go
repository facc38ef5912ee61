package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/tradekit/bandtrack/internal/checkpoint"
	"github.com/tradekit/bandtrack/internal/contracts"
	"github.com/tradekit/bandtrack/internal/marketdata"
	"github.com/tradekit/bandtrack/pkg/logger"
)

// Status classifies the outcome of one capture attempt. Skipped and
// unavailable are successes from the caller's point of view: redundant
// calls converge, bulk operations continue.
type Status string

const (
	StatusCaptured    Status = "captured"
	StatusSkipped     Status = "skipped_existing"
	StatusUnavailable Status = "unavailable"
	StatusInvalid     Status = "invalid"
)

// Result reports what one capture attempt did.
type Result struct {
	Checkpoint contracts.Checkpoint `json:"checkpoint"`
	Status     Status               `json:"status"`
	Price      float64              `json:"price,omitempty"`
	Reason     string               `json:"reason,omitempty"`
}

// Intraday approximation weights applied to the daily high/low when no
// minute series exists. A modeling simplification, not an observation.
const (
	noonHighWeight  = 0.5
	twoPMHighWeight = 0.3
)

// ApproximateIntraday estimates an intraday checkpoint price from the daily
// high and low. Returns false for checkpoints with an exact daily field.
func ApproximateIntraday(cp contracts.Checkpoint, high, low float64) (float64, bool) {
	switch cp {
	case contracts.CheckpointNoon:
		return noonHighWeight*high + (1-noonHighWeight)*low, true
	case contracts.CheckpointTwoPM:
		return twoPMHighWeight*high + (1-twoPMHighWeight)*low, true
	}
	return 0, false
}

// Engine orchestrates resolve, price acquisition, validation and the
// idempotent write into the per-date aggregate plus the audit log. Every
// capture entry point (scheduler, lazy refresh, admin force, range
// backfill) funnels through this one primitive.
type Engine struct {
	aggregates contracts.AggregateRepository
	logs       contracts.PriceLogRepository
	source     marketdata.Source
	resolver   *checkpoint.Resolver
	validator  *checkpoint.Validator
	logger     *logger.Logger

	now func() time.Time
}

// NewEngine creates a capture engine.
func NewEngine(
	aggregates contracts.AggregateRepository,
	logs contracts.PriceLogRepository,
	source marketdata.Source,
	resolver *checkpoint.Resolver,
	validator *checkpoint.Validator,
	log *logger.Logger,
) *Engine {
	return &Engine{
		aggregates: aggregates,
		logs:       logs,
		source:     source,
		resolver:   resolver,
		validator:  validator,
		logger:     log,
		now:        time.Now,
	}
}

// Capture resolves, validates and writes one checkpoint price. A populated
// field is never overwritten unless force is set; "already set" is success,
// not error, so racing entry points converge to the same end state.
func (e *Engine) Capture(ctx context.Context, date time.Time, cp contracts.Checkpoint, force bool) (*Result, error) {
	if !cp.Valid() {
		return nil, fmt.Errorf("unknown checkpoint: %q", cp)
	}

	agg, err := e.aggregates.GetOrCreate(ctx, date)
	if err != nil {
		return nil, err
	}

	if agg.CheckpointPrice(cp) != nil && !force {
		return &Result{Checkpoint: cp, Status: StatusSkipped, Price: *agg.CheckpointPrice(cp)}, nil
	}

	price, unavailable := e.resolvePrice(ctx, date, cp)
	if unavailable != nil {
		e.logCapture(date, cp, unavailable.Reason).Info("Checkpoint price unavailable")
		return unavailable, nil
	}

	if err := e.validator.Validate(price); err != nil {
		e.logCapture(date, cp, err.Error()).Warn("Checkpoint price rejected")
		return &Result{Checkpoint: cp, Status: StatusInvalid, Reason: err.Error()}, nil
	}

	if err := e.write(ctx, date, cp, price); err != nil {
		return nil, err
	}

	e.logCapture(date, cp, "").WithField("price", price).Info("Checkpoint captured")
	return &Result{Checkpoint: cp, Status: StatusCaptured, Price: price}, nil
}

// resolvePrice obtains the best-available price for a checkpoint: official
// per-checkpoint resolution first, then the last-known quote when the date
// is still today. Returns a non-nil unavailable Result when nothing usable
// exists.
func (e *Engine) resolvePrice(ctx context.Context, date time.Time, cp contracts.Checkpoint) (float64, *Result) {
	switch cp {
	case contracts.CheckpointPreMarket:
		quote, err := e.source.LastQuote(ctx)
		if err != nil {
			return 0, &Result{Checkpoint: cp, Status: StatusUnavailable, Reason: "no quote: " + err.Error()}
		}
		return quote.Price, nil

	case contracts.CheckpointOpen, contracts.CheckpointClose:
		daily, err := e.source.DailyOHLC(ctx, date)
		if err == nil {
			if cp == contracts.CheckpointOpen {
				return daily.Open, nil
			}
			return daily.Close, nil
		}
		return e.fallbackQuote(ctx, date, cp, err)

	default: // noon, twoPM
		instant, err := e.resolver.Resolve(date, cp)
		if err != nil {
			return 0, &Result{Checkpoint: cp, Status: StatusUnavailable, Reason: err.Error()}
		}
		bars, err := e.source.MinuteBars(ctx, date)
		if err != nil {
			return e.fallbackQuote(ctx, date, cp, err)
		}
		price, err := checkpoint.SelectPrice(bars, instant, cp)
		if err != nil {
			return e.fallbackQuote(ctx, date, cp, err)
		}
		return price, nil
	}
}

// fallbackQuote degrades to the last-known quote, but only while the date
// is still today in the exchange zone. A live quote is meaningless for a
// historical date.
func (e *Engine) fallbackQuote(ctx context.Context, date time.Time, cp contracts.Checkpoint, cause error) (float64, *Result) {
	if !e.isToday(date) {
		return 0, &Result{Checkpoint: cp, Status: StatusUnavailable, Reason: cause.Error()}
	}

	quote, err := e.source.LastQuote(ctx)
	if err != nil {
		return 0, &Result{Checkpoint: cp, Status: StatusUnavailable, Reason: cause.Error() + "; quote fallback: " + err.Error()}
	}

	e.logCapture(date, cp, cause.Error()).Info("Falling back to last quote")
	return quote.Price, nil
}

// write persists one checkpoint price and appends the audit record. The
// update is column scoped: only the captured checkpoint's field changes,
// so the band and the other checkpoints are never written from the capture
// path. One log entry per successful write, never for skips.
func (e *Engine) write(ctx context.Context, date time.Time, cp contracts.Checkpoint, price float64) error {
	if err := e.aggregates.SetCheckpoint(ctx, date, cp, price); err != nil {
		return err
	}

	entry := &contracts.PriceLogEntry{
		Date:       date,
		Checkpoint: cp,
		Price:      price,
		CapturedAt: e.now().UTC(),
	}
	return e.logs.Append(ctx, entry)
}

// RefreshFromBars recomputes a date's intraday checkpoints from the minute
// series in one pass. force applies per checkpoint.
func (e *Engine) RefreshFromBars(ctx context.Context, date time.Time, force map[contracts.Checkpoint]bool) ([]Result, error) {
	bars, err := e.source.MinuteBars(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch minute bars for %s: %w", date.Format(contracts.DateFormat), err)
	}

	agg, err := e.aggregates.GetOrCreate(ctx, date)
	if err != nil {
		return nil, err
	}

	var results []Result
	for _, cp := range contracts.IntradayCheckpoints {
		if agg.CheckpointPrice(cp) != nil && !force[cp] {
			results = append(results, Result{Checkpoint: cp, Status: StatusSkipped, Price: *agg.CheckpointPrice(cp)})
			continue
		}

		instant, err := e.resolver.Resolve(date, cp)
		if err != nil {
			results = append(results, Result{Checkpoint: cp, Status: StatusUnavailable, Reason: err.Error()})
			continue
		}

		price, err := checkpoint.SelectPrice(bars, instant, cp)
		if err != nil {
			e.logCapture(date, cp, err.Error()).Info("No bar for checkpoint")
			results = append(results, Result{Checkpoint: cp, Status: StatusUnavailable, Reason: err.Error()})
			continue
		}

		if err := e.validator.Validate(price); err != nil {
			e.logCapture(date, cp, err.Error()).Warn("Checkpoint price rejected")
			results = append(results, Result{Checkpoint: cp, Status: StatusInvalid, Reason: err.Error()})
			continue
		}

		if err := e.write(ctx, date, cp, price); err != nil {
			return results, err
		}
		results = append(results, Result{Checkpoint: cp, Status: StatusCaptured, Price: price})
	}
	return results, nil
}

// RefreshFromDaily fills a date's checkpoints from the daily candle alone:
// exact open/close, high/low-weighted estimates for noon and twoPM. Used
// when the minute series is no longer retrievable.
func (e *Engine) RefreshFromDaily(ctx context.Context, date time.Time, force bool) ([]Result, error) {
	daily, err := e.source.DailyOHLC(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch daily candle for %s: %w", date.Format(contracts.DateFormat), err)
	}

	agg, err := e.aggregates.GetOrCreate(ctx, date)
	if err != nil {
		return nil, err
	}

	var results []Result
	for _, cp := range contracts.IntradayCheckpoints {
		if agg.CheckpointPrice(cp) != nil && !force {
			results = append(results, Result{Checkpoint: cp, Status: StatusSkipped, Price: *agg.CheckpointPrice(cp)})
			continue
		}

		var price float64
		switch cp {
		case contracts.CheckpointOpen:
			price = daily.Open
		case contracts.CheckpointClose:
			price = daily.Close
		default:
			price, _ = ApproximateIntraday(cp, daily.High, daily.Low)
		}

		if err := e.validator.Validate(price); err != nil {
			e.logCapture(date, cp, err.Error()).Warn("Checkpoint price rejected")
			results = append(results, Result{Checkpoint: cp, Status: StatusInvalid, Reason: err.Error()})
			continue
		}

		if err := e.write(ctx, date, cp, price); err != nil {
			return results, err
		}
		results = append(results, Result{Checkpoint: cp, Status: StatusCaptured, Price: price})
	}
	return results, nil
}

// BackfillSummary aggregates a range backfill run.
type BackfillSummary struct {
	Days        int      `json:"days"`
	Captured    int      `json:"captured"`
	Skipped     int      `json:"skipped"`
	Unavailable int      `json:"unavailable"`
	Invalid     int      `json:"invalid"`
	FailedDates []string `json:"failed_dates,omitempty"`
}

// BackfillRange refreshes every weekday in [from, to]. One bad date never
// stops the run: failures are recorded in the summary and the loop moves on.
func (e *Engine) BackfillRange(ctx context.Context, from, to time.Time, force bool) (*BackfillSummary, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("invalid range: %s after %s", from.Format(contracts.DateFormat), to.Format(contracts.DateFormat))
	}

	summary := &BackfillSummary{}
	forceMap := map[contracts.Checkpoint]bool{}
	for _, cp := range contracts.IntradayCheckpoints {
		forceMap[cp] = force
	}

	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		summary.Days++

		results, err := e.RefreshFromBars(ctx, d, forceMap)
		if err != nil {
			// Minute history ages out of the feed; fall back to the daily candle.
			results, err = e.RefreshFromDaily(ctx, d, force)
		}
		if err != nil {
			e.logger.WithError(err).WithField("date", d.Format(contracts.DateFormat)).Warn("Backfill failed for date")
			summary.FailedDates = append(summary.FailedDates, d.Format(contracts.DateFormat))
			continue
		}

		for _, r := range results {
			switch r.Status {
			case StatusCaptured:
				summary.Captured++
			case StatusSkipped:
				summary.Skipped++
			case StatusUnavailable:
				summary.Unavailable++
			case StatusInvalid:
				summary.Invalid++
			}
		}
	}
	return summary, nil
}

// RefreshToday captures any still-unset checkpoint whose instant has passed,
// for today only. This is the lazy on-read trigger behind the day endpoint.
func (e *Engine) RefreshToday(ctx context.Context) ([]Result, error) {
	now := e.now().In(e.resolver.Location())
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var results []Result
	for _, cp := range contracts.AllCheckpoints {
		if cp != contracts.CheckpointPreMarket {
			instant, err := e.resolver.Resolve(today, cp)
			if err != nil {
				continue
			}
			if e.now().Before(instant) {
				continue // checkpoint hasn't happened yet
			}
		}

		res, err := e.Capture(ctx, today, cp, false)
		if err != nil {
			return results, err
		}
		results = append(results, *res)
	}
	return results, nil
}

// CleanupLogs removes audit records older than the retention window.
func (e *Engine) CleanupLogs(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := e.now().UTC().Add(-retention)
	deleted, err := e.logs.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		e.logger.WithFields(map[string]interface{}{
			"deleted": deleted,
			"cutoff":  cutoff.Format(time.RFC3339),
		}).Info("Price log retention cleanup")
	}
	return deleted, nil
}

// isToday reports whether date matches the current date in the exchange zone.
func (e *Engine) isToday(date time.Time) bool {
	now := e.now().In(e.resolver.Location())
	return date.Year() == now.Year() && date.Month() == now.Month() && date.Day() == now.Day()
}

func (e *Engine) logCapture(date time.Time, cp contracts.Checkpoint, reason string) *logger.Logger {
	l := e.logger.WithFields(map[string]interface{}{
		"date":       date.Format(contracts.DateFormat),
		"checkpoint": cp.String(),
	})
	if reason != "" {
		l = l.WithField("reason", reason)
	}
	return l
}
