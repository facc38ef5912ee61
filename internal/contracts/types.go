package contracts

import (
	"math"
	"time"
)

// DateFormat is the canonical YYYY-MM-DD rendering of a trading date.
const DateFormat = "2006-01-02"

// DailyAggregate is the single per-date record holding the captured
// checkpoint prices, the locked prediction band, and the derived
// accuracy fields. Exactly one row exists per date.
type DailyAggregate struct {
	Date       time.Time `json:"date"`
	PreMarket  *float64  `json:"pre_market,omitempty"`
	Open       *float64  `json:"open,omitempty"`
	Noon       *float64  `json:"noon,omitempty"`
	TwoPM      *float64  `json:"two_pm,omitempty"`
	Close      *float64  `json:"close,omitempty"`
	PredLow    *float64  `json:"pred_low,omitempty"`
	PredHigh   *float64  `json:"pred_high,omitempty"`
	BandLocked bool      `json:"band_locked"`
	BandSource string    `json:"band_source,omitempty"`

	// Derived fields, recomputed from (close, pred_low, pred_high) and
	// never authored independently.
	RangeHit        *bool    `json:"range_hit,omitempty"`
	AbsErrorToClose *float64 `json:"abs_error_to_close,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CheckpointPrice returns the stored price for a checkpoint, nil when unset.
func (a *DailyAggregate) CheckpointPrice(cp Checkpoint) *float64 {
	switch cp {
	case CheckpointPreMarket:
		return a.PreMarket
	case CheckpointOpen:
		return a.Open
	case CheckpointNoon:
		return a.Noon
	case CheckpointTwoPM:
		return a.TwoPM
	case CheckpointClose:
		return a.Close
	}
	return nil
}

// SetCheckpointPrice stores a price for a checkpoint.
func (a *DailyAggregate) SetCheckpointPrice(cp Checkpoint, price float64) {
	p := price
	switch cp {
	case CheckpointPreMarket:
		a.PreMarket = &p
	case CheckpointOpen:
		a.Open = &p
	case CheckpointNoon:
		a.Noon = &p
	case CheckpointTwoPM:
		a.TwoPM = &p
	case CheckpointClose:
		a.Close = &p
	}
}

// RecomputeDerived refreshes range_hit and abs_error_to_close when both the
// close price and the band are present. Deterministic and idempotent.
func (a *DailyAggregate) RecomputeDerived() {
	if a.Close == nil || a.PredLow == nil || a.PredHigh == nil {
		return
	}
	hit, absErr := ComputeDerived(*a.Close, *a.PredLow, *a.PredHigh)
	a.RangeHit = &hit
	a.AbsErrorToClose = &absErr
}

// ComputeDerived is the pure derived-field function: range_hit reports
// whether close landed inside [predLow, predHigh], abs_error_to_close is
// the absolute distance from close to the band midpoint.
func ComputeDerived(close, predLow, predHigh float64) (rangeHit bool, absErrorToClose float64) {
	rangeHit = predLow <= close && close <= predHigh
	absErrorToClose = math.Abs(close - (predLow+predHigh)/2)
	return rangeHit, absErrorToClose
}

// PriceLogEntry is one append-only audit record per successful checkpoint
// write. Never mutated; removed only by bulk retention cleanup.
type PriceLogEntry struct {
	ID         int64      `json:"id"`
	Date       time.Time  `json:"date"`
	Checkpoint Checkpoint `json:"checkpoint"`
	Price      float64    `json:"price"`
	CapturedAt time.Time  `json:"captured_at"`
}

// PredictionRecord is one physical write of a model prediction for a
// (date, checkpoint) pair. Duplicates may exist transiently; the canonical
// record is the newest by creation time.
type PredictionRecord struct {
	ID         int64      `json:"id"`
	Date       time.Time  `json:"date"`
	Checkpoint Checkpoint `json:"checkpoint"`
	Price      float64    `json:"price"`
	Confidence float64    `json:"confidence"`
	Rationale  string     `json:"rationale,omitempty"`
	PredLow    *float64   `json:"pred_low,omitempty"`
	PredHigh   *float64   `json:"pred_high,omitempty"`
	Source     string     `json:"source"`
	CreatedAt  time.Time  `json:"created_at"`

	// Filled by actuals backfill once the checkpoint price is captured.
	ActualPrice *float64 `json:"actual_price,omitempty"`
	AbsError    *float64 `json:"abs_error,omitempty"`
}

// MinuteBar is one read-only OHLCV sample from the external minute feed.
type MinuteBar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// DailyOHLC is the official daily candle for a date.
type DailyOHLC struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Quote is a last-known price with its observation time and provenance.
type Quote struct {
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}
