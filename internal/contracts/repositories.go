package contracts

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors shared across services and the API layer.
var (
	// ErrBandLocked signals an attempt to publish a band for a date whose
	// band is already locked.
	ErrBandLocked = errors.New("band already locked for date")

	// ErrDuplicatePrediction signals a storage uniqueness violation on
	// (date, checkpoint, source) during an atomic prediction write.
	ErrDuplicatePrediction = errors.New("duplicate prediction for date and checkpoint")

	// ErrCannotPredict is the terminal failure when no anchor price exists
	// and no prediction may be fabricated.
	ErrCannotPredict = errors.New("cannot predict: no anchor price available")
)

// AggregateRepository manages the per-date DailyAggregate rows. Writes are
// column scoped: SetCheckpoint touches only the captured checkpoint's field,
// LockBand only the band fields. LockBand is conditional on the stored lock
// state and must return ErrBandLocked when the date is already locked, so
// racing publishers are serialized by storage, not by in-memory snapshots.
type AggregateRepository interface {
	GetByDate(ctx context.Context, date time.Time) (*DailyAggregate, error)
	GetOrCreate(ctx context.Context, date time.Time) (*DailyAggregate, error)
	SetCheckpoint(ctx context.Context, date time.Time, cp Checkpoint, price float64) error
	LockBand(ctx context.Context, date time.Time, low, high float64, source string) error
	ListRange(ctx context.Context, from, to time.Time) ([]*DailyAggregate, error)
}

// PriceLogRepository manages the append-only capture audit log.
type PriceLogRepository interface {
	Append(ctx context.Context, entry *PriceLogEntry) error
	ListByDate(ctx context.Context, date time.Time) ([]*PriceLogEntry, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// PredictionRepository manages prediction rows. InsertBatch must surface a
// storage uniqueness violation as ErrDuplicatePrediction after rolling the
// batch back.
type PredictionRepository interface {
	ListByDateNewestFirst(ctx context.Context, date time.Time) ([]*PredictionRecord, error)
	InsertBatch(ctx context.Context, date time.Time, records []*PredictionRecord, replaceExisting bool) error
	UpdateActual(ctx context.Context, id int64, actualPrice, absError float64) error
	DeleteByDateAndSource(ctx context.Context, date time.Time, source string) (int64, error)
}
