package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradekit/bandtrack/internal/contracts"
)

// AggregateRepository implements contracts.AggregateRepository on postgres.
type AggregateRepository struct {
	pool *pgxpool.Pool
}

// NewAggregateRepository creates a new aggregate repository
func NewAggregateRepository(pool *pgxpool.Pool) *AggregateRepository {
	return &AggregateRepository{pool: pool}
}

const aggregateColumns = `
	date, pre_market, open_price, noon_price, two_pm_price, close_price,
	pred_low, pred_high, band_locked, band_source,
	range_hit, abs_error_to_close, created_at, updated_at
`

// GetByDate retrieves the aggregate for a date. Returns (nil, nil) when the
// date has no row yet.
func (r *AggregateRepository) GetByDate(ctx context.Context, date time.Time) (*contracts.DailyAggregate, error) {
	query := `
		SELECT ` + aggregateColumns + `
		FROM daily_aggregates
		WHERE date = $1
	`

	agg, err := scanAggregate(r.pool.QueryRow(ctx, query, date))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get aggregate: %w", err)
	}
	return agg, nil
}

// GetOrCreate loads the aggregate for a date, inserting an empty row first
// when none exists. Safe under races: the insert is ON CONFLICT DO NOTHING
// and the subsequent read sees whichever row won.
func (r *AggregateRepository) GetOrCreate(ctx context.Context, date time.Time) (*contracts.DailyAggregate, error) {
	insert := `
		INSERT INTO daily_aggregates (date, created_at, updated_at)
		VALUES ($1, NOW(), NOW())
		ON CONFLICT (date) DO NOTHING
	`
	if _, err := r.pool.Exec(ctx, insert, date); err != nil {
		return nil, fmt.Errorf("failed to create aggregate: %w", err)
	}

	agg, err := r.GetByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	if agg == nil {
		return nil, fmt.Errorf("aggregate missing after insert for %s", date.Format(contracts.DateFormat))
	}
	return agg, nil
}

var checkpointColumn = map[contracts.Checkpoint]string{
	contracts.CheckpointPreMarket: "pre_market",
	contracts.CheckpointOpen:      "open_price",
	contracts.CheckpointNoon:      "noon_price",
	contracts.CheckpointTwoPM:     "two_pm_price",
	contracts.CheckpointClose:     "close_price",
}

// SetCheckpoint writes one checkpoint price into its own column. Only that
// column (plus the derived fields when the close lands) is touched, so
// concurrent writers to other checkpoints or the band never lose updates.
func (r *AggregateRepository) SetCheckpoint(ctx context.Context, date time.Time, cp contracts.Checkpoint, price float64) error {
	col, ok := checkpointColumn[cp]
	if !ok {
		return fmt.Errorf("unknown checkpoint: %q", cp)
	}

	query := fmt.Sprintf(`
		UPDATE daily_aggregates
		SET %s = $2, updated_at = NOW()
		WHERE date = $1
	`, col)
	if cp == contracts.CheckpointClose {
		query = `
			UPDATE daily_aggregates
			SET close_price = $2,
				range_hit = CASE WHEN pred_low IS NOT NULL AND pred_high IS NOT NULL
					THEN $2 BETWEEN pred_low AND pred_high ELSE range_hit END,
				abs_error_to_close = CASE WHEN pred_low IS NOT NULL AND pred_high IS NOT NULL
					THEN ABS($2 - (pred_low + pred_high) / 2) ELSE abs_error_to_close END,
				updated_at = NOW()
			WHERE date = $1
		`
	}

	tag, err := r.pool.Exec(ctx, query, date, price)
	if err != nil {
		return fmt.Errorf("failed to set checkpoint: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no aggregate row for %s", date.Format(contracts.DateFormat))
	}
	return nil
}

// LockBand sets the band and the lock in one conditional update. The WHERE
// clause carries the one-way guard: a row already locked matches nothing and
// the caller gets contracts.ErrBandLocked, whatever its in-memory snapshot
// said. Derived fields are recomputed in the same statement when the close
// is already captured.
func (r *AggregateRepository) LockBand(ctx context.Context, date time.Time, low, high float64, source string) error {
	query := `
		UPDATE daily_aggregates
		SET pred_low = $2,
			pred_high = $3,
			band_locked = TRUE,
			band_source = $4,
			range_hit = CASE WHEN close_price IS NOT NULL
				THEN close_price BETWEEN $2 AND $3 END,
			abs_error_to_close = CASE WHEN close_price IS NOT NULL
				THEN ABS(close_price - ($2 + $3) / 2) END,
			updated_at = NOW()
		WHERE date = $1 AND band_locked = FALSE
	`

	tag, err := r.pool.Exec(ctx, query, date, low, high, source)
	if err != nil {
		return fmt.Errorf("failed to lock band: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Callers create the row first, so zero rows means already locked.
		return contracts.ErrBandLocked
	}
	return nil
}

// ListRange retrieves aggregates with date in [from, to], ascending.
func (r *AggregateRepository) ListRange(ctx context.Context, from, to time.Time) ([]*contracts.DailyAggregate, error) {
	query := `
		SELECT ` + aggregateColumns + `
		FROM daily_aggregates
		WHERE date BETWEEN $1 AND $2
		ORDER BY date ASC
	`

	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list aggregates: %w", err)
	}
	defer rows.Close()

	var aggs []*contracts.DailyAggregate
	for rows.Next() {
		agg, err := scanAggregate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan aggregate: %w", err)
		}
		aggs = append(aggs, agg)
	}
	return aggs, rows.Err()
}

func scanAggregate(row pgx.Row) (*contracts.DailyAggregate, error) {
	var a contracts.DailyAggregate
	err := row.Scan(
		&a.Date, &a.PreMarket, &a.Open, &a.Noon, &a.TwoPM, &a.Close,
		&a.PredLow, &a.PredHigh, &a.BandLocked, &a.BandSource,
		&a.RangeHit, &a.AbsErrorToClose, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// PriceLogRepository implements contracts.PriceLogRepository on postgres.
type PriceLogRepository struct {
	pool *pgxpool.Pool
}

// NewPriceLogRepository creates a new price log repository
func NewPriceLogRepository(pool *pgxpool.Pool) *PriceLogRepository {
	return &PriceLogRepository{pool: pool}
}

// Append writes one immutable audit record.
func (r *PriceLogRepository) Append(ctx context.Context, entry *contracts.PriceLogEntry) error {
	query := `
		INSERT INTO price_logs (date, checkpoint, price, captured_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	err := r.pool.QueryRow(ctx, query,
		entry.Date, entry.Checkpoint.String(), entry.Price, entry.CapturedAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to append price log: %w", err)
	}
	return nil
}

// ListByDate retrieves audit records for a date in capture order.
func (r *PriceLogRepository) ListByDate(ctx context.Context, date time.Time) ([]*contracts.PriceLogEntry, error) {
	query := `
		SELECT id, date, checkpoint, price, captured_at
		FROM price_logs
		WHERE date = $1
		ORDER BY captured_at ASC
	`

	rows, err := r.pool.Query(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list price logs: %w", err)
	}
	defer rows.Close()

	var entries []*contracts.PriceLogEntry
	for rows.Next() {
		var e contracts.PriceLogEntry
		var cp string
		if err := rows.Scan(&e.ID, &e.Date, &cp, &e.Price, &e.CapturedAt); err != nil {
			return nil, fmt.Errorf("failed to scan price log: %w", err)
		}
		e.Checkpoint = contracts.Checkpoint(cp)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// DeleteOlderThan removes audit records captured before the cutoff. The only
// path that ever deletes price logs.
func (r *PriceLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM price_logs WHERE captured_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old price logs: %w", err)
	}
	return tag.RowsAffected(), nil
}
