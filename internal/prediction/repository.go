package prediction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradekit/bandtrack/internal/contracts"
)

// Postgres unique_violation error code.
const pgUniqueViolation = "23505"

// Repository implements contracts.PredictionRepository on postgres. The
// predictions table carries a unique constraint on (date, checkpoint,
// source), so physical duplicates from one generator are structurally
// impossible going forward; the newest-first read path still tolerates
// legacy duplicate rows.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new prediction repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const predictionColumns = `
	id, date, checkpoint, price, confidence, rationale,
	pred_low, pred_high, source, created_at, actual_price, abs_error
`

// ListByDateNewestFirst retrieves all prediction rows for a date ordered by
// creation time descending.
func (r *Repository) ListByDateNewestFirst(ctx context.Context, date time.Time) ([]*contracts.PredictionRecord, error) {
	query := `
		SELECT ` + predictionColumns + `
		FROM predictions
		WHERE date = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.pool.Query(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list predictions: %w", err)
	}
	defer rows.Close()

	var records []*contracts.PredictionRecord
	for rows.Next() {
		rec, err := scanPrediction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// InsertBatch writes a batch of prediction rows in one transaction,
// optionally deleting the date's existing rows first. A uniqueness
// violation rolls the whole batch back and surfaces as
// contracts.ErrDuplicatePrediction.
func (r *Repository) InsertBatch(ctx context.Context, date time.Time, records []*contracts.PredictionRecord, replaceExisting bool) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if replaceExisting {
		if _, err := tx.Exec(ctx, `DELETE FROM predictions WHERE date = $1`, date); err != nil {
			return fmt.Errorf("failed to delete existing predictions: %w", err)
		}
	}

	insert := `
		INSERT INTO predictions (date, checkpoint, price, confidence, rationale,
			pred_low, pred_high, source, created_at, actual_price, abs_error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`
	for _, rec := range records {
		err := tx.QueryRow(ctx, insert,
			rec.Date, rec.Checkpoint.String(), rec.Price, rec.Confidence, rec.Rationale,
			rec.PredLow, rec.PredHigh, rec.Source, rec.CreatedAt, rec.ActualPrice, rec.AbsError,
		).Scan(&rec.ID)
		if err != nil {
			if isUniqueViolation(err) {
				return contracts.ErrDuplicatePrediction
			}
			return fmt.Errorf("failed to insert prediction: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return contracts.ErrDuplicatePrediction
		}
		return fmt.Errorf("failed to commit predictions: %w", err)
	}
	return nil
}

// UpdateActual completes a prediction with the captured actual price.
func (r *Repository) UpdateActual(ctx context.Context, id int64, actualPrice, absError float64) error {
	query := `
		UPDATE predictions
		SET actual_price = $2, abs_error = $3
		WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, query, id, actualPrice, absError)
	if err != nil {
		return fmt.Errorf("failed to update actual: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// DeleteByDateAndSource removes a date's rows from one source. Used to
// clear simulation artifacts.
func (r *Repository) DeleteByDateAndSource(ctx context.Context, date time.Time, source string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM predictions WHERE date = $1 AND source = $2`, date, source)
	if err != nil {
		return 0, fmt.Errorf("failed to delete predictions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanPrediction(row pgx.Row) (*contracts.PredictionRecord, error) {
	var rec contracts.PredictionRecord
	var cp string
	err := row.Scan(
		&rec.ID, &rec.Date, &cp, &rec.Price, &rec.Confidence, &rec.Rationale,
		&rec.PredLow, &rec.PredHigh, &rec.Source, &rec.CreatedAt, &rec.ActualPrice, &rec.AbsError,
	)
	if err != nil {
		return nil, err
	}
	rec.Checkpoint = contracts.Checkpoint(cp)
	return &rec, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
