package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tradekit/bandtrack/internal/capture"
	"github.com/tradekit/bandtrack/internal/contracts"
)

// statusCmd shows one day's aggregate and predictions
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show checkpoint prices and predictions for a date",
	Long: `Show the captured checkpoint prices, prediction band and
canonical predictions for a date.

Example:
  go run ./cmd/bandtrack status
  go run ./cmd/bandtrack status --date 2025-08-15`,
	RunE: runStatus,
}

var statusDate string

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusDate, "date", "", "trading date (YYYY-MM-DD, default today)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	date, err := resolveDate(statusDate, a.loc)
	if err != nil {
		return err
	}

	ctx := context.Background()
	aggregates := capture.NewAggregateRepository(a.db.Pool)

	agg, err := aggregates.GetByDate(ctx, date)
	if err != nil {
		return fmt.Errorf("load day: %w", err)
	}
	if agg == nil {
		fmt.Printf("No data for %s\n", date.Format(contracts.DateFormat))
		return nil
	}

	fmt.Printf("=== %s (%s) ===\n\n", date.Format(contracts.DateFormat), a.cfg.Market.Symbol)

	fmt.Println("Checkpoints:")
	for _, cp := range contracts.AllCheckpoints {
		if price := agg.CheckpointPrice(cp); price != nil {
			fmt.Printf("  %-10s %.2f\n", cp, *price)
		} else {
			fmt.Printf("  %-10s -\n", cp)
		}
	}

	fmt.Println("\nBand:")
	if agg.PredLow != nil && agg.PredHigh != nil {
		lock := ""
		if agg.BandLocked {
			lock = fmt.Sprintf("  [locked, %s]", agg.BandSource)
		}
		fmt.Printf("  %.2f - %.2f%s\n", *agg.PredLow, *agg.PredHigh, lock)
	} else {
		fmt.Println("  not published")
	}

	if agg.RangeHit != nil && agg.AbsErrorToClose != nil {
		fmt.Println("\nOutcome:")
		fmt.Printf("  range hit:          %t\n", *agg.RangeHit)
		fmt.Printf("  abs error to close: %.2f\n", *agg.AbsErrorToClose)
	}

	records, err := a.service.GetCanonical(ctx, date)
	if err != nil {
		return fmt.Errorf("load predictions: %w", err)
	}
	if len(records) > 0 {
		fmt.Println("\nPredictions:")
		for _, rec := range records {
			line := fmt.Sprintf("  %-10s %.2f  conf %.2f  [%s]", rec.Checkpoint, rec.Price, rec.Confidence, rec.Source)
			if rec.ActualPrice != nil && rec.AbsError != nil {
				line += fmt.Sprintf("  actual %.2f (err %.2f)", *rec.ActualPrice, *rec.AbsError)
			}
			fmt.Println(line)
		}
	}

	return nil
}
