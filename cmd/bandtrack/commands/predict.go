package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tradekit/bandtrack/internal/contracts"
)

// predictCmd generates or shows the day's predictions
var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Generate predictions for a date",
	Long: `Generate checkpoint predictions for a date, or return the
existing canonical set if one already exists. With --force a new set is
generated and replaces the old one.

With --publish the prediction band is derived from the generated set
and published to the day's aggregate. Publication locks the band; a
locked band is never overwritten.

Example:
  go run ./cmd/bandtrack predict
  go run ./cmd/bandtrack predict --date 2025-08-15 --force
  go run ./cmd/bandtrack predict --publish`,
	RunE: runPredict,
}

// actualsCmd reconciles predictions with captured prices
var actualsCmd = &cobra.Command{
	Use:   "actuals",
	Short: "Reconcile predictions with captured prices",
	Long: `Fill actual prices and absolute errors on the canonical
predictions for a date, using the checkpoint prices captured so far.
Predictions whose checkpoint has no captured price yet are left alone,
so the command can be re-run as the day fills in.`,
	RunE: runActuals,
}

var (
	predictDate    string
	predictForce   bool
	predictPublish bool
	actualsDate    string
)

func init() {
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(actualsCmd)

	predictCmd.Flags().StringVar(&predictDate, "date", "", "trading date (YYYY-MM-DD, default today)")
	predictCmd.Flags().BoolVar(&predictForce, "force", false, "regenerate even if predictions exist")
	predictCmd.Flags().BoolVar(&predictPublish, "publish", false, "publish and lock the prediction band")

	actualsCmd.Flags().StringVar(&actualsDate, "date", "", "trading date (YYYY-MM-DD, default today)")
}

func runPredict(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	date, err := resolveDate(predictDate, a.loc)
	if err != nil {
		return err
	}

	ctx := context.Background()

	records, err := a.service.CreateOrGet(ctx, date, predictForce)
	if err != nil {
		if errors.Is(err, contracts.ErrCannotPredict) {
			return fmt.Errorf("no price history to anchor a prediction for %s", date.Format(contracts.DateFormat))
		}
		return fmt.Errorf("predict: %w", err)
	}

	fmt.Printf("Predictions for %s:\n\n", date.Format(contracts.DateFormat))
	for _, rec := range records {
		line := fmt.Sprintf("  %-10s %.2f  conf %.2f  [%s]", rec.Checkpoint, rec.Price, rec.Confidence, rec.Source)
		if rec.PredLow != nil && rec.PredHigh != nil {
			line += fmt.Sprintf("  band %.2f-%.2f", *rec.PredLow, *rec.PredHigh)
		}
		fmt.Println(line)
	}

	if !predictPublish {
		return nil
	}

	low, high, ok := bandFromRecords(records)
	if !ok {
		return fmt.Errorf("prediction set carries no usable band")
	}

	agg, err := a.service.PublishBand(ctx, date, low, high, records[0].Source)
	if err != nil {
		if errors.Is(err, contracts.ErrBandLocked) {
			fmt.Println("\nBand already locked, left unchanged")
			return nil
		}
		return fmt.Errorf("publish band: %w", err)
	}

	fmt.Printf("\nBand published: %.2f - %.2f (%s)\n", *agg.PredLow, *agg.PredHigh, agg.BandSource)
	return nil
}

// bandFromRecords derives [low, high] spanning every record's interval,
// falling back to point prices for records without one.
func bandFromRecords(records []*contracts.PredictionRecord) (float64, float64, bool) {
	var low, high float64
	found := false

	for _, rec := range records {
		lo, hi := rec.Price, rec.Price
		if rec.PredLow != nil && rec.PredHigh != nil {
			lo, hi = *rec.PredLow, *rec.PredHigh
		}
		if lo <= 0 || hi <= 0 {
			continue
		}
		if !found || lo < low {
			low = lo
		}
		if !found || hi > high {
			high = hi
		}
		found = true
	}

	return low, high, found
}

func runActuals(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	date, err := resolveDate(actualsDate, a.loc)
	if err != nil {
		return err
	}

	updated, err := a.service.BackfillActuals(context.Background(), date)
	if err != nil {
		return fmt.Errorf("backfill actuals: %w", err)
	}

	fmt.Printf("Updated %d predictions for %s\n", updated, date.Format(contracts.DateFormat))
	return nil
}
