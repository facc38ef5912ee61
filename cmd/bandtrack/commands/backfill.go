package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tradekit/bandtrack/internal/contracts"
)

// backfillCmd fills historical checkpoint prices for a date range
var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Backfill checkpoint prices for a date range",
	Long: `Backfill checkpoint prices for a historical date range.

Weekends are skipped. Dates whose market data cannot be fetched are
recorded and the run continues; already-populated checkpoints are left
alone unless --force is given.

Example:
  go run ./cmd/bandtrack backfill --from 2025-08-01 --to 2025-08-15
  go run ./cmd/bandtrack backfill --from 2025-08-01 --to 2025-08-15 --force`,
	RunE: runBackfill,
}

var (
	backfillFrom  string
	backfillTo    string
	backfillForce bool
)

func init() {
	rootCmd.AddCommand(backfillCmd)

	backfillCmd.Flags().StringVar(&backfillFrom, "from", "", "start date (YYYY-MM-DD)")
	backfillCmd.Flags().StringVar(&backfillTo, "to", "", "end date (YYYY-MM-DD)")
	backfillCmd.Flags().BoolVar(&backfillForce, "force", false, "overwrite existing prices")
	backfillCmd.MarkFlagRequired("from")
	backfillCmd.MarkFlagRequired("to")
}

func runBackfill(cmd *cobra.Command, args []string) error {
	from, err := time.Parse(contracts.DateFormat, backfillFrom)
	if err != nil {
		return fmt.Errorf("invalid --from %q (want YYYY-MM-DD)", backfillFrom)
	}
	to, err := time.Parse(contracts.DateFormat, backfillTo)
	if err != nil {
		return fmt.Errorf("invalid --to %q (want YYYY-MM-DD)", backfillTo)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Printf("Backfilling %s .. %s\n\n", from.Format(contracts.DateFormat), to.Format(contracts.DateFormat))

	summary, err := a.engine.BackfillRange(context.Background(), from, to, backfillForce)
	if err != nil {
		return fmt.Errorf("backfill: %w", err)
	}

	fmt.Printf("Days processed: %d\n", summary.Days)
	fmt.Printf("Captured:       %d\n", summary.Captured)
	fmt.Printf("Skipped:        %d\n", summary.Skipped)
	fmt.Printf("Unavailable:    %d\n", summary.Unavailable)
	fmt.Printf("Invalid:        %d\n", summary.Invalid)

	if len(summary.FailedDates) > 0 {
		fmt.Println("\nFailed dates:")
		for _, d := range summary.FailedDates {
			fmt.Printf("  - %s\n", d)
		}
	}

	return nil
}
