package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tradekit/bandtrack/internal/contracts"
	"github.com/tradekit/bandtrack/internal/simulation"
)

// simulateCmd backtests the baseline predictor over a historical range
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Backtest predictions over a historical range",
	Long: `Replay the baseline predictor over a historical date range and
grade it against what the market actually did.

Each simulated date only sees data from strictly before it, so the
results carry no hindsight. The range must end before today.

With --persist the simulated predictions are written to the database
tagged with source "simulation", replacing any previous simulation rows
for the same dates.

Example:
  go run ./cmd/bandtrack simulate --from 2025-07-01 --to 2025-07-31
  go run ./cmd/bandtrack simulate --from 2025-07-01 --to 2025-07-31 --persist`,
	RunE: runSimulate,
}

var (
	simulateFrom    string
	simulateTo      string
	simulatePersist bool
	simulateDays    bool
)

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().StringVar(&simulateFrom, "from", "", "start date (YYYY-MM-DD)")
	simulateCmd.Flags().StringVar(&simulateTo, "to", "", "end date (YYYY-MM-DD)")
	simulateCmd.Flags().BoolVar(&simulatePersist, "persist", false, "persist simulated predictions")
	simulateCmd.Flags().BoolVar(&simulateDays, "days", false, "print per-day results")
	simulateCmd.MarkFlagRequired("from")
	simulateCmd.MarkFlagRequired("to")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	from, err := time.Parse(contracts.DateFormat, simulateFrom)
	if err != nil {
		return fmt.Errorf("invalid --from %q (want YYYY-MM-DD)", simulateFrom)
	}
	to, err := time.Parse(contracts.DateFormat, simulateTo)
	if err != nil {
		return fmt.Errorf("invalid --to %q (want YYYY-MM-DD)", simulateTo)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Printf("Simulating %s .. %s\n\n", from.Format(contracts.DateFormat), to.Format(contracts.DateFormat))

	report, err := a.simulator.Run(context.Background(), from, to, simulatePersist)
	if err != nil {
		return fmt.Errorf("simulate: %w", err)
	}

	fmt.Printf("Days simulated: %d\n", report.Days)
	fmt.Printf("Overall MAE:    %.3f\n", report.OverallMAE)
	fmt.Printf("Hit rate:       %.1f%%\n", report.HitRate*100)
	fmt.Printf("Grade:          %s\n", report.Grade)

	fmt.Println("\nPer checkpoint:")
	for _, cp := range contracts.IntradayCheckpoints {
		stats, ok := report.PerCheckpoint[cp]
		if !ok {
			continue
		}
		fmt.Printf("  %-10s n=%d  mae=%.3f  hit=%.1f%%\n", cp, stats.Count, stats.MAE, stats.HitRate*100)
	}

	fmt.Println("\nPer confidence bucket:")
	for _, bucket := range []string{simulation.BucketHigh, simulation.BucketMedium, simulation.BucketLow} {
		stats, ok := report.PerConfidence[bucket]
		if !ok {
			continue
		}
		fmt.Printf("  %-6s n=%d  mae=%.3f  hit=%.1f%%\n", bucket, stats.Count, stats.MAE, stats.HitRate*100)
	}

	if report.BestDay != nil {
		fmt.Printf("\nBest day:  %s (mae %.3f)\n", report.BestDay.Date.Format(contracts.DateFormat), report.BestDay.MAE)
	}
	if report.WorstDay != nil {
		fmt.Printf("Worst day: %s (mae %.3f)\n", report.WorstDay.Date.Format(contracts.DateFormat), report.WorstDay.MAE)
	}

	if len(report.SkippedDates) > 0 {
		fmt.Println("\nSkipped dates (no market data):")
		for _, d := range report.SkippedDates {
			fmt.Printf("  - %s\n", d)
		}
	}

	if simulateDays {
		fmt.Println("\nPer day:")
		for _, day := range report.DayResults {
			fmt.Printf("  %s  mae=%.3f\n", day.Date.Format(contracts.DateFormat), day.MAE)
		}
	}

	return nil
}
