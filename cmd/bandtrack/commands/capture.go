package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tradekit/bandtrack/internal/capture"
	"github.com/tradekit/bandtrack/internal/contracts"
)

// captureCmd captures a single checkpoint price
var captureCmd = &cobra.Command{
	Use:   "capture [checkpoint]",
	Short: "Capture one checkpoint price",
	Long: `Capture one checkpoint price for a date.

Checkpoints: preMarket, open, noon, twoPM, close

A checkpoint that already holds a price is skipped unless --force is
given, so re-running this command is always safe.

Example:
  go run ./cmd/bandtrack capture close
  go run ./cmd/bandtrack capture noon --date 2025-08-15
  go run ./cmd/bandtrack capture open --date 2025-08-15 --force`,
	Args: cobra.ExactArgs(1),
	RunE: runCapture,
}

// refreshCmd runs the lazy refresh pass for today
var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Capture all of today's elapsed checkpoints",
	Long: `Capture every checkpoint whose scheduled instant has already
passed today. Checkpoints that already hold a price are skipped.`,
	RunE: runRefresh,
}

var (
	captureDate  string
	captureForce bool
)

func init() {
	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(refreshCmd)

	captureCmd.Flags().StringVar(&captureDate, "date", "", "trading date (YYYY-MM-DD, default today)")
	captureCmd.Flags().BoolVar(&captureForce, "force", false, "overwrite an existing price")
}

func runCapture(cmd *cobra.Command, args []string) error {
	cp, err := contracts.ParseCheckpoint(args[0])
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	date, err := resolveDate(captureDate, a.loc)
	if err != nil {
		return err
	}

	result, err := a.engine.Capture(context.Background(), date, cp, captureForce)
	if err != nil {
		return fmt.Errorf("capture %s: %w", cp, err)
	}

	printCaptureResult(date, *result)
	return nil
}

func runRefresh(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.engine.RefreshToday(context.Background())
	if err != nil {
		return fmt.Errorf("refresh today: %w", err)
	}

	today := time.Now().In(a.loc)
	for _, result := range results {
		printCaptureResult(today, result)
	}

	return nil
}

func printCaptureResult(date time.Time, result capture.Result) {
	line := fmt.Sprintf("%s  %-10s %s", date.Format(contracts.DateFormat), result.Checkpoint, result.Status)
	if result.Price > 0 {
		line += fmt.Sprintf("  %.2f", result.Price)
	}
	if result.Reason != "" {
		line += fmt.Sprintf("  (%s)", result.Reason)
	}
	fmt.Println(line)
}

// resolveDate parses --date or defaults to today in the exchange zone.
func resolveDate(value string, loc *time.Location) (time.Time, error) {
	if value == "" {
		now := time.Now().In(loc)
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}

	date, err := time.Parse(contracts.DateFormat, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", value)
	}
	return date, nil
}
