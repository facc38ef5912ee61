package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// cleanupCmd prunes old price log entries
var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Prune old price log entries",
	Long: `Delete price log entries older than the retention window.

The retention window comes from PRICE_LOG_RETENTION (default 90 days)
and can be overridden with --retention.

Example:
  go run ./cmd/bandtrack cleanup
  go run ./cmd/bandtrack cleanup --retention 720h`,
	RunE: runCleanup,
}

var cleanupRetention time.Duration

func init() {
	rootCmd.AddCommand(cleanupCmd)

	cleanupCmd.Flags().DurationVar(&cleanupRetention, "retention", 0, "retention window (e.g. 720h), 0 uses config")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	retention := a.cfg.PriceLogRetention
	if cleanupRetention > 0 {
		retention = cleanupRetention
	}

	deleted, err := a.engine.CleanupLogs(context.Background(), retention)
	if err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}

	fmt.Printf("Deleted %d price log entries older than %s\n", deleted, retention)
	return nil
}
