package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bandtrack",
	Short: "Daily prediction band tracker",
	Long: `bandtrack captures checkpoint prices for a tradable instrument,
generates daily prediction bands and reconciles predictions against
what the market actually did.

Usage:
  go run ./cmd/bandtrack [command]

Examples:
  go run ./cmd/bandtrack api
  go run ./cmd/bandtrack scheduler start
  go run ./cmd/bandtrack capture close --date 2025-08-15
  go run ./cmd/bandtrack backfill --from 2025-08-01 --to 2025-08-15
  go run ./cmd/bandtrack simulate --from 2025-07-01 --to 2025-07-31`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
