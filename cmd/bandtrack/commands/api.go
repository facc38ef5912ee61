package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tradekit/bandtrack/internal/api"
	"github.com/tradekit/bandtrack/internal/api/handlers"
	"github.com/tradekit/bandtrack/internal/capture"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the REST API server",
	Long: `Start the REST API server.

Endpoints:
  GET  /health                       - Health check
  GET  /api/days                     - List daily aggregates in a range
  GET  /api/days/{date}              - One day (lazy-refreshes today)
  POST /api/days/{date}/band         - Publish and lock the prediction band
  POST /api/capture                  - Capture one checkpoint
  POST /api/backfill                 - Backfill a date range
  GET  /api/predictions/{date}       - Canonical predictions per checkpoint
  POST /api/predictions/{date}       - Generate predictions (idempotent)
  POST /api/predictions/{date}/actuals - Reconcile predictions with actuals
  POST /api/simulate                 - Run a historical simulation
  GET  /api/scheduler/status         - Scheduler job statistics

Example:
  go run ./cmd/bandtrack api
  go run ./cmd/bandtrack api --port 8087 --with-scheduler`,
	RunE: runAPIServer,
}

var (
	apiPort          string
	apiWithScheduler bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (overrides PORT)")
	apiCmd.Flags().BoolVar(&apiWithScheduler, "with-scheduler", false, "run the checkpoint scheduler in the same process")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	a.log.WithFields(map[string]interface{}{
		"port":   a.cfg.Port,
		"symbol": a.cfg.Market.Symbol,
		"env":    a.cfg.Env,
	}).Info("Initializing API server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if a.stream != nil {
		a.stream.Start(ctx)
	}

	var stats handlers.SchedulerStats
	if apiWithScheduler {
		sched, err := a.newScheduler()
		if err != nil {
			return fmt.Errorf("init scheduler: %w", err)
		}
		sched.Start()
		defer sched.Stop()
		stats = sched

		a.log.Info("Embedded scheduler started")
	}

	aggregates := capture.NewAggregateRepository(a.db.Pool)

	dayHandler := handlers.NewDayHandler(aggregates, a.engine, a.loc, a.log)
	predictionHandler := handlers.NewPredictionHandler(a.service, a.log)
	simulationHandler := handlers.NewSimulationHandler(a.simulator, a.log)
	schedulerHandler := handlers.NewSchedulerHandler(stats, a.log)

	router := api.NewRouter(dayHandler, predictionHandler, simulationHandler, schedulerHandler, a.log)
	server := api.New(a.cfg, a.log, router)

	go func() {
		if err := server.Start(); err != nil {
			a.log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	a.log.Info("Server stopped")
	return nil
}
