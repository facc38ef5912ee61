package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/tradekit/bandtrack/internal/capture"
	"github.com/tradekit/bandtrack/internal/checkpoint"
	"github.com/tradekit/bandtrack/internal/marketdata"
	"github.com/tradekit/bandtrack/internal/prediction"
	"github.com/tradekit/bandtrack/internal/scheduler"
	"github.com/tradekit/bandtrack/internal/scheduler/jobs"
	"github.com/tradekit/bandtrack/internal/simulation"
	"github.com/tradekit/bandtrack/pkg/config"
	"github.com/tradekit/bandtrack/pkg/database"
	"github.com/tradekit/bandtrack/pkg/httputil"
	"github.com/tradekit/bandtrack/pkg/logger"
	"github.com/tradekit/bandtrack/pkg/redis"
)

// app holds the wired application components shared across commands.
// Construction order matters: config -> logger -> stores -> clients ->
// engines. Every command builds the same graph and picks what it needs.
type app struct {
	cfg   *config.Config
	log   *logger.Logger
	db    *database.DB
	redis *redis.Client

	loc       *time.Location
	stream    *marketdata.Stream
	engine    *capture.Engine
	service   *prediction.Service
	simulator *simulation.Simulator
}

// newApp wires the full dependency graph from configuration.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg)
	if verbose {
		cfg.LogLevel = "debug"
		log = logger.New(cfg)
	}

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := db.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	redisClient, err := redis.New(cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	cache := redis.NewCache(redisClient, "bandtrack")

	httpClient := httputil.New(log).WithRateLimit(cfg.Market.RequestsPerSec, 1)

	// Market data: chart API first, HTML scrape as quote fallback.
	chart := marketdata.NewChartClient(httpClient, log, cfg.Market.ChartBaseURL, cfg.Market.Symbol)
	scrape := marketdata.NewScrapeClient(httpClient, log, cfg.Market.ScrapeBaseURL, cfg.Market.Symbol)
	source := marketdata.NewProvider(chart, scrape, cache, cfg.Market.Symbol, cfg.Market.QuoteTTL, log)

	var stream *marketdata.Stream
	if cfg.Market.StreamURL != "" {
		stream = marketdata.NewStream(cfg.Market.StreamURL, cfg.Market.Symbol, cache, cfg.Market.QuoteTTL, log)
	}

	resolver, err := checkpoint.NewResolver(cfg.Market.Timezone)
	if err != nil {
		db.Close()
		redisClient.Close()
		return nil, fmt.Errorf("load exchange timezone: %w", err)
	}
	validator := checkpoint.NewValidator(cfg.Market.MinPrice, cfg.Market.MaxPrice)

	aggregates := capture.NewAggregateRepository(db.Pool)
	priceLogs := capture.NewPriceLogRepository(db.Pool)
	predictions := prediction.NewRepository(db.Pool)

	engine := capture.NewEngine(aggregates, priceLogs, source, resolver, validator, log)

	// The model client is optional; without an API key the predictor runs
	// baseline-only.
	var model *prediction.ModelClient
	if cfg.Model.APIKey != "" {
		modelHTTP := httputil.NewWithTimeout(log, cfg.Model.Timeout).DisableRetry()
		model = prediction.NewModelClient(modelHTTP, log, cfg.Model.BaseURL, cfg.Model.APIKey, cfg.Model.Model, cfg.Model.Timeout)
	}
	builder := prediction.NewContextBuilder(source, cfg.Model.LookbackDays)
	predictor := prediction.NewPredictor(model, prediction.NewBaseline(), builder, log.Zerolog())

	service := prediction.NewService(predictions, aggregates, predictor, log.Zerolog())
	simulator := simulation.NewSimulator(predictor, source, predictions, log.Zerolog())

	return &app{
		cfg:       cfg,
		log:       log,
		db:        db,
		redis:     redisClient,
		loc:       resolver.Location(),
		stream:    stream,
		engine:    engine,
		service:   service,
		simulator: simulator,
	}, nil
}

// Close releases database and redis connections.
func (a *app) Close() {
	if a.stream != nil {
		a.stream.Stop()
	}
	a.db.Close()
	a.redis.Close()
}

// newScheduler registers all recurring jobs on a fresh scheduler.
func (a *app) newScheduler() (*scheduler.Scheduler, error) {
	sched := scheduler.New(a.log, a.loc)

	for _, job := range jobs.NewCaptureJobs(a.engine, a.loc, a.log) {
		if err := sched.AddJob(job); err != nil {
			return nil, err
		}
	}
	if err := sched.AddJob(jobs.NewForecastJob(a.service, a.loc, a.log)); err != nil {
		return nil, err
	}
	if err := sched.AddJob(jobs.NewActualsJob(a.service, a.loc, a.log)); err != nil {
		return nil, err
	}
	if err := sched.AddJob(jobs.NewMaintenanceJob(a.engine, a.cfg.PriceLogRetention, a.log)); err != nil {
		return nil, err
	}

	return sched, nil
}
