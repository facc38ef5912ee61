package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// All environment variables are read through this package and nowhere else.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Market data feed and instrument parameters
	Market MarketConfig

	// External prediction model
	Model ModelConfig

	// Retention window for append-only price logs
	PriceLogRetention time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration for the quote cache
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// MarketConfig holds instrument and market-data-feed configuration
type MarketConfig struct {
	Symbol   string
	Timezone string // exchange time zone, e.g. America/New_York

	// Price guard band: candidate prices outside [MinPrice, MaxPrice]
	// are rejected as feed artifacts (zero prints, unit errors).
	MinPrice float64
	MaxPrice float64

	ChartBaseURL   string
	ScrapeBaseURL  string
	StreamURL      string // optional websocket quote stream; empty disables
	QuoteTTL       time.Duration
	RequestsPerSec float64
}

// ModelConfig holds the external prediction model configuration
type ModelConfig struct {
	BaseURL      string
	APIKey       string
	Model        string
	Timeout      time.Duration
	LookbackDays int
}

// Load reads configuration from environment variables.
// Only this function calls os.Getenv().
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8087"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},

		Market: MarketConfig{
			Symbol:         getEnv("MARKET_SYMBOL", "SPY"),
			Timezone:       getEnv("MARKET_TIMEZONE", "America/New_York"),
			MinPrice:       getEnvAsFloat("MARKET_MIN_PRICE", 100),
			MaxPrice:       getEnvAsFloat("MARKET_MAX_PRICE", 2000),
			ChartBaseURL:   getEnv("MARKET_CHART_BASE_URL", "https://query1.finance.yahoo.com"),
			ScrapeBaseURL:  getEnv("MARKET_SCRAPE_BASE_URL", "https://finance.yahoo.com"),
			StreamURL:      getEnv("MARKET_STREAM_URL", ""),
			QuoteTTL:       getEnvAsDuration("MARKET_QUOTE_TTL", "1m"),
			RequestsPerSec: getEnvAsFloat("MARKET_REQUESTS_PER_SEC", 2),
		},

		Model: ModelConfig{
			BaseURL:      getEnv("MODEL_BASE_URL", "https://api.openai.com/v1"),
			APIKey:       getEnv("MODEL_API_KEY", ""),
			Model:        getEnv("MODEL_NAME", "gpt-5"),
			Timeout:      getEnvAsDuration("MODEL_TIMEOUT", "90s"),
			LookbackDays: getEnvAsInt("MODEL_LOOKBACK_DAYS", 5),
		},

		PriceLogRetention: getEnvAsDuration("PRICE_LOG_RETENTION", "2160h"), // 90 days

		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Market.MinPrice <= 0 || c.Market.MaxPrice <= c.Market.MinPrice {
		return fmt.Errorf("MARKET_MIN_PRICE/MARKET_MAX_PRICE must satisfy 0 < min < max")
	}

	if _, err := time.LoadLocation(c.Market.Timezone); err != nil {
		return fmt.Errorf("MARKET_TIMEZONE %q is not a valid IANA zone: %w", c.Market.Timezone, err)
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
