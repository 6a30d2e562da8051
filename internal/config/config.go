package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Ledger store. An empty path runs on the in-memory ledger.
	DatabasePath string

	// Timeouts applied to every store and cache call
	StoreTimeout time.Duration
	CacheTimeout time.Duration

	// Derived-value cache
	BudgetCacheTTL  time.Duration
	ReportCacheTTL  time.Duration
	CacheMaxEntries int

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Events. An empty URL logs events instead of publishing them.
	AMQPURL      string
	AMQPExchange string

	// Observability
	OTLPEndpoint string

	// JWT / Auth
	JWTSecret string

	// Alert sweeper
	AlertSweepInterval time.Duration
}

// LoadDotEnv loads a .env file into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return err
		}
	}
	return nil
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabasePath: getEnv("DATABASE_PATH", "data/fincore.db"),

		StoreTimeout: getEnvDuration("STORE_TIMEOUT", 2*time.Second),
		CacheTimeout: getEnvDuration("CACHE_TIMEOUT", 200*time.Millisecond),

		BudgetCacheTTL:  getEnvDuration("BUDGET_CACHE_TTL", 30*time.Minute),
		ReportCacheTTL:  getEnvDuration("REPORT_CACHE_TTL", time.Hour),
		CacheMaxEntries: getEnvInt("CACHE_MAX_ENTRIES", 10000),

		MaxRetries:     getEnvInt("MAX_RETRIES", 2),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 50*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 8),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "fincore.events"),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		JWTSecret: getEnv("JWT_SECRET", "fincore-default-dev-secret-change-me"),

		AlertSweepInterval: getEnvDuration("ALERT_SWEEP_INTERVAL", 15*time.Minute),
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
