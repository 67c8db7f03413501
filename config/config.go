package config

import (
	"os"
	"strconv"
	"time"

	errs "hemnetscraper/pkg/errors"
)

// Run modes accepted by RunMode.
const (
	RunModeActive = "active"
	RunModeSold   = "sold"
	RunModeBoth   = "both"
)

// Fetch modes accepted by FetchMode.
const (
	FetchModeChrome = "chrome"
	FetchModeHTTP   = "http"
)

// Config represents the application configuration
type Config struct {
	// PostgreSQL configuration
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis configuration (optional; empty addr disables publishing)
	RedisAddr         string
	RedisDB           int
	RedisStream       string
	RedisStreamMaxLen int

	// Memcache configuration (optional; empty addr disables the known-ID cache)
	MemcacheAddr string
	KnownIDTTL   time.Duration

	// Crawl configuration
	BaseURL              string
	MaxPages             int
	ActiveKnownThreshold int
	SoldKnownThreshold   int
	DelayMin             time.Duration
	DelayMax             time.Duration
	CrawlInterval        time.Duration
	RunMode              string
	RunOnce              bool

	// Fetcher configuration
	FetchMode    string
	ChromeBin    string
	FetchTimeout time.Duration

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	return Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresDB:       getEnv("POSTGRES_DB", "real_estate"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisDB:           redisDB,
		RedisStream:       getEnv("REDIS_STREAM", "hemnet"),
		RedisStreamMaxLen: getEnvInt("REDIS_STREAM_MAX_LENGTH", 500),

		MemcacheAddr: getEnv("MEMCACHE_ADDR", ""),
		KnownIDTTL:   getEnvDuration("KNOWN_ID_TTL_SECONDS", 24*time.Hour),

		BaseURL:              getEnv("HEMNET_BASE_URL", "https://www.hemnet.se"),
		MaxPages:             getEnvInt("MAX_PAGES", 50),
		ActiveKnownThreshold: getEnvInt("ACTIVE_KNOWN_THRESHOLD", 3),
		SoldKnownThreshold:   getEnvInt("SOLD_KNOWN_THRESHOLD", 50),
		DelayMin:             getEnvDuration("DELAY_MIN_MS", 2000*time.Millisecond),
		DelayMax:             getEnvDuration("DELAY_MAX_MS", 5000*time.Millisecond),
		CrawlInterval:        getEnvDuration("CRAWL_INTERVAL_SECONDS", 24*time.Hour),
		RunMode:              getEnv("RUN_MODE", RunModeBoth),
		RunOnce:              getEnv("RUN_ONCE", "false") == "true",

		FetchMode:    getEnv("FETCH_MODE", FetchModeChrome),
		ChromeBin:    getEnv("CHROME_BIN", ""),
		FetchTimeout: getEnvDuration("FETCH_TIMEOUT_SECONDS", 60*time.Second),

		Environment: getEnv("HEMNET_ENVIRONMENT", "development"),
	}
}

// DSN returns the PostgreSQL connection string
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// Validate checks the configuration for invalid combinations
func (c *Config) Validate() error {
	if c.MaxPages < 1 {
		return errs.NewConfigurationError("MAX_PAGES must be at least 1")
	}
	if c.ActiveKnownThreshold < 1 || c.SoldKnownThreshold < 1 {
		return errs.NewConfigurationError("consecutive-known thresholds must be at least 1")
	}
	if c.DelayMin < 0 || c.DelayMax < c.DelayMin {
		return errs.NewConfigurationError("delay range is invalid")
	}
	switch c.RunMode {
	case RunModeActive, RunModeSold, RunModeBoth:
	default:
		return errs.NewConfigurationError("RUN_MODE must be active, sold or both")
	}
	switch c.FetchMode {
	case FetchModeChrome, FetchModeHTTP:
	default:
		return errs.NewConfigurationError("FETCH_MODE must be chrome or http")
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// getEnvDuration reads an integer env var and scales it by the unit
// implied by the key suffix (_MS or _SECONDS).
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	if len(key) > 3 && key[len(key)-3:] == "_MS" {
		return time.Duration(n) * time.Millisecond
	}
	return time.Duration(n) * time.Second
}
