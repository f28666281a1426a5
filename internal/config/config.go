package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	// Remote API
	APIKey            string
	BaseURL           string        `validate:"required,url"`
	Region            string        `validate:"required,alpha"`
	RequestsPerSecond float64       `validate:"gte=0"`
	RetryBaseInterval time.Duration `validate:"gt=0"`
	RetryMaxInterval  time.Duration `validate:"gtefield=RetryBaseInterval"`
	HTTPTimeout       time.Duration `validate:"gt=0"`

	// Storage
	DataDir      string        `validate:"required"`
	LedgerFile   string        `validate:"required"`
	MatchListTTL time.Duration `validate:"gt=0"`
	PlayerTTL    time.Duration `validate:"gt=0"`
	TierTTL      time.Duration `validate:"gt=0"`
	LRUSize      int           `validate:"gte=1"`
	RedisURL     string        `validate:"omitempty,url"`

	// Crawl
	CrawlWidth          int           `validate:"gte=1,lte=1000"`
	CrawlCycleInterval  time.Duration `validate:"gt=0"`
	SeedPlayerIDs       []int64
	MatchVersionPrefix  string
	QueueType           string        `validate:"required"`
	LedgerBatchSize     int           `validate:"gte=1"`
	LedgerFlushInterval time.Duration `validate:"gt=0"`
	PositionPolicyFile  string

	// Estimation
	PlayerSmoothing     float64 `validate:"gt=0"`
	PopulationSmoothing float64 `validate:"gt=0"`
	MinSamples          int     `validate:"gte=0"`

	// Server
	Port           int    `validate:"gte=1,lte=65535"`
	Env            string `validate:"oneof=development production"`
	AllowedOrigins []string
}

// Load loads configuration from environment variables, after reading a .env
// file from the working directory when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", "data")
	cfg := &Config{
		APIKey:            getEnv("RIOT_API_KEY", ""),
		BaseURL:           getEnv("RIOT_BASE_URL", "https://na.api.pvp.net"),
		Region:            getEnv("RIOT_REGION", "na"),
		RequestsPerSecond: getEnvFloat("REQUESTS_PER_SECOND", 500.0/600.0),
		RetryBaseInterval: getEnvDuration("RETRY_BASE_INTERVAL", time.Second),
		RetryMaxInterval:  getEnvDuration("RETRY_MAX_INTERVAL", 5*time.Minute),
		HTTPTimeout:       getEnvDuration("HTTP_TIMEOUT", 15*time.Second),

		DataDir:      dataDir,
		LedgerFile:   getEnv("LEDGER_FILE", filepath.Join(dataDir, "match.csv")),
		MatchListTTL: getEnvDuration("MATCHLIST_TTL", time.Minute),
		PlayerTTL:    getEnvDuration("PLAYER_TTL", time.Hour),
		TierTTL:      getEnvDuration("TIER_TTL", time.Hour),
		LRUSize:      getEnvInt("LRU_SIZE", 4096),
		RedisURL:     getEnv("REDIS_URL", ""),

		CrawlWidth:          getEnvInt("CRAWL_WIDTH", 100),
		CrawlCycleInterval:  getEnvDuration("CRAWL_CYCLE_INTERVAL", time.Minute),
		MatchVersionPrefix:  getEnv("MATCH_VERSION_PREFIX", ""),
		QueueType:           getEnv("QUEUE_TYPE", "RANKED_SOLO_5x5"),
		LedgerBatchSize:     getEnvInt("LEDGER_BATCH_SIZE", 100),
		LedgerFlushInterval: getEnvDuration("LEDGER_FLUSH_INTERVAL", time.Second),
		PositionPolicyFile:  getEnv("POSITION_POLICY_FILE", ""),

		PlayerSmoothing:     getEnvFloat("PLAYER_SMOOTHING", 10),
		PopulationSmoothing: getEnvFloat("POPULATION_SMOOTHING", 1000),
		MinSamples:          getEnvInt("MIN_SAMPLES", 100),

		Port: getEnvInt("PORT", 8080),
		Env:  getEnv("ENV", "development"),
	}

	// CORS
	for _, o := range strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:3000"), ",") {
		if trimmed := strings.TrimSpace(o); trimmed != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
		}
	}

	var err error
	if cfg.SeedPlayerIDs, err = parseIDs(getEnv("SEED_PLAYER_IDS", "")); err != nil {
		return nil, fmt.Errorf("SEED_PLAYER_IDS: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// RequireAPIKey fails when no remote API key is configured.
func (c *Config) RequireAPIKey() error {
	if c.APIKey == "" {
		return errors.New("missing required environment variable: RIOT_API_KEY")
	}
	return nil
}

// CacheDir is the root of the durable entity cache.
func (c *Config) CacheDir() string {
	return filepath.Join(c.DataDir, "cache")
}

// ExportDir receives the exported statistics tables.
func (c *Config) ExportDir() string {
	return filepath.Join(c.DataDir, "stats")
}

func parseIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
