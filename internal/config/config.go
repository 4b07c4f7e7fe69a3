package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName         = "CardFund"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultRateCacheTTL    = 30 * time.Second
	defaultRateRefresh     = 30 * time.Second
	defaultSourceTimeout   = 5 * time.Second
	defaultHistoryRetain   = 7 * 24 * time.Hour
	defaultQuoteValidity   = 5 * time.Minute
	defaultBlockThreshold  = 80
	defaultFreezeThreshold = 95
)

// RateSource identifies one upstream price feed.
type RateSource struct {
	Name string
	URL  string
}

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	// Rate aggregation. Sources are name=url pairs tried in listed order;
	// stablecoins are always served from the built-in fixed source.
	RateSources      []RateSource
	RateSymbols      []string
	RateCacheTTL     time.Duration
	RateRefreshEvery time.Duration
	SourceTimeout    time.Duration
	HistoryRetention time.Duration

	// Quotes.
	QuoteValidity time.Duration

	// Fraud policy thresholds.
	RiskBlockThreshold  int
	RiskFreezeThreshold int
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:             getEnv("APP_NAME", defaultAppName),
		AppEnv:              getEnv("APP_ENV", defaultAppEnv),
		Port:                getEnv("PORT", defaultPort),
		LogLevel:            strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisURL:            os.Getenv("REDIS_URL"),
		ShutdownPeriod:      defaultShutdownDelay,
		IdempotencyTTL:      defaultIdempotencyTTL,
		RateCacheTTL:        defaultRateCacheTTL,
		RateRefreshEvery:    defaultRateRefresh,
		SourceTimeout:       defaultSourceTimeout,
		HistoryRetention:    defaultHistoryRetain,
		QuoteValidity:       defaultQuoteValidity,
		RiskBlockThreshold:  defaultBlockThreshold,
		RiskFreezeThreshold: defaultFreezeThreshold,
	}

	durations := []struct {
		env    string
		target *time.Duration
	}{
		{"SHUTDOWN_TIMEOUT", &cfg.ShutdownPeriod},
		{"IDEMPOTENCY_TTL", &cfg.IdempotencyTTL},
		{"RATE_CACHE_TTL", &cfg.RateCacheTTL},
		{"RATE_REFRESH_INTERVAL", &cfg.RateRefreshEvery},
		{"RATE_SOURCE_TIMEOUT", &cfg.SourceTimeout},
		{"RATE_HISTORY_RETENTION", &cfg.HistoryRetention},
		{"QUOTE_VALIDITY", &cfg.QuoteValidity},
	}
	for _, d := range durations {
		if v := os.Getenv(d.env); v != "" {
			parsed, err := time.ParseDuration(v)
			if err != nil {
				return Config{}, fmt.Errorf("invalid %s: %w", d.env, err)
			}
			*d.target = parsed
		}
	}

	thresholds := []struct {
		env    string
		target *int
	}{
		{"RISK_BLOCK_THRESHOLD", &cfg.RiskBlockThreshold},
		{"RISK_FREEZE_THRESHOLD", &cfg.RiskFreezeThreshold},
	}
	for _, t := range thresholds {
		if v := os.Getenv(t.env); v != "" {
			parsed, err := strconv.Atoi(v)
			if err != nil {
				return Config{}, fmt.Errorf("invalid %s: %w", t.env, err)
			}
			*t.target = parsed
		}
	}

	cfg.RateSymbols = splitList(getEnv("RATE_SYMBOLS", "BTC,ETH,XRP,USDC,USDT"))
	for _, pair := range splitList(os.Getenv("RATE_SOURCES")) {
		name, url, ok := strings.Cut(pair, "=")
		if !ok || name == "" || url == "" {
			return Config{}, fmt.Errorf("invalid RATE_SOURCES entry %q, want name=url", pair)
		}
		cfg.RateSources = append(cfg.RateSources, RateSource{Name: name, URL: url})
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL must be set")
	}

	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("REDIS_URL must be set")
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
