package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string

	// Contribution caps, in cents.
	BasePerContributionCents int64
	BaseAnnualCents          int64
	ElevatedPerElectionCents int64

	// ReferenceUTCOffsetHours fixes the zone for calendar-year resets.
	ReferenceUTCOffsetHours int

	ElectionAPIBaseURL string
	ElectionAPITimeout time.Duration

	WorkerPollInterval time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	AllowedOrigins   []string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		BasePerContributionCents: getEnvInt64("BASE_PER_CONTRIBUTION_CENTS", 5000),
		BaseAnnualCents:          getEnvInt64("BASE_ANNUAL_CENTS", 20000),
		ElevatedPerElectionCents: getEnvInt64("ELEVATED_PER_ELECTION_CENTS", 350000),

		ReferenceUTCOffsetHours: getEnvInt("REFERENCE_UTC_OFFSET_HOURS", -5),

		ElectionAPIBaseURL: os.Getenv("ELECTION_API_BASE_URL"),
		ElectionAPITimeout: time.Second * time.Duration(getEnvInt("ELECTION_API_TIMEOUT_SECONDS", 5)),

		WorkerPollInterval: time.Second * time.Duration(getEnvInt("WORKER_POLL_INTERVAL_SECONDS", 2)),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = splitAndTrim(origins)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.BasePerContributionCents <= 0 || cfg.BaseAnnualCents <= 0 || cfg.ElevatedPerElectionCents <= 0 {
		return nil, fmt.Errorf("contribution caps must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
