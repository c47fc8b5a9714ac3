package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	Trends    TrendsConfig
	Headlines HeadlinesConfig
	Refresh   RefreshConfig

	PricingFile string
}

// TrendsConfig configures the trending-topics provider (OpenAI-compatible
// chat completions, xAI by default).
type TrendsConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	TTL     time.Duration
}

// HeadlinesConfig configures the headline-digest provider (local RSS feeds
// summarized through the Anthropic messages API).
type HeadlinesConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	TTL     time.Duration
	Feeds   string // optional "Name|URL|priority;..." override of the built-in feed set
}

// RefreshConfig controls the background refresh loop.
type RefreshConfig struct {
	Interval     time.Duration
	FetchTimeout time.Duration
	Categories   []string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "pulse"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "pulse"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),

		Trends: TrendsConfig{
			BaseURL: getenv("XAI_BASE_URL", "https://api.x.ai/v1"),
			APIKey:  strings.TrimSpace(getenv("XAI_API_KEY", "")),
			Model:   getenv("PULSE_TRENDS_MODEL", "grok-3-fast"),
			TTL:     getenvDuration("PULSE_TRENDS_TTL", 4*time.Hour),
		},
		Headlines: HeadlinesConfig{
			BaseURL: getenv("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
			APIKey:  strings.TrimSpace(getenv("ANTHROPIC_API_KEY", "")),
			Model:   getenv("PULSE_HEADLINES_MODEL", "claude-haiku-4-5-20251001"),
			TTL:     getenvDuration("PULSE_HEADLINES_TTL", 6*time.Hour),
			Feeds:   getenv("PULSE_HEADLINE_FEEDS", ""),
		},
		Refresh: RefreshConfig{
			Interval:     getenvDuration("PULSE_REFRESH_INTERVAL", 15*time.Minute),
			FetchTimeout: getenvDuration("PULSE_FETCH_TIMEOUT", 60*time.Second),
			Categories:   parseList(getenv("PULSE_CATEGORIES", "")),
		},

		PricingFile: getenv("PULSE_PRICING_FILE", ""),
	}

	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
