// Package config loads server configuration from the environment and
// assessment policy files (rule sets, factor weights) from disk.
package config

import (
	"os"
	"strconv"
)

// Config holds server configuration.
type Config struct {
	Port     string
	LogLevel string

	// LedgerDriver selects the audit store: "memory", "sqlite", "postgres".
	LedgerDriver string
	DatabaseURL  string
	SQLitePath   string

	RedisURL string

	JWTSecret    string
	ExportSecret string

	RuleSetPath string
	WeightsPath string

	RateLimitRPS   int
	RateLimitBurst int

	OTLPEndpoint string
	OTLPInsecure bool
	Environment  string
}

// Load reads configuration from environment variables, applying defaults
// suitable for local development.
func Load() *Config {
	return &Config{
		Port:           getenv("PORT", "8080"),
		LogLevel:       getenv("LOG_LEVEL", "INFO"),
		LedgerDriver:   getenv("LEDGER_DRIVER", "sqlite"),
		DatabaseURL:    getenv("DATABASE_URL", "postgres://aegis@localhost:5432/aegis?sslmode=disable"),
		SQLitePath:     getenv("SQLITE_PATH", "aegis.db"),
		RedisURL:       os.Getenv("REDIS_URL"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		ExportSecret:   os.Getenv("EXPORT_SECRET"),
		RuleSetPath:    os.Getenv("RULE_SET_PATH"),
		WeightsPath:    os.Getenv("WEIGHTS_PATH"),
		RateLimitRPS:   getenvInt("RATE_LIMIT_RPS", 50),
		RateLimitBurst: getenvInt("RATE_LIMIT_BURST", 100),
		OTLPEndpoint:   os.Getenv("OTLP_ENDPOINT"),
		OTLPInsecure:   os.Getenv("OTLP_INSECURE") == "true",
		Environment:    getenv("ENVIRONMENT", "development"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
