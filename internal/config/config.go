package config

import (
	"os"
	"strconv"
)

// Config holds the core runtime configuration for the service.
// Values are read once from environment variables at process start and the
// struct is passed by reference into every component; nothing reads the
// environment after Load returns.
type Config struct {
	// DatabaseURL is the PostgreSQL connection URL (SWIFTROUTE_DATABASE_URL).
	DatabaseURL string

	// ServiceCredential is the privileged credential presented by trusted
	// backend callers (trial provisioning, operator metrics). If empty,
	// those endpoints are disabled.
	ServiceCredential string

	ListenAddr string

	// RetentionDays bounds both the usage-record retention window and the
	// maximum lookback a usage-statistics query may request.
	RetentionDays int

	LogLevel string
}

// Load reads configuration from environment variables and applies defaults.
func Load() *Config {
	cfg := &Config{
		DatabaseURL:       os.Getenv("SWIFTROUTE_DATABASE_URL"),
		ServiceCredential: getenv("SWIFTROUTE_SERVICE_CREDENTIAL", ""),
		ListenAddr:        getenv("SWIFTROUTE_LISTEN_ADDR", ":8080"),
		RetentionDays:     30,
		LogLevel:          getenv("SWIFTROUTE_LOG_LEVEL", "info"),
	}

	if v := os.Getenv("SWIFTROUTE_RETENTION_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil && days > 0 {
			cfg.RetentionDays = days
		}
	}

	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
