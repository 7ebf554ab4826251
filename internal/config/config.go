package config

import (
	"os"
	"strings"
)

// Config is the server configuration, loaded from the environment.
type Config struct {
	Port           string
	DatabaseURL    string
	JWTSecret      string
	AllowedOrigins []string
	DigestSchedule string // cron expression for the daily reminder digest
}

// Load reads configuration from environment variables with sensible
// development defaults.
func Load() *Config {
	cfg := &Config{
		Port:           getenv("PORT", "8080"),
		DatabaseURL:    getenv("DATABASE_URL", "postgres://localhost:5432/mindmate?sslmode=disable"),
		JWTSecret:      getenv("JWT_SECRET", "dev-secret-change-me"),
		DigestSchedule: getenv("DIGEST_SCHEDULE", "0 8 * * *"),
	}

	origins := getenv("ALLOWED_ORIGINS", "*")
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}

	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
