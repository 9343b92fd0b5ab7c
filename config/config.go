// Package config loads server configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds everything the server binary needs to start.
type Config struct {
	// HTTPAddr is the listen address, e.g. ":8080".
	HTTPAddr string

	// DBPath is the SQLite database file; ":memory:" for ephemeral runs.
	DBPath string

	// OverdueSweepSpec is the cron expression for the overdue evaluation
	// sweep. Empty disables the sweep.
	OverdueSweepSpec string

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration

	// LogLevel is a zerolog level name (debug, info, warn, error).
	LogLevel string

	// CORSOrigins lists allowed origins for the API.
	CORSOrigins []string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		DBPath:           getEnv("DB_PATH", "./data/savings.db"),
		OverdueSweepSpec: getEnv("OVERDUE_SWEEP_CRON", "0 2 * * *"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		CORSOrigins:      []string{getEnv("CORS_ORIGIN", "*")},
	}

	secs, err := strconv.Atoi(getEnv("SHUTDOWN_TIMEOUT_SECONDS", "10"))
	if err != nil || secs <= 0 {
		return Config{}, fmt.Errorf("bad SHUTDOWN_TIMEOUT_SECONDS: %q", getEnv("SHUTDOWN_TIMEOUT_SECONDS", "10"))
	}
	cfg.ShutdownTimeout = time.Duration(secs) * time.Second

	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		return Config{}, fmt.Errorf("bad LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}

	return cfg, nil
}

// Level returns the parsed zerolog level.
func (c Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
