package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.OverdueSweepSpec != "0 2 * * *" {
		t.Errorf("OverdueSweepSpec = %q", cfg.OverdueSweepSpec)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v", cfg.ShutdownTimeout)
	}
	if cfg.Level() != zerolog.InfoLevel {
		t.Errorf("Level = %v", cfg.Level())
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("DB_PATH", ":memory:")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "30")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.DBPath != ":memory:" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("ShutdownTimeout = %v", cfg.ShutdownTimeout)
	}
	if cfg.Level() != zerolog.DebugLevel {
		t.Errorf("Level = %v", cfg.Level())
	}
}

func TestLoad_RejectsBadValues(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "zero")
	if _, err := Load(); err == nil {
		t.Error("expected error for non-numeric SHUTDOWN_TIMEOUT_SECONDS")
	}

	t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "10")
	t.Setenv("LOG_LEVEL", "loud")
	if _, err := Load(); err == nil {
		t.Error("expected error for unknown LOG_LEVEL")
	}
}
