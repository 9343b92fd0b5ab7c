/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the gold savings scheme engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (environment, optional .env)
  2. Initialize SQLite store
  3. Create API handler with dependencies
  4. Configure HTTP router
  5. Start the overdue sweep scheduler
  6. Start server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the sweep scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (configurable timeout)
  4. Close database connection
  5. Exit

ENVIRONMENT:
  HTTP_ADDR                 Listen address (default :8080)
  DB_PATH                   SQLite database path (":memory:" for ephemeral)
  OVERDUE_SWEEP_CRON        Cron spec for the nightly sweep ("" disables)
  SHUTDOWN_TIMEOUT_SECONDS  Graceful shutdown bound (default 10)
  LOG_LEVEL                 zerolog level (default info)
  CORS_ORIGIN               Allowed origin for the shop frontend

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/aurum/savings-engine/api"
	"github.com/aurum/savings-engine/config"
	"github.com/aurum/savings-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		errLog := zerolog.New(os.Stderr)
		errLog.Fatal().Err(err).Msg("bad configuration")
	}

	log := zerolog.New(os.Stderr).
		Level(cfg.Level()).
		With().Timestamp().Logger()

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("db_path", cfg.DBPath).Msg("failed to initialize database")
	}
	defer store.Close()

	// Initialize handler and router
	handler := api.NewHandler(store, store, log)
	router := api.NewRouter(handler, cfg.CORSOrigins)

	// Nightly overdue sweep
	var sweep *api.OverdueSweep
	if cfg.OverdueSweepSpec != "" {
		sweep = api.NewOverdueSweep(store, handler.Lifecycle, cfg.OverdueSweepSpec, log)
		if err := sweep.Start(); err != nil {
			log.Fatal().Err(err).Str("spec", cfg.OverdueSweepSpec).Msg("failed to start overdue sweep")
		}
	}

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	if sweep != nil {
		sweep.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}

	log.Info().Msg("server stopped")
}
