package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/points-ledger-engine/internal/api"
	"github.com/points-ledger-engine/internal/config"
	"github.com/points-ledger-engine/internal/database"
	"github.com/points-ledger-engine/internal/jobs"
	"github.com/points-ledger-engine/internal/repository"
	"github.com/points-ledger-engine/internal/service"
	"github.com/points-ledger-engine/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", "json")
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	format := cfg.Log.Format
	if cfg.Env == "development" {
		format = "pretty"
	}
	log := logger.New(cfg.Log.Level, format)
	log.Info().Str("env", cfg.Env).Msg("Starting points ledger server...")

	// Initialize database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	// Run migrations
	if err := db.RunMigrations(cfg.Database.MigrationsPath); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Initialize repositories
	repos := repository.New(db)

	// Initialize services
	services := service.NewServices(repos, cfg, log)

	// Start background jobs
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	var scheduler *jobs.Scheduler
	if cfg.Reconcile.Enabled {
		scheduler = jobs.NewScheduler(services.Reconcile, services.Ledger, cfg.Reconcile, log)
		if err := scheduler.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to start scheduler")
		}
	}

	// Initialize router
	router := api.NewRouter(services, cfg, db.HealthCheck, log)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.ReadTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop scheduled jobs after in-flight requests have drained
	stop()
	if scheduler != nil {
		scheduler.Stop()
	}

	log.Info().Msg("Server exited gracefully")
}
