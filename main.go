package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/isdelr/turu-api/internal/api"
	"github.com/isdelr/turu-api/internal/config"
	"github.com/isdelr/turu-api/internal/database"
	"github.com/isdelr/turu-api/internal/logger"
	"github.com/isdelr/turu-api/internal/monitoring"
	"github.com/isdelr/turu-api/internal/services"
	"github.com/isdelr/turu-api/internal/store"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel, cfg.LogFormat)

	// Set up database
	ctx := context.Background()
	db, err := database.New(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DatabaseDriver).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database migrations")
	}

	// Set up services
	accountStore := store.NewAccountStore(db)
	accountService, err := services.NewAccountService(accountStore, cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize account service")
	}

	// Set up and run the background stats job
	scheduler := monitoring.NewScheduler()
	if cfg.StatsEnabled() {
		if err := scheduler.Add("account-stats", cfg.StatsSchedule, monitoring.NewStatUpdater(accountService)); err != nil {
			log.Fatal().Err(err).Msg("Failed to schedule account stats job")
		}
	}
	scheduler.Start()

	// Set up server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           api.NewRouter(cfg, accountService),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.ServerPort).Str("driver", cfg.DatabaseDriver).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("ListenAndServe failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	scheduler.Stop(shutdownCtx)

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exiting")
}
