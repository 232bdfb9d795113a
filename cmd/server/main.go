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

	"github.com/gin-gonic/gin"
	"github.com/shipquote/backend/config"
	"github.com/shipquote/backend/internal/bootstrap"
	httpDelivery "github.com/shipquote/backend/internal/delivery/http"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := bootstrap.NewLogger(cfg)
	logger.Info().
		Str("environment", cfg.Server.Environment).
		Str("port", cfg.Server.Port).
		Str("cache", cfg.Cache.Type).
		Dur("cache_ttl", cfg.Cache.TTL).
		Strs("partners", cfg.EnabledPartners()).
		Msg("Starting ShipQuote Backend v1.0.0")

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := bootstrap.SetupTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to set up telemetry")
	}

	// Initialize the engine; browsers start on the first quote
	launcher := bootstrap.ChromeLauncher(cfg.Browser, logger)
	app, err := bootstrap.Build(cfg, launcher, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to build quote engine")
	}

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(
		app.Service,
		httpDelivery.NewJobStore(cfg.Quote.MaxJobs, cfg.Quote.JobTTL),
		httpDelivery.HandlerConfig{
			DefaultPartner: cfg.Quote.DefaultPartner,
			RequestTimeout: cfg.Server.RequestTimeout,
		},
		logger,
	)

	// Setup router
	router := httpDelivery.SetupRouter(cfg, handler, logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown")
	}
	handler.Close()
	if err := app.Close(); err != nil {
		logger.Error().Err(err).Msg("Closing browser sessions")
	}
	if err := tel.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Flushing traces")
	}
}
