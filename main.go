package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fittrack/internal/auth"
	"fittrack/internal/config"
	"fittrack/internal/content"
	"fittrack/internal/database"
	"fittrack/internal/fetcher"
	"fittrack/internal/handlers"
	"fittrack/internal/importer"
	"fittrack/internal/metrics"
	"fittrack/internal/middleware"
	"fittrack/internal/oauth"
	"fittrack/internal/strava"
	"fittrack/internal/syncer"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Set up logger
	logLevel := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting fittrack server",
		"host", cfg.Host,
		"port", cfg.Port,
		"database", cfg.DatabasePath,
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel)

	// Open database
	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		logger.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	logger.Info("Database opened successfully")

	// Wire up components
	stravaClient := strava.NewClient(cfg.StravaClientID, cfg.StravaClientSecret, logger)
	store := content.NewStore(cfg.DataDir)
	oauthManager := oauth.NewManager(db, stravaClient)
	imp := importer.New(db, stravaClient, cfg.ImportPageSize)
	f := fetcher.New(db, stravaClient, store)
	runner := syncer.NewRunner(db, oauthManager, imp, f)
	tokens := auth.NewTokenService(cfg.AuthJWTSecret)

	// Create handlers
	oauthHandler := handlers.NewOAuthHandler(oauthManager)
	syncHandler := handlers.NewSyncHandler(runner)
	activitiesHandler := handlers.NewActivitiesHandler(db)
	detailsHandler := handlers.NewDetailsHandler(db, oauthManager, f, store)
	healthMetricsHandler := handlers.NewHealthMetricsHandler(db)
	aggregatesHandler := handlers.NewAggregatesHandler(db)
	healthHandler := handlers.NewHealthHandler(db)

	// Set up HTTP routes
	r := chi.NewRouter()
	r.Use(middleware.RequestLogger)

	r.With(auth.RequireAuth(tokens), middleware.Metrics(metrics.EndpointOAuthStart)).
		Get("/connect/strava", oauthHandler.Connect)
	r.With(middleware.Metrics(metrics.EndpointOAuthCallback)).
		Get("/connect/strava/callback", oauthHandler.Callback)

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))

		r.With(middleware.Metrics(metrics.EndpointSyncStart)).Post("/sync", syncHandler.Start)
		r.With(middleware.Metrics(metrics.EndpointSyncStatus)).Get("/sync/{runID}", syncHandler.Status)

		r.With(middleware.Metrics(metrics.EndpointActivities)).Get("/activities", activitiesHandler.List)
		r.With(middleware.Metrics(metrics.EndpointActivities)).Post("/activities", activitiesHandler.Create)
		r.With(middleware.Metrics(metrics.EndpointActivities)).Get("/activities/{id}", activitiesHandler.Get)

		r.With(middleware.Metrics(metrics.EndpointDetails)).Get("/details/missing", detailsHandler.Missing)
		r.With(middleware.Metrics(metrics.EndpointDetails)).Post("/details/{id}/track", detailsHandler.FetchTrack)
		r.With(middleware.Metrics(metrics.EndpointDetails)).Post("/details/{id}/stream", detailsHandler.FetchStream)
		r.With(middleware.Metrics(metrics.EndpointDetails)).Post("/details/{id}/analyze", detailsHandler.Analyze)

		r.With(middleware.Metrics(metrics.EndpointHealthMetrics)).Get("/health-metrics/max-heartrate", healthMetricsHandler.GetMaxHeartrate)
		r.With(middleware.Metrics(metrics.EndpointHealthMetrics)).Post("/health-metrics/max-heartrate", healthMetricsHandler.SetMaxHeartrate)

		r.With(middleware.Metrics(metrics.EndpointAggregates)).Get("/aggregates/weekly", aggregatesHandler.Weekly)
	})

	r.With(middleware.Metrics(metrics.EndpointHealth)).Get("/health", healthHandler.Check)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  35 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	collectorCtx, collectorCancel := context.WithCancel(context.Background())
	defer collectorCancel()

	// Start gap depth collector if metrics are enabled
	if cfg.MetricsEnabled {
		go func() {
			logger.Info("Starting gap depth collector")
			metrics.StartGapDepthCollector(collectorCtx, db, 15*time.Second)
		}()
	}

	// Start metrics server if enabled
	var metricsServer *http.Server
	if cfg.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())

		metricsAddr := fmt.Sprintf("%s:%d", cfg.MetricsHost, cfg.MetricsPort)
		metricsServer = &http.Server{
			Addr:    metricsAddr,
			Handler: metricsMux,
		}

		go func() {
			logger.Info("Metrics server listening", "addr", metricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
	}

	// Start HTTP server in background
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down gracefully...")

	collectorCancel()

	// Shutdown HTTP servers with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Metrics server shutdown failed", "error", err)
		}
	}

	logger.Info("Server stopped")
}
