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
	"github.com/sirupsen/logrus"

	"github.com/kobimpw/Economic-terminal/internal/api"
	"github.com/kobimpw/Economic-terminal/internal/cache"
	"github.com/kobimpw/Economic-terminal/internal/config"
	"github.com/kobimpw/Economic-terminal/internal/forecast"
	"github.com/kobimpw/Economic-terminal/internal/logging"
	"github.com/kobimpw/Economic-terminal/internal/metrics"
	"github.com/kobimpw/Economic-terminal/internal/series"
	"github.com/kobimpw/Economic-terminal/internal/services"
	"github.com/kobimpw/Economic-terminal/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := telemetry.InitTelemetry(ctx, telemetryConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to shutdown telemetry: %v\n", err)
		}
	}()

	logger := newStandardLogger(cfg)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = logger.Shutdown(shutdownCtx)
	}()

	// Services log through logrus, the request path through slog.
	logrusLogger := logging.NewLogrus(cfg.LogLevel)
	logrus.SetLevel(logrusLogger.GetLevel())
	logrus.SetFormatter(logrusLogger.Formatter)

	backends, err := connectBackends(ctx, cfg, logrusLogger)
	if err != nil {
		return err
	}
	defer backends.Close()

	catalog, err := series.DefaultCatalog().Restrict(cfg.Precompute.Series)
	if err != nil {
		return fmt.Errorf("invalid precompute.series: %w", err)
	}

	fred := series.NewFREDClient(series.FREDOptions{
		BaseURL:          cfg.FRED.BaseURL,
		APIKey:           cfg.FRED.APIKey,
		ObservationStart: cfg.FRED.ObservationStart,
		RatePerSecond:    cfg.FRED.RatePerSecond,
		Burst:            cfg.FRED.Burst,
		Timeout:          cfg.FRED.TimeoutDuration(),
	}, logrusLogger)
	if cfg.FRED.APIKey == "" {
		logrusLogger.Warn("FRED_API_KEY is not set; only stored observations can be served")
	}
	store := series.NewLayeredStore(series.LayeredConfig{
		CacheSize:    cfg.FRED.CacheSize,
		CacheTTL:     cfg.FRED.CacheTTLDuration(),
		MaxStaleness: cfg.Database.MaxStalenessDuration(),
	}, backends.observations, fred, logrusLogger)

	collector, err := metrics.NewCollector(true)
	if err != nil {
		return fmt.Errorf("failed to create metrics collector: %w", err)
	}

	redisClient := backends.redisClient()
	cacheAnalytics := services.NewCacheAnalyticsService(redisClient, collector)
	cacheAnalytics.StartPeriodicReporting(ctx, 5*time.Minute)

	cacheOpts := []cache.Option{cache.WithHitRecorder(cacheAnalytics), cache.WithLogger(logrusLogger)}
	if redisClient != nil {
		mirror := cache.NewRedisForecastStore(redisClient)
		cacheOpts = append(cacheOpts, cache.WithMirror(mirror))
		cacheAnalytics.SetMirror(mirror)
	}
	forecastCache := cache.NewForecastCache(cacheOpts...)
	restoreCtx, cancelRestore := context.WithTimeout(ctx, 10*time.Second)
	restored, err := forecastCache.Restore(restoreCtx)
	cancelRestore()
	if err != nil {
		logrusLogger.WithError(err).Warn("Failed to restore mirrored forecasts")
	}
	collector.SetCacheEntries(forecastCache.Len())

	forecastOpts := forecast.Options{Seed: cfg.Forecast.Seed}
	selector := forecast.NewSelector(forecastOpts, logrusLogger)

	timeouts := services.NewTimeoutManager(&services.TimeoutConfig{
		Fetch:       cfg.FRED.TimeoutDuration(),
		Compute:     cfg.Precompute.ComputeTimeoutDuration(),
		HealthCheck: 3 * time.Second,
		Mirror:      5 * time.Second,
	}, logrusLogger)
	defer timeouts.Shutdown()

	schedulerOpts := []services.SchedulerOption{
		services.WithSweepMetrics(collector),
		services.WithTimeoutManager(timeouts),
		services.WithBusinessTracer(telemetry.NewBusinessTracer(nil)),
	}
	if backends.runs != nil {
		schedulerOpts = append(schedulerOpts, services.WithRunRecorder(backends.runs))
	}
	notifier, err := services.NewNotificationService(cfg.Notifier.TelegramBotToken, cfg.Notifier.TelegramChatID)
	if err != nil {
		logrusLogger.WithError(err).Warn("Telegram notifications disabled")
	} else if notifier != nil {
		schedulerOpts = append(schedulerOpts, services.WithSweepNotifier(notifier))
	}

	scheduler := services.NewPrecomputeScheduler(catalog, store, forecastCache, selector, services.PrecomputeConfig{
		Workers:     cfg.Precompute.Workers,
		ReuseWithin: cfg.Precompute.ReuseWithinDuration(),
		Candidates:  candidatesFor(cfg),
	}, logrusLogger, schedulerOpts...)

	logrusLogger.WithFields(logrus.Fields{
		"series":   catalog.Len(),
		"restored": restored,
		"workers":  scheduler.Workers(),
		"breaker":  fred.BreakerState(),
	}).Info("Forecast pipeline ready")
	if cfg.Precompute.Enabled {
		scheduler.Start(ctx)
	}

	analysis := services.NewAnalysisService(catalog, store, forecastOpts, services.AnalysisDefaults{
		TestLength:      cfg.Forecast.TestLength,
		ForecastHorizon: cfg.Forecast.ForecastHorizon,
		Timeout:         cfg.Precompute.ComputeTimeoutDuration(),
	}, collector, logrusLogger)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	api.SetupRoutes(router, api.Dependencies{
		DB:             backends.db,
		Redis:          backends.redis,
		Cache:          forecastCache,
		Catalog:        catalog,
		Scheduler:      scheduler,
		Analyzer:       analysis,
		CacheAnalytics: cacheAnalytics,
		Metrics:        collector,
		Logger:         logger,
		ServiceName:    cfg.Telemetry.ServiceName,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	// WriteTimeout covers synchronous refreshes of the whole catalog.
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.LogStartup(cfg.Telemetry.ServiceName, telemetry.ServiceVersion, cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	case <-ctx.Done():
		logger.LogShutdown(cfg.Telemetry.ServiceName, "signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	timeouts.CancelAllOperations()

	logrusLogger.Info("Server exited gracefully")
	return nil
}
