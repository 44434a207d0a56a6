package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/kobimpw/Economic-terminal/internal/api/handlers"
	"github.com/kobimpw/Economic-terminal/internal/config"
	"github.com/kobimpw/Economic-terminal/internal/database"
	"github.com/kobimpw/Economic-terminal/internal/forecast"
	"github.com/kobimpw/Economic-terminal/internal/logging"
	"github.com/kobimpw/Economic-terminal/internal/models"
	"github.com/kobimpw/Economic-terminal/internal/series"
	"github.com/kobimpw/Economic-terminal/internal/services"
	"github.com/kobimpw/Economic-terminal/internal/telemetry"
)

// backends holds the optional Postgres and Redis connections. Interface
// fields stay nil when a backend is disabled so callers can test for it.
type backends struct {
	postgres  *database.PostgresDB
	redisConn *database.RedisClient

	db           handlers.HealthChecker
	redis        handlers.HealthChecker
	observations series.ObservationRepo
	runs         services.RunRecorder
}

// connectBackends opens the enabled stores. A configured store that cannot
// be reached fails startup.
func connectBackends(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*backends, error) {
	b := &backends{}

	if cfg.Database.Enabled {
		db, err := database.NewPostgresConnection(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		b.postgres = db
		b.db = db

		pool := database.NewTracedPool(db.Pool, nil)
		schemaCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err = database.EnsureSchema(schemaCtx, pool)
		cancel()
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to prepare schema: %w", err)
		}
		b.observations = series.NewObservationRepository(pool)
		b.runs = database.NewForecastRunRepository(pool)
	} else {
		logger.Info("PostgreSQL disabled; observations are kept in memory only")
	}

	if cfg.Redis.Enabled {
		client, err := database.NewRedisConnection(ctx, cfg.Redis)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		b.redisConn = client
		b.redis = client
	} else {
		logger.Info("Redis disabled; forecasts are not mirrored")
	}
	return b, nil
}

func (b *backends) redisClient() *redis.Client {
	if b.redisConn == nil {
		return nil
	}
	return b.redisConn.Client
}

func (b *backends) Close() {
	if b.redisConn != nil {
		b.redisConn.Close()
	}
	if b.postgres != nil {
		b.postgres.Close()
	}
}

func telemetryConfig(cfg *config.Config) telemetry.TelemetryConfig {
	return telemetry.TelemetryConfig{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: telemetry.ServiceVersion,
		Environment:    cfg.Environment,
		Exporter:       cfg.Telemetry.Exporter,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	}
}

// newStandardLogger exports request logs over OTLP when configured,
// otherwise writes JSON to stdout.
func newStandardLogger(cfg *config.Config) *logging.StandardLogger {
	if !cfg.Telemetry.Enabled || !cfg.Telemetry.ExportLogs {
		return logging.NewStandardLogger(cfg.LogLevel, cfg.Environment)
	}
	host, err := telemetry.CollectorHost(cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		logger := logging.NewStandardLogger(cfg.LogLevel, cfg.Environment)
		logger.WithError(err).Warn("OTLP log export disabled")
		return logger
	}
	return logging.NewStandardOTLPLogger(logging.OTLPConfig{
		Endpoint:       host,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: telemetry.ServiceVersion,
		Environment:    cfg.Environment,
		LogLevel:       cfg.LogLevel,
	})
}

// candidatesFor returns the sweep candidates for the configured grid.
func candidatesFor(cfg *config.Config) []models.ModelConfig {
	testLength, horizon := cfg.Forecast.TestLength, cfg.Forecast.ForecastHorizon
	base := forecast.DefaultCandidates(testLength, horizon)
	if cfg.Precompute.ExtendedGrid {
		base = forecast.ExtendedCandidates(testLength, horizon)
	}
	return forecast.TuneCandidates(base, cfg.Forecast.MAWindows, cfg.Forecast.Simulations)
}

func shutdownTimeout(cfg *config.Config) time.Duration {
	if d := cfg.Server.ShutdownTimeoutDuration(); d > 0 {
		return d
	}
	return 30 * time.Second
}
