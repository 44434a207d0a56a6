package main

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kobimpw/Economic-terminal/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		LogLevel:    "error",
		Forecast: config.ForecastConfig{
			TestLength:      12,
			ForecastHorizon: 6,
			MAWindows:       []int{3, 6},
			Simulations:     500,
		},
		Telemetry: config.TelemetryConfig{
			ServiceName:  "economic-terminal",
			Exporter:     "otlp",
			OTLPEndpoint: "http://localhost:4318",
			SampleRatio:  0.5,
		},
	}
}

func TestCandidatesFor(t *testing.T) {
	cfg := testConfig()

	names := func(cfg *config.Config) []string {
		var out []string
		for _, c := range candidatesFor(cfg) {
			out = append(out, c.Name())
		}
		return out
	}

	assert.Equal(t, []string{"ARIMA(1,1,1)", "MA(3,6)", "Monte Carlo (500 sims)"}, names(cfg))

	cfg.Precompute.ExtendedGrid = true
	assert.Equal(t, []string{
		"ARIMA(1,1,1)", "ARIMA(2,1,1)", "ARIMA(1,1,2)", "ARIMA(2,1,2)",
		"MA(3,6)", "Monte Carlo (500 sims)",
	}, names(cfg))

	for _, c := range candidatesFor(cfg) {
		assert.Equal(t, 12, c.TestLength)
		assert.Equal(t, 6, c.ForecastHorizon)
	}
}

func TestTelemetryConfig(t *testing.T) {
	tc := telemetryConfig(testConfig())

	assert.False(t, tc.Enabled)
	assert.Equal(t, "economic-terminal", tc.ServiceName)
	assert.Equal(t, "test", tc.Environment)
	assert.Equal(t, "http://localhost:4318", tc.OTLPEndpoint)
	assert.Equal(t, 0.5, tc.SampleRatio)
}

func TestNewStandardLogger_FallsBackWithoutExport(t *testing.T) {
	cfg := testConfig()
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.ExportLogs = true
	cfg.Telemetry.OTLPEndpoint = "not a url"

	logger := newStandardLogger(cfg)
	require.NotNil(t, logger)
	assert.NoError(t, logger.Shutdown(context.Background()))
}

func TestShutdownTimeout(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, 30*time.Second, shutdownTimeout(cfg))

	cfg.Server.ShutdownTimeout = "5s"
	assert.Equal(t, 5*time.Second, shutdownTimeout(cfg))
}

func TestConnectBackends_Disabled(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	b, err := connectBackends(context.Background(), testConfig(), logger)
	require.NoError(t, err)
	defer b.Close()

	assert.Nil(t, b.db)
	assert.Nil(t, b.redis)
	assert.Nil(t, b.observations)
	assert.Nil(t, b.runs)
	assert.Nil(t, b.redisClient())
}

func TestConnectBackends_UnreachableRedis(t *testing.T) {
	cfg := testConfig()
	cfg.Redis = config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := connectBackends(ctx, cfg, logrus.New())
	assert.ErrorContains(t, err, "failed to connect to Redis")
}
