package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Environment string           `mapstructure:"environment"`
	LogLevel    string           `mapstructure:"log_level"`
	Server      ServerConfig     `mapstructure:"server"`
	Database    DatabaseConfig   `mapstructure:"database"`
	Redis       RedisConfig      `mapstructure:"redis"`
	FRED        FREDConfig       `mapstructure:"fred"`
	Forecast    ForecastConfig   `mapstructure:"forecast"`
	Precompute  PrecomputeConfig `mapstructure:"precompute"`
	Telemetry   TelemetryConfig  `mapstructure:"telemetry"`
	Notifier    NotifierConfig   `mapstructure:"notifier"`
}

type ServerConfig struct {
	Port            int      `mapstructure:"port"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	ShutdownTimeout string   `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	DatabaseURL     string `mapstructure:"database_url"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime string `mapstructure:"conn_max_idle_time"`
	// MaxStaleness is how old stored observations may be before FRED is asked again.
	MaxStaleness string `mapstructure:"max_staleness"`
}

// DSN returns DatabaseURL when set, otherwise a keyword/value string built from the parts.
func (c DatabaseConfig) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type FREDConfig struct {
	APIKey           string  `mapstructure:"api_key" json:"-" yaml:"-"`
	BaseURL          string  `mapstructure:"base_url"`
	ObservationStart string  `mapstructure:"observation_start"`
	RatePerSecond    float64 `mapstructure:"rate_per_second"`
	Burst            int     `mapstructure:"burst"`
	Timeout          string  `mapstructure:"timeout"`
	CacheSize        int     `mapstructure:"cache_size"`
	CacheTTL         string  `mapstructure:"cache_ttl"`
}

type ForecastConfig struct {
	TestLength      int    `mapstructure:"test_length"`
	ForecastHorizon int    `mapstructure:"forecast_horizon"`
	MAWindows       []int  `mapstructure:"ma_windows"`
	Simulations     int    `mapstructure:"simulations"`
	Seed            uint64 `mapstructure:"seed"`
}

type PrecomputeConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Workers        int      `mapstructure:"workers"`
	ReuseWithin    string   `mapstructure:"reuse_within"`
	ExtendedGrid   bool     `mapstructure:"extended_grid"`
	ComputeTimeout string   `mapstructure:"compute_timeout"`
	Series         []string `mapstructure:"series"`
}

type TelemetryConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	ServiceName  string  `mapstructure:"service_name"`
	Exporter     string  `mapstructure:"exporter"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	ExportLogs   bool    `mapstructure:"export_logs"`
}

type NotifierConfig struct {
	TelegramBotToken string `mapstructure:"telegram_bot_token" json:"-" yaml:"-"`
	TelegramChatID   int64  `mapstructure:"telegram_chat_id"`
}

// ReuseWithinDuration returns how young a mirrored entry must be to skip recomputation.
func (c PrecomputeConfig) ReuseWithinDuration() time.Duration {
	return mustDuration(c.ReuseWithin)
}

func (c PrecomputeConfig) ComputeTimeoutDuration() time.Duration {
	return mustDuration(c.ComputeTimeout)
}

func (c FREDConfig) TimeoutDuration() time.Duration {
	return mustDuration(c.Timeout)
}

func (c FREDConfig) CacheTTLDuration() time.Duration {
	return mustDuration(c.CacheTTL)
}

func (c DatabaseConfig) MaxStalenessDuration() time.Duration {
	return mustDuration(c.MaxStaleness)
}

func (c ServerConfig) ShutdownTimeoutDuration() time.Duration {
	return mustDuration(c.ShutdownTimeout)
}

// mustDuration treats empty and malformed values as zero; Validate rejects malformed ones at load.
func mustDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

// Load reads configs/config.yaml or ./config.yaml, a .env file if present, and
// environment variables, in increasing order of precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindEnv("fred.api_key", "FRED_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind FRED_API_KEY environment variable: %w", err)
	}
	if err := v.BindEnv("database.database_url", "DATABASE_URL"); err != nil {
		return nil, fmt.Errorf("failed to bind DATABASE_URL environment variable: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.Environment = strings.ToLower(config.Environment)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks values viper cannot type-check on its own.
func (c *Config) Validate() error {
	if c.Forecast.TestLength < 1 {
		return fmt.Errorf("forecast.test_length must be at least 1, got %d", c.Forecast.TestLength)
	}
	if c.Forecast.ForecastHorizon < 1 {
		return fmt.Errorf("forecast.forecast_horizon must be at least 1, got %d", c.Forecast.ForecastHorizon)
	}
	if c.Forecast.Simulations < 1 {
		return fmt.Errorf("forecast.simulations must be at least 1, got %d", c.Forecast.Simulations)
	}
	for _, w := range c.Forecast.MAWindows {
		if w < 1 {
			return fmt.Errorf("forecast.ma_windows must be positive, got %d", w)
		}
	}
	if c.Precompute.Workers < 0 {
		return fmt.Errorf("precompute.workers must not be negative, got %d", c.Precompute.Workers)
	}
	if c.FRED.RatePerSecond <= 0 {
		return fmt.Errorf("fred.rate_per_second must be positive, got %v", c.FRED.RatePerSecond)
	}

	durations := map[string]string{
		"precompute.reuse_within":    c.Precompute.ReuseWithin,
		"precompute.compute_timeout": c.Precompute.ComputeTimeout,
		"fred.timeout":               c.FRED.Timeout,
		"fred.cache_ttl":             c.FRED.CacheTTL,
		"database.max_staleness":     c.Database.MaxStaleness,
		"server.shutdown_timeout":    c.Server.ShutdownTimeout,
	}
	for key, value := range durations {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s duration: %w", key, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Environment
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")

	// Server
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.shutdown_timeout", "15s")

	// Database
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "economic_terminal")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.database_url", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_max_lifetime", "300s")
	v.SetDefault("database.conn_max_idle_time", "60s")
	v.SetDefault("database.max_staleness", "24h")

	// Redis
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// FRED
	v.SetDefault("fred.api_key", "")
	v.SetDefault("fred.base_url", "https://api.stlouisfed.org/fred")
	v.SetDefault("fred.observation_start", "2015-01-01")
	v.SetDefault("fred.rate_per_second", 2.0)
	v.SetDefault("fred.burst", 4)
	v.SetDefault("fred.timeout", "30s")
	v.SetDefault("fred.cache_size", 64)
	v.SetDefault("fred.cache_ttl", "1h")

	// Forecast
	v.SetDefault("forecast.test_length", 12)
	v.SetDefault("forecast.forecast_horizon", 6)
	v.SetDefault("forecast.ma_windows", []int{3, 6, 12})
	v.SetDefault("forecast.simulations", 1000)
	v.SetDefault("forecast.seed", 42)

	// Precompute
	v.SetDefault("precompute.enabled", true)
	v.SetDefault("precompute.workers", 0)
	v.SetDefault("precompute.reuse_within", "0s")
	v.SetDefault("precompute.extended_grid", false)
	v.SetDefault("precompute.compute_timeout", "2m")
	v.SetDefault("precompute.series", []string{})

	// Telemetry
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "economic-terminal")
	v.SetDefault("telemetry.exporter", "otlp")
	v.SetDefault("telemetry.otlp_endpoint", "http://localhost:4318")
	v.SetDefault("telemetry.sample_ratio", 1.0)
	v.SetDefault("telemetry.export_logs", false)

	// Notifier
	v.SetDefault("notifier.telegram_bot_token", "")
	v.SetDefault("notifier.telegram_chat_id", 0)
}
