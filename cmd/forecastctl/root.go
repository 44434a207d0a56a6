package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kobimpw/Economic-terminal/internal/cache"
	"github.com/kobimpw/Economic-terminal/internal/config"
	"github.com/kobimpw/Economic-terminal/internal/database"
	"github.com/kobimpw/Economic-terminal/internal/logging"
	"github.com/kobimpw/Economic-terminal/internal/series"
)

// cli carries the flags and lazily opened resources shared by commands.
type cli struct {
	out      io.Writer
	fixture  string
	format   string
	logLevel string

	cfg    *config.Config
	logger *logrus.Logger

	postgres *database.PostgresDB
	redis    *database.RedisClient
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out}

	root := &cobra.Command{
		Use:   "forecastctl",
		Short: "Economic indicator forecasting tools",
		Long: `forecastctl runs the forecasting pipeline outside the API server.

Examples:
  forecastctl series
  forecastctl precompute --format json
  forecastctl precompute UNRATE T10Y2Y
  forecastctl analyze UNRATE --windows 3,6,12
  forecastctl analyze CPIAUCSL --order 2,1,2 --fixture testdata/cpi.json`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
		PersistentPostRun: func(*cobra.Command, []string) { c.close() },
	}

	root.PersistentFlags().StringVar(&c.fixture, "fixture", "", "Read observations from a JSON fixture instead of FRED")
	root.PersistentFlags().StringVar(&c.format, "format", "table", "Output format (table|json)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Log level (overrides log_level)")

	root.AddCommand(
		newSeriesCmd(c),
		newPrecomputeCmd(c),
		newAnalyzeCmd(c),
		newRunsCmd(c),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	switch c.format {
	case "table", "json":
	default:
		return fmt.Errorf("invalid --format %q: expected table or json", c.format)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	c.cfg = cfg
	c.logger = logging.NewLogrus(cfg.LogLevel)
	c.logger.SetOutput(cmd.ErrOrStderr())
	return nil
}

func (c *cli) close() {
	if c.redis != nil {
		c.redis.Close()
	}
	if c.postgres != nil {
		c.postgres.Close()
	}
}

// source returns the catalog and observation store for this invocation.
// A fixture replaces both FRED and Postgres.
func (c *cli) source(ctx context.Context) (*series.Catalog, series.Store, error) {
	if c.fixture != "" {
		return loadFixture(c.fixture)
	}

	var repo series.ObservationRepo
	if c.cfg.Database.Enabled {
		db, err := c.database(ctx)
		if err != nil {
			return nil, nil, err
		}
		repo = series.NewObservationRepository(database.NewTracedPool(db.Pool, nil))
	}

	fred := series.NewFREDClient(series.FREDOptions{
		BaseURL:          c.cfg.FRED.BaseURL,
		APIKey:           c.cfg.FRED.APIKey,
		ObservationStart: c.cfg.FRED.ObservationStart,
		RatePerSecond:    c.cfg.FRED.RatePerSecond,
		Burst:            c.cfg.FRED.Burst,
		Timeout:          c.cfg.FRED.TimeoutDuration(),
	}, c.logger)
	store := series.NewLayeredStore(series.LayeredConfig{
		CacheSize:    c.cfg.FRED.CacheSize,
		CacheTTL:     c.cfg.FRED.CacheTTLDuration(),
		MaxStaleness: c.cfg.Database.MaxStalenessDuration(),
	}, repo, fred, c.logger)

	catalog, err := series.DefaultCatalog().Restrict(c.cfg.Precompute.Series)
	if err != nil {
		return nil, nil, err
	}
	return catalog, store, nil
}

func (c *cli) database(ctx context.Context) (*database.PostgresDB, error) {
	if c.postgres != nil {
		return c.postgres, nil
	}
	if !c.cfg.Database.Enabled {
		return nil, fmt.Errorf("database is disabled; set DATABASE_ENABLED=true")
	}
	db, err := database.NewPostgresConnection(ctx, c.cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := database.EnsureSchema(ctx, db.Pool); err != nil {
		db.Close()
		return nil, err
	}
	c.postgres = db
	return db, nil
}

// mirror returns the Redis forecast store, or nil when Redis is disabled
// or a fixture is in use.
func (c *cli) mirror(ctx context.Context) (cache.Mirror, error) {
	if c.fixture != "" || !c.cfg.Redis.Enabled {
		return nil, nil
	}
	client, err := database.NewRedisConnection(ctx, c.cfg.Redis)
	if err != nil {
		return nil, err
	}
	c.redis = client
	return cache.NewRedisForecastStore(client.Client), nil
}

func (c *cli) printJSON(v interface{}) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseInts(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", p)
		}
		out = append(out, n)
	}
	return out, nil
}
