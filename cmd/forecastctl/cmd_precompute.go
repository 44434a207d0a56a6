package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kobimpw/Economic-terminal/internal/cache"
	"github.com/kobimpw/Economic-terminal/internal/forecast"
	"github.com/kobimpw/Economic-terminal/internal/models"
	"github.com/kobimpw/Economic-terminal/internal/services"
)

func newPrecomputeCmd(c *cli) *cobra.Command {
	var (
		workers  int
		extended bool
	)

	cmd := &cobra.Command{
		Use:   "precompute [SERIES...]",
		Short: "Run one precompute sweep and report the chosen models",
		Long: `Run the model selection sweep once, over the whole catalog or the given
series. With Redis enabled the results are mirrored, so a server started
afterwards restores them instead of waiting for its own sweep.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			catalog, store, err := c.source(ctx)
			if err != nil {
				return err
			}

			ids := catalog.IDs()
			if len(args) > 0 {
				ids = ids[:0:0]
				for _, arg := range args {
					id := strings.ToUpper(arg)
					if !catalog.Contains(id) {
						return fmt.Errorf("unknown series %s", arg)
					}
					ids = append(ids, id)
				}
			}

			cacheOpts := []cache.Option{cache.WithLogger(c.logger)}
			mirror, err := c.mirror(ctx)
			if err != nil {
				return err
			}
			if mirror != nil {
				cacheOpts = append(cacheOpts, cache.WithMirror(mirror))
			}
			forecastCache := cache.NewForecastCache(cacheOpts...)

			cfg := c.cfg.Forecast
			base := forecast.DefaultCandidates(cfg.TestLength, cfg.ForecastHorizon)
			if extended || c.cfg.Precompute.ExtendedGrid {
				base = forecast.ExtendedCandidates(cfg.TestLength, cfg.ForecastHorizon)
			}

			var opts []services.SchedulerOption
			if c.fixture == "" && c.cfg.Database.Enabled {
				db, err := c.database(ctx)
				if err != nil {
					return err
				}
				opts = append(opts, services.WithRunRecorder(newRunRepository(db)))
			}

			scheduler := services.NewPrecomputeScheduler(catalog, store, forecastCache,
				forecast.NewSelector(forecast.Options{Seed: cfg.Seed}, c.logger),
				services.PrecomputeConfig{
					Workers:    workers,
					Candidates: forecast.TuneCandidates(base, cfg.MAWindows, cfg.Simulations),
				}, c.logger, opts...)

			report := scheduler.Sweep(ctx, ids)
			if err := c.printSweep(report, forecastCache); err != nil {
				return err
			}
			if report.Total > 0 && report.Failed == report.Total {
				return fmt.Errorf("all %d series failed", report.Total)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent series (0 sizes from the host)")
	cmd.Flags().BoolVar(&extended, "extended", false, "Include the extended ARIMA grid")
	return cmd
}

type sweepRow struct {
	SeriesID string  `json:"seriesId"`
	Model    string  `json:"model,omitempty"`
	RMSE     float64 `json:"rmse,omitempty"`
	MAPE     float64 `json:"mape,omitempty"`
	Error    string  `json:"error,omitempty"`
}

func (c *cli) printSweep(report services.SweepReport, forecastCache *cache.ForecastCache) error {
	snapshot := forecastCache.Snapshot()
	ids := make([]string, 0, len(snapshot)+len(report.Failures))
	for id := range snapshot {
		ids = append(ids, id)
	}
	for id := range report.Failures {
		if _, ok := snapshot[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	rows := make([]sweepRow, 0, len(ids))
	for _, id := range ids {
		row := sweepRow{SeriesID: id, Error: report.Failures[id]}
		if entry, ok := snapshot[id]; ok && entry.Result != nil {
			row.Model = entry.Result.ModelName
			row.RMSE = entry.Result.Stats[models.StatRMSE]
			row.MAPE = entry.Result.Stats[models.StatMAPE]
		}
		rows = append(rows, row)
	}

	if c.format == "json" {
		return c.printJSON(struct {
			Report services.SweepReport `json:"report"`
			Series []sweepRow           `json:"series"`
		}{report, rows})
	}

	w := newTable(c.out)
	fmt.Fprintln(w, "SERIES\tMODEL\tRMSE\tMAPE\tERROR")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%.4f\t%.2f\t%s\n", r.SeriesID, r.Model, r.RMSE, r.MAPE, r.Error)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(c.out, "\n%d computed, %d failed of %d in %s\n",
		report.Computed, report.Failed, report.Total, report.Duration.Round(time.Millisecond))
	return err
}
