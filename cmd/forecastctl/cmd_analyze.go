package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kobimpw/Economic-terminal/internal/forecast"
	"github.com/kobimpw/Economic-terminal/internal/models"
	"github.com/kobimpw/Economic-terminal/internal/services"
)

func newAnalyzeCmd(c *cli) *cobra.Command {
	var (
		order       string
		windows     string
		simulations int
		testLength  int
		horizon     int
	)

	cmd := &cobra.Command{
		Use:   "analyze SERIES",
		Short: "Run one model on one series",
		Long: `Run a single model configuration, exactly one of --order, --windows or
--simulations, and print its forecast and backtest statistics.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := models.AnalyzeRequest{
				SeriesID: args[0],
				ModelConfig: models.ModelConfigRequest{
					TestLength:      testLength,
					ForecastHorizon: horizon,
				},
			}
			var err error
			if req.ModelConfig.Order, err = parseInts(order); err != nil {
				return fmt.Errorf("--order: %w", err)
			}
			if req.ModelConfig.Windows, err = parseInts(windows); err != nil {
				return fmt.Errorf("--windows: %w", err)
			}
			if cmd.Flags().Changed("simulations") {
				req.ModelConfig.Simulations = &simulations
			}

			catalog, store, err := c.source(cmd.Context())
			if err != nil {
				return err
			}
			analysis := services.NewAnalysisService(catalog, store,
				forecast.Options{Seed: c.cfg.Forecast.Seed},
				services.AnalysisDefaults{
					TestLength:      c.cfg.Forecast.TestLength,
					ForecastHorizon: c.cfg.Forecast.ForecastHorizon,
				}, nil, c.logger)

			resp, err := analysis.Analyze(cmd.Context(), req)
			if err != nil {
				return err
			}
			if c.format == "json" {
				return c.printJSON(resp)
			}
			return c.printAnalysis(resp)
		},
	}

	cmd.Flags().StringVar(&order, "order", "", "ARIMA order p,d,q")
	cmd.Flags().StringVar(&windows, "windows", "", "Moving average windows, comma separated")
	cmd.Flags().IntVar(&simulations, "simulations", 0, "Monte Carlo path count")
	cmd.Flags().IntVar(&testLength, "test-length", 0, "Held-out observations (default forecast.test_length)")
	cmd.Flags().IntVar(&horizon, "horizon", 0, "Forecast steps (default forecast.forecast_horizon)")
	return cmd
}

func (c *cli) printAnalysis(resp *models.AnalyzeResponse) error {
	fmt.Fprintf(c.out, "%s (%s)\n%s\n\n", resp.SeriesName, resp.SeriesID, resp.FredLink)
	fmt.Fprintf(c.out, "Model: %s\n", resp.ModelName)
	fmt.Fprintf(c.out, "RMSE %.4f  MAPE %.2f%%  MAE %.4f\n\n",
		resp.Stats[models.StatRMSE], resp.Stats[models.StatMAPE], resp.Stats[models.StatMAE])

	w := newTable(c.out)
	fmt.Fprintln(w, "DATE\tFORECAST\t-2σ\t-1σ\t+1σ\t+2σ")
	f := resp.Forecast
	for i := range f.Dates {
		fmt.Fprintf(w, "%s\t%.4f\t%.4f\t%.4f\t%.4f\t%.4f\n",
			f.Dates[i], f.Values[i], f.Sigma2Down[i], f.Sigma1Down[i], f.Sigma1Up[i], f.Sigma2Up[i])
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if resp.QualityOpinion != "" {
		_, err := fmt.Fprintf(c.out, "\n%s\n", strings.TrimSpace(resp.QualityOpinion))
		return err
	}
	return nil
}
