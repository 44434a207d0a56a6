package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kobimpw/Economic-terminal/internal/database"
)

// runLister is the read side of the sweep history.
type runLister interface {
	Recent(ctx context.Context, limit int) ([]database.ForecastRun, error)
}

func newRunRepository(db *database.PostgresDB) *database.ForecastRunRepository {
	return database.NewForecastRunRepository(database.NewTracedPool(db.Pool, nil))
}

func newRunsCmd(c *cli) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent precompute sweeps recorded in PostgreSQL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := c.database(cmd.Context())
			if err != nil {
				return err
			}
			return c.printRuns(cmd.Context(), newRunRepository(db), limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Number of runs to show")
	return cmd
}

func (c *cli) printRuns(ctx context.Context, runs runLister, limit int) error {
	recent, err := runs.Recent(ctx, limit)
	if err != nil {
		return err
	}
	if c.format == "json" {
		return c.printJSON(recent)
	}

	w := newTable(c.out)
	fmt.Fprintln(w, "RUN\tSCOPE\tSTARTED\tDURATION\tCOMPUTED\tREUSED\tFAILED")
	for _, r := range recent {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
			r.RunID.String()[:8], r.Scope, r.StartedAt.Format(time.RFC3339),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond), r.Computed, r.Reused, r.Failed)
	}
	return w.Flush()
}

func newTable(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
}
