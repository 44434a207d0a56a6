package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kobimpw/Economic-terminal/internal/series"
)

func newSeriesCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "series",
		Short: "List the indicator catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, _, err := c.source(cmd.Context())
			if err != nil {
				return err
			}
			if c.format == "json" {
				return c.printJSON(catalog.All())
			}

			w := newTable(c.out)
			fmt.Fprintln(w, "ID\tCATEGORY\tNAME\tFRED")
			for _, ind := range catalog.All() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", ind.ID, ind.Category, ind.DisplayName, series.FredLink(ind.ID))
			}
			return w.Flush()
		},
	}
}
