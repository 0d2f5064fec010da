package app

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"
)

// Show prints the most recent aligned records.
func (a *App) Show(ctx context.Context, out io.Writer, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	records, _, err := a.loadSeries(ctx, store, seriesQuery{})
	if err != nil {
		return err
	}
	if opts.Limit > 0 && len(records) > opts.Limit {
		records = records[len(records)-opts.Limit:]
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Date\tSymbol\tPrice\tHigh\tLow\tAvg\tCDD\tHDD")
	for _, r := range records {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%.3f\t%.1f\t%.1f\t%.1f\t%.2f\t%.2f\n",
			r.Date.Format(time.DateOnly),
			r.Symbol,
			r.Price,
			r.HighTemp,
			r.LowTemp,
			r.AvgTemp,
			r.CDD,
			r.HDD,
		)
	}
	return writer.Flush()
}
