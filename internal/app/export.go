package app

import (
	"context"
	"errors"

	"gas-weather-analytics/internal/report"
)

// Export renders the aligned series as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if !opts.From.IsZero() && !opts.To.IsZero() && opts.To.Before(opts.From) {
		return errors.New("from must not be after to")
	}

	maxPoints := a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	records, _, err := a.loadSeries(ctx, store, seriesQuery{From: opts.From, To: opts.To})
	if err != nil {
		return err
	}

	downsampled := report.Downsample(records, maxPoints)
	a.Logger.Info().Int("total", len(records)).Int("exported", len(downsampled)).Msg("exporting aligned series")

	if opts.CSVPath != "" {
		if err := report.WriteSeriesCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := report.WriteSeriesPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}
