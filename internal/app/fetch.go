package app

import (
	"context"
	"errors"
	"time"

	"gas-weather-analytics/internal/metrics"
)

// FetchWeather pulls daily temperatures from the archive, derives degree days
// and stores dates not yet present.
func (a *App) FetchWeather(ctx context.Context, opts FetchOptions) error {
	archive := a.newArchive()

	from, to := archive.Window(a.Config.Weather.LookbackDays)
	if !opts.From.IsZero() {
		from = opts.From
	}
	if !opts.To.IsZero() {
		to = opts.To
	}
	if to.Before(from) {
		return errors.New("empty range, check --from/--to")
	}

	days, err := archive.FetchDaily(ctx, from, to)
	a.metrics.WeatherFetches.WithLabelValues(metrics.Outcome(err)).Inc()
	if err != nil {
		return err
	}

	observations, err := a.newCalculator().ComputeDegreeDays(days)
	if err != nil {
		return err
	}

	a.Logger.Info().
		Str("from", from.Format(time.DateOnly)).
		Str("to", to.Format(time.DateOnly)).
		Int("days", len(observations)).
		Msg("weather fetched")

	if opts.DryRun {
		a.Logger.Warn().Msg("dry-run: nothing written to the database")
		for _, o := range observations {
			a.Logger.Debug().
				Str("date", o.Date.Format(time.DateOnly)).
				Float64("avg_temp", o.AvgTemp).
				Float64("cdd", o.CDD).
				Float64("hdd", o.HDD).
				Msg("observation")
		}
		return nil
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	_, err = a.newIngester(store, 0).UpsertWeather(ctx, observations)
	return err
}
