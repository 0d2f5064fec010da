package app

import (
	"context"
	"fmt"
	"time"

	"gas-weather-analytics/internal/align"
	"gas-weather-analytics/internal/config"
	"gas-weather-analytics/internal/market"
	"gas-weather-analytics/internal/storage"
	"gas-weather-analytics/internal/weather"
)

// seriesSource is the read side of the store used to build aligned series.
type seriesSource interface {
	ListWeather(ctx context.Context, from, to time.Time) ([]weather.Observation, error)
	ListTicks(ctx context.Context, q storage.TickQuery) ([]market.PriceTick, error)
	ListSettlements(ctx context.Context, from, to time.Time, pipeline string) ([]market.SettlementPrice, error)
}

// seriesQuery selects the price source and date bounds. Zero bounds are open.
type seriesQuery struct {
	Variant  string
	Pipeline string
	From     time.Time
	To       time.Time
	AsOf     time.Time
}

// loadSeries reads both persisted series and aligns them on calendar date.
func (a *App) loadSeries(ctx context.Context, src seriesSource, q seriesQuery) ([]align.Record, align.Stats, error) {
	opts, err := a.Config.Analysis.AlignOptions()
	if err != nil {
		return nil, align.Stats{}, err
	}
	opts.ReferenceDate = q.AsOf

	to := q.To
	if !q.AsOf.IsZero() && (to.IsZero() || q.AsOf.Before(to)) {
		to = weather.CivilDate(q.AsOf)
	}

	obs, err := src.ListWeather(ctx, q.From, to)
	if err != nil {
		return nil, align.Stats{}, err
	}

	variant := q.Variant
	if variant == "" {
		variant = a.Config.Analysis.Variant
	}

	switch variant {
	case config.VariantSettlement:
		pipeline := q.Pipeline
		if pipeline == "" {
			pipeline = a.Config.Analysis.Pipeline
		}
		prices, err := src.ListSettlements(ctx, q.From, to, pipeline)
		if err != nil {
			return nil, align.Stats{}, err
		}
		return align.Settlements(obs, prices, pipeline, opts)
	case config.VariantFutures:
		// Ticks are bucketed by local date, so widen the instant range by a day each side.
		query := storage.TickQuery{SymbolPattern: market.NewSymbolFilter(opts.Root).Pattern()}
		if !q.From.IsZero() {
			query.From = q.From.Add(-24 * time.Hour)
		}
		if !to.IsZero() {
			query.To = to.Add(48 * time.Hour)
		}
		ticks, err := src.ListTicks(ctx, query)
		if err != nil {
			return nil, align.Stats{}, err
		}
		return align.SeriesWithStats(obs, ticks, opts)
	default:
		return nil, align.Stats{}, fmt.Errorf("unknown variant %q", variant)
	}
}
