package app

import (
	"context"
	"errors"

	"gas-weather-analytics/internal/market"
)

// IngestTicks decodes a zstd tick feed and stores it in batches.
func (a *App) IngestTicks(ctx context.Context, opts IngestTicksOptions) error {
	if opts.Path == "" {
		return errors.New("--file is required")
	}

	ticks, stats, err := market.NewFeedDecoder(a.Logger).DecodeFile(opts.Path)
	if err != nil {
		return err
	}
	a.Logger.Info().
		Str("file", opts.Path).
		Int("lines", stats.Lines).
		Int("decoded", stats.Decoded).
		Int("malformed", stats.Malformed).
		Msg("feed decoded")

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	res, err := a.newIngester(store, opts.Workers).UpsertTicks(ctx, ticks, opts.BatchSize)
	for _, failed := range res.FailedBatches {
		a.Logger.Error().Err(failed.Err).Int("batch", failed.Index).Int("start", failed.Start).Int("end", failed.End-1).Msg("batch failed, rerun ingest-ticks to retry")
	}
	return err
}

// IngestSettlements reads a settlement CSV and stores its rows.
func (a *App) IngestSettlements(ctx context.Context, path string) error {
	if path == "" {
		return errors.New("--file is required")
	}

	prices, err := market.ReadSettlementsFile(path)
	if err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	_, err = a.newIngester(store, 0).UpsertSettlements(ctx, prices)
	return err
}
