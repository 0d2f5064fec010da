package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"gas-weather-analytics/internal/market"
	"gas-weather-analytics/internal/metrics"
	"gas-weather-analytics/internal/weather"
)

// DefaultBatchSize is used when neither the caller nor Options set one.
const DefaultBatchSize = 1000

// ErrPartialIngest reports that at least one tick batch was rolled back.
var ErrPartialIngest = errors.New("ingest: some batches failed")

// WeatherWriter inserts observations, skipping existing dates, in one transaction.
type WeatherWriter interface {
	InsertWeather(ctx context.Context, observations []weather.Observation) (int, error)
}

// TickWriter inserts a batch of ticks, skipping existing keys, in one transaction.
type TickWriter interface {
	InsertTicks(ctx context.Context, ticks []market.PriceTick) (int, error)
}

// SettlementWriter inserts settlement prices, skipping existing keys.
type SettlementWriter interface {
	InsertSettlements(ctx context.Context, prices []market.SettlementPrice) (int, error)
}

// Store is everything the ingester writes to.
type Store interface {
	WeatherWriter
	TickWriter
	SettlementWriter
}

// Options tunes batching.
type Options struct {
	BatchSize        int
	Workers          int
	WeatherChunkSize int
}

// WeatherResult counts weather rows written and skipped as already present.
type WeatherResult struct {
	Inserted int
	Skipped  int
}

// TickResult counts tick rows and lists rolled back batches in index order.
type TickResult struct {
	Inserted      int
	Skipped       int
	Batches       int
	FailedBatches []*BatchError
}

// SettlementResult counts settlement rows written and skipped.
type SettlementResult struct {
	Inserted int
	Skipped  int
}

// BatchError describes one failed tick batch covering records[Start:End].
type BatchError struct {
	Index int
	Start int
	End   int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %d (records %d-%d): %v", e.Index, e.Start, e.End-1, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// Ingester persists validated records through a Store.
type Ingester struct {
	store   Store
	opts    Options
	logger  zerolog.Logger
	metrics *metrics.Metrics
	clock   clockwork.Clock
}

// Option customises an Ingester.
type Option func(*Ingester)

// WithMetrics records counters on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(i *Ingester) { i.metrics = m }
}

// WithClock overrides the clock used to time batches.
func WithClock(c clockwork.Clock) Option {
	return func(i *Ingester) { i.clock = c }
}

// New constructs an Ingester.
func New(store Store, opts Options, logger zerolog.Logger, options ...Option) *Ingester {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.WeatherChunkSize <= 0 {
		opts.WeatherChunkSize = opts.BatchSize
	}
	i := &Ingester{
		store:  store,
		opts:   opts,
		logger: logger.With().Str("component", "ingest").Logger(),
		clock:  clockwork.NewRealClock(),
	}
	for _, opt := range options {
		opt(i)
	}
	return i
}

// UpsertWeather inserts observations keyed by date. Dates already stored are
// counted as skipped and left untouched. Every record is validated before
// anything is written. Each chunk commits on its own; on error the result
// covers the chunks committed so far.
func (i *Ingester) UpsertWeather(ctx context.Context, records []weather.Observation) (WeatherResult, error) {
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return WeatherResult{}, err
		}
	}

	var res WeatherResult
	for start := 0; start < len(records); start += i.opts.WeatherChunkSize {
		end := min(start+i.opts.WeatherChunkSize, len(records))
		chunk := records[start:end]

		began := i.clock.Now()
		inserted, err := i.store.InsertWeather(ctx, chunk)
		i.metrics.ObserveBatchDuration(i.clock.Since(began).Seconds())
		if err != nil {
			i.metrics.ObserveBatchFailure(metrics.KindWeather)
			return res, fmt.Errorf("upsert weather records %d-%d: %w", start, end-1, err)
		}

		skipped := len(chunk) - inserted
		res.Inserted += inserted
		res.Skipped += skipped
		i.metrics.ObserveIngest(metrics.KindWeather, inserted, skipped)
		if skipped > 0 {
			i.logger.Debug().Int("skipped", skipped).Int("start", start).Msg("weather dates already stored")
		}
	}

	i.logger.Info().Int("inserted", res.Inserted).Int("skipped", res.Skipped).Msg("weather upserted")
	return res, nil
}

// UpsertTicks inserts ticks in batches of batchSize (Options.BatchSize when
// not positive), each in its own transaction. A failed batch is rolled back
// alone and reported; remaining batches still run. When any batch failed the
// returned error wraps ErrPartialIngest and the first BatchError.
func (i *Ingester) UpsertTicks(ctx context.Context, records []market.PriceTick, batchSize int) (TickResult, error) {
	if batchSize <= 0 {
		batchSize = i.opts.BatchSize
	}

	type outcome struct {
		inserted int
		size     int
		err      *BatchError
	}

	total := (len(records) + batchSize - 1) / batchSize
	outcomes := make([]outcome, total)

	var g errgroup.Group
	g.SetLimit(i.opts.Workers)

	for idx := 0; idx < total; idx++ {
		idx := idx
		start := idx * batchSize
		end := min(start+batchSize, len(records))
		batch := records[start:end]

		g.Go(func() error {
			began := i.clock.Now()
			inserted, err := i.store.InsertTicks(ctx, batch)
			i.metrics.ObserveBatchDuration(i.clock.Since(began).Seconds())

			out := outcome{inserted: inserted, size: len(batch)}
			if err != nil {
				out = outcome{size: len(batch), err: &BatchError{Index: idx, Start: start, End: end, Err: err}}
				i.metrics.ObserveBatchFailure(metrics.KindTicks)
				i.logger.Error().Err(err).Int("batch", idx).Int("count", len(batch)).Msg("tick batch rolled back")
			} else {
				i.metrics.ObserveIngest(metrics.KindTicks, inserted, len(batch)-inserted)
				i.logger.Debug().Int("batch", idx).Int("count", len(batch)).Int("conflicts", len(batch)-inserted).Msg("tick batch committed")
			}

			outcomes[idx] = out
			return nil
		})
	}
	_ = g.Wait()

	res := TickResult{Batches: total}
	for _, out := range outcomes {
		if out.err != nil {
			res.FailedBatches = append(res.FailedBatches, out.err)
			continue
		}
		res.Inserted += out.inserted
		res.Skipped += out.size - out.inserted
	}
	sort.Slice(res.FailedBatches, func(a, b int) bool { return res.FailedBatches[a].Index < res.FailedBatches[b].Index })

	logEvent := i.logger.Info()
	if len(res.FailedBatches) > 0 {
		logEvent = i.logger.Warn()
	}
	logEvent.
		Int("inserted", res.Inserted).
		Int("skipped", res.Skipped).
		Int("batches", res.Batches).
		Int("failed_batches", len(res.FailedBatches)).
		Msg("ticks upserted")

	if len(res.FailedBatches) > 0 {
		return res, fmt.Errorf("%w: %d of %d: %w", ErrPartialIngest, len(res.FailedBatches), total, res.FailedBatches[0])
	}
	return res, nil
}

// UpsertSettlements inserts settlement prices keyed by (date, pipeline) in
// one transaction.
func (i *Ingester) UpsertSettlements(ctx context.Context, records []market.SettlementPrice) (SettlementResult, error) {
	if len(records) == 0 {
		return SettlementResult{}, nil
	}
	inserted, err := i.store.InsertSettlements(ctx, records)
	if err != nil {
		i.metrics.ObserveBatchFailure(metrics.KindSettlements)
		return SettlementResult{}, fmt.Errorf("upsert settlements: %w", err)
	}
	res := SettlementResult{Inserted: inserted, Skipped: len(records) - inserted}
	i.metrics.ObserveIngest(metrics.KindSettlements, res.Inserted, res.Skipped)
	i.logger.Info().Int("inserted", res.Inserted).Int("skipped", res.Skipped).Msg("settlements upserted")
	return res, nil
}
