package ingest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gas-weather-analytics/internal/market"
	"gas-weather-analytics/internal/metrics"
	"gas-weather-analytics/internal/weather"
)

type tickKey struct {
	ts time.Time
	id uint32
}

type fakeStore struct {
	mu          sync.Mutex
	weather     map[time.Time]weather.Observation
	ticks       map[tickKey]market.PriceTick
	settlements map[string]market.SettlementPrice
	weatherTx   int
	failTicks   func(batch []market.PriceTick) error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		weather:     map[time.Time]weather.Observation{},
		ticks:       map[tickKey]market.PriceTick{},
		settlements: map[string]market.SettlementPrice{},
	}
}

func (f *fakeStore) InsertWeather(_ context.Context, obs []weather.Observation) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.weatherTx++
	inserted := 0
	for _, o := range obs {
		if _, ok := f.weather[o.Date]; ok {
			continue
		}
		f.weather[o.Date] = o
		inserted++
	}
	return inserted, nil
}

func (f *fakeStore) InsertTicks(_ context.Context, ticks []market.PriceTick) (int, error) {
	if f.failTicks != nil {
		if err := f.failTicks(ticks); err != nil {
			return 0, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	inserted := 0
	for _, t := range ticks {
		k := tickKey{t.Timestamp, t.InstrumentID}
		if _, ok := f.ticks[k]; ok {
			continue
		}
		f.ticks[k] = t
		inserted++
	}
	return inserted, nil
}

func (f *fakeStore) InsertSettlements(_ context.Context, prices []market.SettlementPrice) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inserted := 0
	for _, p := range prices {
		k := p.Date.Format(time.DateOnly) + "|" + p.Pipeline
		if _, ok := f.settlements[k]; ok {
			continue
		}
		f.settlements[k] = p
		inserted++
	}
	return inserted, nil
}

func observations(n int) []weather.Observation {
	out := make([]weather.Observation, n)
	for i := range out {
		avg := float64(i)
		out[i] = weather.Observation{
			Date:     time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC),
			HighTemp: avg + 3,
			LowTemp:  avg - 3,
			AvgTemp:  avg,
			CDD:      weather.CDD(avg, weather.DefaultReferenceTemp),
			HDD:      weather.HDD(avg, weather.DefaultReferenceTemp),
		}
	}
	return out
}

func ticks(n int) []market.PriceTick {
	base := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)
	out := make([]market.PriceTick, n)
	for i := range out {
		px := decimal.NewFromFloat(2.5).Add(decimal.New(int64(i), -3))
		out[i] = market.PriceTick{
			Timestamp:    base.Add(time.Duration(i) * time.Minute),
			InstrumentID: 42,
			Symbol:       "HHG4",
			Open:         px,
			High:         px,
			Low:          px,
			Close:        px,
			Volume:       uint64(i),
		}
	}
	return out
}

func TestUpsertWeatherIdempotent(t *testing.T) {
	store := newFakeStore()
	m := metrics.New(nil)
	ing := New(store, Options{WeatherChunkSize: 2}, zerolog.Nop(), WithMetrics(m))
	records := observations(5)

	res, err := ing.UpsertWeather(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, WeatherResult{Inserted: 5, Skipped: 0}, res)
	assert.Equal(t, 3, store.weatherTx, "one transaction per chunk")

	res, err = ing.UpsertWeather(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, WeatherResult{Inserted: 0, Skipped: 5}, res)
	assert.Len(t, store.weather, 5)

	assert.Equal(t, 5.0, testutil.ToFloat64(m.IngestRecords.WithLabelValues(metrics.KindWeather, "inserted")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.IngestRecords.WithLabelValues(metrics.KindWeather, "skipped")))
}

func TestUpsertWeatherRejectsInvalid(t *testing.T) {
	store := newFakeStore()
	ing := New(store, Options{}, zerolog.Nop())
	records := observations(3)
	records[1].AvgTemp = math.NaN()

	_, err := ing.UpsertWeather(context.Background(), records)
	assert.ErrorIs(t, err, weather.ErrInvalidInput)
	assert.Empty(t, store.weather, "nothing written when any record is invalid")
}

func TestUpsertTicksBatches(t *testing.T) {
	store := newFakeStore()
	ing := New(store, Options{}, zerolog.Nop())
	records := ticks(10)

	res, err := ing.UpsertTicks(context.Background(), records, 3)
	require.NoError(t, err)
	assert.Equal(t, 10, res.Inserted)
	assert.Equal(t, 4, res.Batches)
	assert.Empty(t, res.FailedBatches)

	res, err = ing.UpsertTicks(context.Background(), records, 3)
	require.NoError(t, err)
	assert.Zero(t, res.Inserted)
	assert.Equal(t, 10, res.Skipped)
}

func TestUpsertTicksPartialFailure(t *testing.T) {
	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			store := newFakeStore()
			boom := errors.New("connection reset")
			records := ticks(10)
			store.failTicks = func(batch []market.PriceTick) error {
				if batch[0].Volume == 3 {
					return boom
				}
				return nil
			}
			m := metrics.New(nil)
			ing := New(store, Options{BatchSize: 3, Workers: workers}, zerolog.Nop(), WithMetrics(m))

			res, err := ing.UpsertTicks(context.Background(), records, 0)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrPartialIngest)
			assert.ErrorIs(t, err, boom)

			var be *BatchError
			require.ErrorAs(t, err, &be)
			assert.Equal(t, 1, be.Index)
			assert.Equal(t, 3, be.Start)
			assert.Equal(t, 6, be.End)

			require.Len(t, res.FailedBatches, 1)
			assert.Equal(t, 7, res.Inserted, "batches after the failure still run")
			assert.Len(t, store.ticks, 7)
			assert.Equal(t, 1.0, testutil.ToFloat64(m.IngestBatchFailures.WithLabelValues(metrics.KindTicks)))

			// Retrying after the fault clears fills the gap only.
			store.failTicks = nil
			res, err = ing.UpsertTicks(context.Background(), records, 0)
			require.NoError(t, err)
			assert.Equal(t, 3, res.Inserted)
			assert.Equal(t, 7, res.Skipped)
		})
	}
}

func TestUpsertTicksEmpty(t *testing.T) {
	ing := New(newFakeStore(), Options{}, zerolog.Nop())
	res, err := ing.UpsertTicks(context.Background(), nil, 0)
	require.NoError(t, err)
	assert.Equal(t, TickResult{}, res)
}

func TestUpsertSettlements(t *testing.T) {
	store := newFakeStore()
	ing := New(store, Options{}, zerolog.Nop())
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	prices := []market.SettlementPrice{
		{Date: day, Pipeline: "Henry Hub", Price: decimal.RequireFromString("1.9")},
		{Date: day, Pipeline: "Transco Zone 6", Price: decimal.RequireFromString("3.1")},
	}

	res, err := ing.UpsertSettlements(context.Background(), prices)
	require.NoError(t, err)
	assert.Equal(t, SettlementResult{Inserted: 2}, res)

	res, err = ing.UpsertSettlements(context.Background(), prices)
	require.NoError(t, err)
	assert.Equal(t, SettlementResult{Skipped: 2}, res)
}

func TestBatchErrorMessage(t *testing.T) {
	err := &BatchError{Index: 2, Start: 2000, End: 3000, Err: errors.New("deadlock detected")}
	assert.Equal(t, "batch 2 (records 2000-2999): deadlock detected", err.Error())
}
