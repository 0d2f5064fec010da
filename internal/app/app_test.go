package app

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gas-weather-analytics/internal/align"
	"gas-weather-analytics/internal/alerting"
	"gas-weather-analytics/internal/analysis"
	"gas-weather-analytics/internal/config"
	"gas-weather-analytics/internal/market"
	"gas-weather-analytics/internal/report"
	"gas-weather-analytics/internal/storage"
	"gas-weather-analytics/internal/weather"
)

type fakeSource struct {
	weather     []weather.Observation
	ticks       []market.PriceTick
	settlements []market.SettlementPrice

	weatherTo time.Time
	tickQuery storage.TickQuery
	pipeline  string
	runs      []storage.AnalysisRun
}

func (f *fakeSource) ListWeather(_ context.Context, _, to time.Time) ([]weather.Observation, error) {
	f.weatherTo = to
	var out []weather.Observation
	for _, o := range f.weather {
		if to.IsZero() || !o.Date.After(to) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeSource) ListTicks(_ context.Context, q storage.TickQuery) ([]market.PriceTick, error) {
	f.tickQuery = q
	return f.ticks, nil
}

func (f *fakeSource) ListSettlements(_ context.Context, _, _ time.Time, pipeline string) ([]market.SettlementPrice, error) {
	f.pipeline = pipeline
	return f.settlements, nil
}

func (f *fakeSource) InsertAnalysisRun(_ context.Context, run storage.AnalysisRun) (storage.AnalysisRun, error) {
	run.CreatedAt = time.Now()
	f.runs = append(f.runs, run)
	return run, nil
}

func jan(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	return NewApp(cfg, zerolog.Nop())
}

func testSource(t *testing.T) *fakeSource {
	t.Helper()
	calc := weather.NewCalculator(weather.Config{})
	obs, err := calc.ComputeDegreeDays([]weather.DailyTemperature{
		{Date: jan(1), High: 4, Low: -4, Mean: 0},
		{Date: jan(2), High: 6, Low: -2, Mean: 2},
		{Date: jan(3), High: 9, Low: 1, Mean: 5},
	})
	require.NoError(t, err)

	tick := func(day time.Time, symbol, px string) market.PriceTick {
		return market.PriceTick{
			Timestamp:    day.Add(20 * time.Hour),
			InstrumentID: 1,
			Symbol:       symbol,
			Close:        decimal.RequireFromString(px),
		}
	}
	return &fakeSource{
		weather: obs,
		ticks: []market.PriceTick{
			tick(jan(2), "HHG4", "2.50"),
			tick(jan(3), "HHG4", "2.61"),
			tick(jan(3), "HHG4-HHH4", "0.10"),
		},
		settlements: []market.SettlementPrice{
			{Date: jan(1), Pipeline: "Transco Zone 6", Price: decimal.RequireFromString("4.10")},
			{Date: jan(3), Pipeline: "Transco Zone 6", Price: decimal.RequireFromString("4.40")},
		},
	}
}

func TestLoadSeriesFutures(t *testing.T) {
	a := newTestApp(t)
	src := testSource(t)

	records, stats, err := a.loadSeries(context.Background(), src, seriesQuery{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, jan(2), records[0].Date)
	assert.Equal(t, 2.61, records[1].Price)
	assert.Equal(t, 1, stats.Ineligible)
	assert.Equal(t, `^HH[FGHJKMNQUVXZ]\d$`, src.tickQuery.SymbolPattern)
	assert.True(t, src.tickQuery.From.IsZero())
	assert.True(t, src.weatherTo.IsZero())
}

func TestLoadSeriesAsOf(t *testing.T) {
	a := newTestApp(t)
	src := testSource(t)

	records, _, err := a.loadSeries(context.Background(), src, seriesQuery{AsOf: jan(2).Add(12 * time.Hour)})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, jan(2), records[0].Date)
	assert.Equal(t, jan(2), src.weatherTo)
	assert.Equal(t, jan(4), src.tickQuery.To)
}

func TestLoadSeriesSettlement(t *testing.T) {
	a := newTestApp(t)
	a.Config.Analysis.Pipeline = "Transco Zone 6"
	src := testSource(t)

	records, _, err := a.loadSeries(context.Background(), src, seriesQuery{Variant: config.VariantSettlement})
	require.NoError(t, err)
	assert.Equal(t, "Transco Zone 6", src.pipeline)
	require.Len(t, records, 2)
	assert.Equal(t, []time.Time{jan(1), jan(3)}, []time.Time{records[0].Date, records[1].Date})
	assert.Equal(t, "Transco Zone 6", records[0].Symbol)

	_, _, err = a.loadSeries(context.Background(), src, seriesQuery{Variant: "spot"})
	assert.Error(t, err)
}

func winterRecords() []align.Record {
	out := make([]align.Record, 3)
	for i := range out {
		avg := float64(i)
		out[i] = align.Record{
			Date:     jan(i + 1),
			HighTemp: avg + 4,
			LowTemp:  avg - 4,
			AvgTemp:  avg,
			HDD:      weather.HDD(avg, weather.DefaultReferenceTemp),
			Price:    2.5 + float64(i)/10,
			Symbol:   "HHG4",
		}
	}
	return out
}

func TestComputeResultsSkipsInsufficientStatistics(t *testing.T) {
	res, err := computeResults(winterRecords(), analysis.ExtremeOptions{Percentile: 0.9})
	require.ErrorIs(t, err, analysis.ErrInsufficientData)
	assert.ErrorContains(t, err, "extremes")
	require.NotNil(t, res.correlation)
	assert.Equal(t, []string{"cdd"}, res.correlation.Constant)
	assert.Nil(t, res.extremes)
	require.Len(t, res.skipped, 1)
	assert.Contains(t, res.skipped[0], "extremes")

	summary := res.summary("futures", align.Stats{Joined: 3, WeatherDates: 3, PriceDates: 3})
	assert.Equal(t, 3, summary.Records)
	assert.Equal(t, "2024-01-01", summary.From)
	assert.Equal(t, "2024-01-03", summary.To)
	assert.Equal(t, []string{"cdd"}, summary.ConstantVariables)
	assert.NotContains(t, summary.PriceCorrelation, "cdd")
	assert.Contains(t, summary.PriceCorrelation, "hdd")
	require.Len(t, summary.Seasonal, 1)
	assert.Equal(t, 1, summary.Seasonal[0].Month)

	payload, err := json.Marshal(summary)
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"variant":"futures"`)
	assert.Contains(t, string(payload), `"joined":3`)
	assert.Contains(t, string(payload), `"constant_variables":["cdd"]`)
	assert.NotContains(t, string(payload), `"extremes"`)

	dir := t.TempDir()
	written, err := res.writeArtifacts(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, report.SeriesCSV),
		filepath.Join(dir, report.SeriesPNG),
		filepath.Join(dir, report.SeasonalCSV),
		filepath.Join(dir, report.SeasonalPNG),
		filepath.Join(dir, report.CorrelationCSV),
		filepath.Join(dir, report.CorrelationPNG),
	}, written)
}

func TestComputeResultsTooFewRecords(t *testing.T) {
	res, err := computeResults(winterRecords()[:1], analysis.ExtremeOptions{Percentile: 0.9})
	require.ErrorIs(t, err, analysis.ErrInsufficientData)
	assert.ErrorContains(t, err, "correlation")
	assert.ErrorContains(t, err, "extremes")
	assert.Nil(t, res.correlation)
	assert.Nil(t, res.extremes)
	assert.Len(t, res.skipped, 2)
	assert.Len(t, res.records, 1)
}

func TestAnalyzeFailsOnInsufficientData(t *testing.T) {
	a := newTestApp(t)
	src := testSource(t)
	dir := t.TempDir()

	err := a.analyze(context.Background(), src, AnalyzeOptions{OutputDir: dir, Persist: true})
	require.ErrorIs(t, err, analysis.ErrInsufficientData)
	assert.FileExists(t, filepath.Join(dir, report.SeriesCSV))
	assert.FileExists(t, filepath.Join(dir, report.CorrelationCSV))
	assert.NoFileExists(t, filepath.Join(dir, report.ExtremesCSV))
	assert.Empty(t, src.runs)
}

func TestAnalyzeAllowPartial(t *testing.T) {
	a := newTestApp(t)
	src := testSource(t)
	dir := t.TempDir()

	err := a.analyze(context.Background(), src, AnalyzeOptions{OutputDir: dir, Persist: true, AllowPartial: true})
	require.NoError(t, err)
	require.Len(t, src.runs, 1)

	run := src.runs[0]
	assert.Equal(t, config.VariantFutures, run.Variant)
	assert.Equal(t, 2, run.Records)
	assert.Equal(t, jan(2), run.From)
	assert.Equal(t, jan(3), run.To)

	var summary Summary
	require.NoError(t, json.Unmarshal(run.Summary, &summary))
	require.Len(t, summary.Skipped, 1)
	assert.Contains(t, summary.Skipped[0], "extremes")
	assert.Equal(t, []string{"cdd"}, summary.ConstantVariables)
}

func TestAnalyzeRejectsUnknownVariant(t *testing.T) {
	a := newTestApp(t)
	err := a.analyze(context.Background(), testSource(t), AnalyzeOptions{Variant: "spot", OutputDir: t.TempDir()})
	assert.ErrorContains(t, err, "--variant")
}

func TestComputeResultsRejectsInvalidPrices(t *testing.T) {
	records := winterRecords()
	records[0].Price = 0
	records[1].CDD = 1
	records[1].HDD = 0
	_, err := computeResults(records, analysis.ExtremeOptions{Percentile: 0.5})
	assert.ErrorIs(t, err, analysis.ErrInvalidInput)
}

func TestSimulatedNotification(t *testing.T) {
	a := newTestApp(t)
	now := time.Date(2024, 7, 4, 18, 0, 0, 0, time.UTC)

	note, err := a.simulatedNotification(SimulateOptions{Kind: alerting.KindCDD, AvgTemp: 30, Threshold: 8}, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 7, 4, 0, 0, 0, 0, time.UTC), note.Date)
	assert.InDelta(t, 11.67, note.Value, 1e-9)
	assert.Equal(t, 8.0, note.Threshold)

	_, err = a.simulatedNotification(SimulateOptions{Kind: alerting.KindHDD, AvgTemp: 30}, now)
	assert.Error(t, err)
	_, err = a.simulatedNotification(SimulateOptions{Kind: "wind", AvgTemp: 30}, now)
	assert.Error(t, err)
}

func TestOpenStoreRequiresDSN(t *testing.T) {
	a := newTestApp(t)
	_, _, err := a.openStore(context.Background())
	assert.ErrorContains(t, err, "database.dsn")
}
