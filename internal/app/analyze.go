package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"gas-weather-analytics/internal/align"
	"gas-weather-analytics/internal/analysis"
	"gas-weather-analytics/internal/config"
	"gas-weather-analytics/internal/report"
	"gas-weather-analytics/internal/storage"
)

// Summary is the JSON document persisted with an analysis run.
type Summary struct {
	Variant           string             `json:"variant"`
	Records           int                `json:"records"`
	From              string             `json:"from"`
	To                string             `json:"to"`
	Alignment         AlignmentSummary   `json:"alignment"`
	PriceCorrelation  map[string]float64 `json:"price_correlation,omitempty"`
	ConstantVariables []string           `json:"constant_variables,omitempty"`
	Seasonal          []MonthSummary     `json:"seasonal"`
	Extremes          *ExtremeSummary    `json:"extremes,omitempty"`
	Skipped           []string           `json:"skipped,omitempty"`
}

// AlignmentSummary mirrors align.Stats.
type AlignmentSummary struct {
	WeatherDates     int `json:"weather_dates"`
	PriceDates       int `json:"price_dates"`
	Joined           int `json:"joined"`
	DuplicateWeather int `json:"duplicate_weather"`
	Ineligible       int `json:"ineligible"`
	TieBreaks        int `json:"tie_breaks"`
	AfterReference   int `json:"after_reference"`
}

// MonthSummary is one seasonal row.
type MonthSummary struct {
	Month     int     `json:"month"`
	Records   int     `json:"records"`
	MeanPrice float64 `json:"mean_price"`
	MeanCDD   float64 `json:"mean_cdd"`
	MeanHDD   float64 `json:"mean_hdd"`
}

// ExtremeSummary flattens analysis.ExtremeReport.
type ExtremeSummary struct {
	Percentile   float64        `json:"percentile"`
	CDDThreshold float64        `json:"cdd_threshold"`
	HDDThreshold float64        `json:"hdd_threshold"`
	Overall      analysisRegime `json:"overall"`
	HighCDD      analysisRegime `json:"high_cdd"`
	HighHDD      analysisRegime `json:"high_hdd"`
}

type analysisRegime struct {
	Records    int     `json:"records"`
	MeanPrice  float64 `json:"mean_price"`
	Volatility float64 `json:"volatility"`
}

// results bundles everything computed over one aligned series.
type results struct {
	records     []align.Record
	correlation *analysis.Matrix
	seasonal    []analysis.MonthStat
	extremes    *analysis.ExtremeReport
	skipped     []string
}

// computeResults runs every statistic. A statistic without enough data is
// left out and recorded in skipped; the returned results then hold whatever
// was computable and the error wraps analysis.ErrInsufficientData.
func computeResults(records []align.Record, opts analysis.ExtremeOptions) (results, error) {
	res := results{records: records, seasonal: analysis.Seasonal(records)}
	var insufficient []error

	m, err := analysis.Correlation(records)
	switch {
	case err == nil:
		res.correlation = &m
	case errors.Is(err, analysis.ErrInsufficientData):
		res.skipped = append(res.skipped, "correlation: "+err.Error())
		insufficient = append(insufficient, fmt.Errorf("correlation: %w", err))
	default:
		return results{}, err
	}

	ext, err := analysis.Extremes(records, opts)
	switch {
	case err == nil:
		res.extremes = &ext
	case errors.Is(err, analysis.ErrInsufficientData):
		res.skipped = append(res.skipped, "extremes: "+err.Error())
		insufficient = append(insufficient, fmt.Errorf("extremes: %w", err))
	default:
		return results{}, err
	}

	if len(insufficient) > 0 {
		return res, fmt.Errorf("incomplete analysis: %w", errors.Join(insufficient...))
	}
	return res, nil
}

func (r results) summary(variant string, stats align.Stats) Summary {
	s := Summary{
		Variant: variant,
		Records: len(r.records),
		Alignment: AlignmentSummary{
			WeatherDates:     stats.WeatherDates,
			PriceDates:       stats.PriceDates,
			Joined:           stats.Joined,
			DuplicateWeather: stats.DuplicateWeather,
			Ineligible:       stats.Ineligible,
			TieBreaks:        stats.TieBreaks,
			AfterReference:   stats.AfterReference,
		},
		Seasonal: make([]MonthSummary, 0, len(r.seasonal)),
		Skipped:  r.skipped,
	}
	if len(r.records) > 0 {
		s.From = r.records[0].Date.Format(time.DateOnly)
		s.To = r.records[len(r.records)-1].Date.Format(time.DateOnly)
	}
	if r.correlation != nil {
		s.ConstantVariables = r.correlation.Constant
		s.PriceCorrelation = make(map[string]float64, len(r.correlation.Vars)-1)
		for _, v := range r.correlation.Vars {
			if v == "price" {
				continue
			}
			if c, ok := r.correlation.At("price", v); ok {
				s.PriceCorrelation[v] = c
			}
		}
	}
	for _, m := range r.seasonal {
		s.Seasonal = append(s.Seasonal, MonthSummary{
			Month:     int(m.Month),
			Records:   m.Records,
			MeanPrice: m.MeanPrice,
			MeanCDD:   m.MeanCDD,
			MeanHDD:   m.MeanHDD,
		})
	}
	if r.extremes != nil {
		s.Extremes = &ExtremeSummary{
			Percentile:   r.extremes.Percentile,
			CDDThreshold: r.extremes.CDDThreshold,
			HDDThreshold: r.extremes.HDDThreshold,
			Overall:      toRegime(r.extremes.Overall),
			HighCDD:      toRegime(r.extremes.HighCDD),
			HighHDD:      toRegime(r.extremes.HighHDD),
		}
	}
	return s
}

func toRegime(r analysis.Regime) analysisRegime {
	return analysisRegime{Records: r.Records, MeanPrice: r.MeanPrice, Volatility: r.Volatility}
}

// writeArtifacts renders every available result into dir.
func (r results) writeArtifacts(dir string) ([]string, error) {
	var written []string
	write := func(name string, fn func(path string) error) error {
		path := filepath.Join(dir, name)
		if err := fn(path); err != nil {
			return err
		}
		written = append(written, path)
		return nil
	}

	if err := write(report.SeriesCSV, func(p string) error { return report.WriteSeriesCSV(p, r.records) }); err != nil {
		return written, err
	}
	if len(r.records) >= 2 {
		if err := write(report.SeriesPNG, func(p string) error { return report.WriteSeriesPNG(p, r.records) }); err != nil {
			return written, err
		}
	}
	if err := write(report.SeasonalCSV, func(p string) error { return report.WriteSeasonalCSV(p, r.seasonal) }); err != nil {
		return written, err
	}
	if len(r.seasonal) > 0 {
		if err := write(report.SeasonalPNG, func(p string) error { return report.WriteSeasonalPNG(p, r.seasonal) }); err != nil {
			return written, err
		}
	}
	if r.correlation != nil {
		m := *r.correlation
		if err := write(report.CorrelationCSV, func(p string) error { return report.WriteCorrelationCSV(p, m) }); err != nil {
			return written, err
		}
		if err := write(report.CorrelationPNG, func(p string) error { return report.WriteCorrelationPNG(p, m) }); err != nil {
			return written, err
		}
	}
	if r.extremes != nil {
		ext := *r.extremes
		if err := write(report.ExtremesCSV, func(p string) error { return report.WriteExtremesCSV(p, ext) }); err != nil {
			return written, err
		}
	}
	return written, nil
}

// runRecorder persists analysis run summaries.
type runRecorder interface {
	InsertAnalysisRun(ctx context.Context, run storage.AnalysisRun) (storage.AnalysisRun, error)
}

// analysisStore is what an analyze invocation reads from and writes to.
type analysisStore interface {
	seriesSource
	runRecorder
}

// Analyze aligns the stored series, computes statistics, writes report
// artifacts and optionally persists a run summary. When a statistic lacks
// data the computable artifacts are still written and the returned error
// wraps analysis.ErrInsufficientData, unless opts.AllowPartial is set.
func (a *App) Analyze(ctx context.Context, opts AnalyzeOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	return a.analyze(ctx, store, opts)
}

func (a *App) analyze(ctx context.Context, store analysisStore, opts AnalyzeOptions) error {
	variant := opts.Variant
	if variant == "" {
		variant = a.Config.Analysis.Variant
	}
	if variant != config.VariantFutures && variant != config.VariantSettlement {
		return errors.New("--variant must be futures or settlement")
	}
	outDir := opts.OutputDir
	if outDir == "" {
		outDir = a.Config.Analysis.OutputDir
	}
	extremeOpts, err := a.Config.Analysis.ExtremeOptions()
	if err != nil {
		return err
	}

	records, stats, err := a.loadSeries(ctx, store, seriesQuery{Variant: variant, Pipeline: opts.Pipeline, AsOf: opts.AsOf})
	a.metrics.AnalysisRuns.WithLabelValues(variant).Inc()
	if err != nil {
		return err
	}
	a.Logger.Info().
		Str("variant", variant).
		Int("weather_dates", stats.WeatherDates).
		Int("price_dates", stats.PriceDates).
		Int("joined", stats.Joined).
		Int("duplicate_weather", stats.DuplicateWeather).
		Int("ineligible", stats.Ineligible).
		Int("tie_breaks", stats.TieBreaks).
		Int("after_reference", stats.AfterReference).
		Msg("series aligned")

	res, incomplete := computeResults(records, extremeOpts)
	if incomplete != nil && !errors.Is(incomplete, analysis.ErrInsufficientData) {
		return incomplete
	}
	for _, reason := range res.skipped {
		a.Logger.Warn().Str("reason", reason).Msg("statistic skipped")
	}
	if res.correlation != nil {
		for _, v := range res.correlation.Vars[1:] {
			r, ok := res.correlation.At("price", v)
			if !ok {
				a.Logger.Warn().Str("variable", v).Msg("price correlation undefined, variable is constant")
				continue
			}
			a.Logger.Info().Str("variable", v).Float64("pearson_r", r).Msg("price correlation")
		}
	}
	if res.extremes != nil {
		ext := res.extremes
		a.Logger.Info().
			Float64("cdd_threshold", ext.CDDThreshold).
			Float64("hdd_threshold", ext.HDDThreshold).
			Float64("overall_mean", ext.Overall.MeanPrice).
			Float64("overall_volatility", ext.Overall.Volatility).
			Float64("high_cdd_mean", ext.HighCDD.MeanPrice).
			Float64("high_cdd_volatility", ext.HighCDD.Volatility).
			Float64("high_hdd_mean", ext.HighHDD.MeanPrice).
			Float64("high_hdd_volatility", ext.HighHDD.Volatility).
			Msg("extreme weather impact")
	}

	written, err := res.writeArtifacts(outDir)
	if err != nil {
		return err
	}
	a.Logger.Info().Strs("files", written).Msg("report written")

	if incomplete != nil && !opts.AllowPartial {
		return incomplete
	}

	if !opts.Persist {
		return nil
	}

	summary := res.summary(variant, stats)
	payload, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	run, err := store.InsertAnalysisRun(ctx, storage.AnalysisRun{
		ID:      uuid.New(),
		Variant: variant,
		Records: len(records),
		From:    records[0].Date,
		To:      records[len(records)-1].Date,
		Summary: payload,
	})
	if err != nil {
		return err
	}
	a.Logger.Info().Str("run_id", run.ID.String()).Msg("analysis run persisted")
	return nil
}
