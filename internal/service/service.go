package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"gas-weather-analytics/internal/alerting"
	"gas-weather-analytics/internal/align"
	"gas-weather-analytics/internal/analysis"
	"gas-weather-analytics/internal/config"
	"gas-weather-analytics/internal/fetcher"
	"gas-weather-analytics/internal/ingest"
	"gas-weather-analytics/internal/market"
	"gas-weather-analytics/internal/metrics"
	"gas-weather-analytics/internal/scheduler"
	"gas-weather-analytics/internal/storage"
	"gas-weather-analytics/internal/weather"
)

// minHistoryDays is the history needed before percentile thresholds are trusted.
const minHistoryDays = 30

// priceLookback bounds the tick window searched for an alert's reference price.
const priceLookback = 10

// WeatherReader reads persisted observations.
type WeatherReader interface {
	ListWeather(ctx context.Context, from, to time.Time) ([]weather.Observation, error)
	LatestWeatherDate(ctx context.Context) (time.Time, bool, error)
}

// TickReader reads persisted futures ticks.
type TickReader interface {
	ListTicks(ctx context.Context, q storage.TickQuery) ([]market.PriceTick, error)
}

// WeatherUpserter persists observations.
type WeatherUpserter interface {
	UpsertWeather(ctx context.Context, records []weather.Observation) (ingest.WeatherResult, error)
}

// Deps carries the collaborators of a Service. Ticks, Notifier, Locker and
// Metrics are optional.
type Deps struct {
	Scheduler  *scheduler.Scheduler
	Fetcher    fetcher.WeatherFetcher
	Calculator *weather.Calculator
	Ingester   WeatherUpserter
	Weather    WeatherReader
	Ticks      TickReader
	Notifier   alerting.Notifier
	Locker     storage.AdvisoryLocker
	Metrics    *metrics.Metrics
	Clock      clockwork.Clock
}

// RefreshResult summarises one refresh cycle.
type RefreshResult struct {
	Fetched  int
	Inserted int
	Skipped  int
	NewDates int
	Alerts   []alerting.Notification
}

// Service orchestrates weather refresh, persistence and alerting.
type Service struct {
	deps   Deps
	logger zerolog.Logger

	refreshDays int
	location    *time.Location
	percentile  float64
	channels    []string
	alertsOn    bool
	lockKey     int64
	alignOpts   align.Options
	filter      *market.SymbolFilter
}

// New constructs the refresh service.
func New(cfg *config.Config, deps Deps, logger zerolog.Logger) (*Service, error) {
	if deps.Fetcher == nil || deps.Calculator == nil || deps.Ingester == nil || deps.Weather == nil {
		return nil, errors.New("service requires fetcher, calculator, ingester and weather reader")
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}

	loc, err := time.LoadLocation(cfg.Weather.Timezone)
	if err != nil {
		return nil, fmt.Errorf("weather.timezone: %w", err)
	}
	alignOpts, err := cfg.Analysis.AlignOptions()
	if err != nil {
		return nil, err
	}

	return &Service{
		deps:        deps,
		logger:      logger.With().Str("component", "service").Logger(),
		refreshDays: cfg.Scheduler.RefreshDays,
		location:    loc,
		percentile:  cfg.Analysis.Percentile,
		channels:    cfg.Alerting.Channels,
		alertsOn:    cfg.Alerting.Enabled,
		lockKey:     cfg.Scheduler.AdvisoryLockKey,
		alignOpts:   alignOpts,
		filter:      market.NewSymbolFilter(alignOpts.Root),
	}, nil
}

// Run begins the aligned refresh loop.
func (s *Service) Run(ctx context.Context) error {
	if s.deps.Scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.deps.Scheduler.Run(ctx, s.ProcessBucket)
}

// ProcessBucket runs one refresh cycle unless another process holds the lock.
func (s *Service) ProcessBucket(ctx context.Context, bucket time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("bucket", bucket).Msg("skip bucket because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	_, err = s.Refresh(ctx)
	if s.deps.Metrics != nil {
		s.deps.Metrics.RefreshRuns.WithLabelValues(metrics.Outcome(err)).Inc()
		if err == nil {
			s.deps.Metrics.LastRefresh.Set(float64(s.deps.Clock.Now().Unix()))
		}
	}
	return err
}

// Refresh fetches the trailing window, stores new days and alerts on new
// days whose degree days exceed the historical percentile.
func (s *Service) Refresh(ctx context.Context) (RefreshResult, error) {
	to := weather.CivilDate(s.deps.Clock.Now().In(s.location))
	from := to.AddDate(0, 0, -s.refreshDays)

	prevLatest, hadData, err := s.deps.Weather.LatestWeatherDate(ctx)
	if err != nil {
		return RefreshResult{}, err
	}

	days, err := s.deps.Fetcher.FetchDaily(ctx, from, to)
	if s.deps.Metrics != nil {
		s.deps.Metrics.WeatherFetches.WithLabelValues(metrics.Outcome(err)).Inc()
	}
	if err != nil {
		return RefreshResult{}, fmt.Errorf("fetch weather: %w", err)
	}

	observations, err := s.deps.Calculator.ComputeDegreeDays(days)
	if err != nil {
		return RefreshResult{}, err
	}

	upserted, err := s.deps.Ingester.UpsertWeather(ctx, observations)
	if err != nil {
		return RefreshResult{}, err
	}

	res := RefreshResult{Fetched: len(observations), Inserted: upserted.Inserted, Skipped: upserted.Skipped}
	fresh := make([]weather.Observation, 0, len(observations))
	for _, o := range observations {
		if !hadData || o.Date.After(prevLatest) {
			fresh = append(fresh, o)
		}
	}
	res.NewDates = len(fresh)

	s.logger.Info().
		Str("from", from.Format(time.DateOnly)).
		Str("to", to.Format(time.DateOnly)).
		Int("fetched", res.Fetched).
		Int("inserted", res.Inserted).
		Int("skipped", res.Skipped).
		Int("new_dates", res.NewDates).
		Msg("weather refreshed")

	if !s.alertsOn || len(fresh) == 0 {
		return res, nil
	}

	alerts, err := s.evaluate(ctx, fresh)
	if err != nil {
		return res, err
	}
	res.Alerts = alerts
	s.dispatch(ctx, alerts)
	return res, nil
}

// evaluate builds a notification for every fresh day above a threshold.
func (s *Service) evaluate(ctx context.Context, fresh []weather.Observation) ([]alerting.Notification, error) {
	history, err := s.deps.Weather.ListWeather(ctx, time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}
	if len(history) < minHistoryDays {
		s.logger.Debug().Int("history", len(history)).Msg("not enough history for alert thresholds")
		return nil, nil
	}

	cdd := make([]float64, len(history))
	hdd := make([]float64, len(history))
	for i, o := range history {
		cdd[i], hdd[i] = o.CDD, o.HDD
	}
	sort.Float64s(cdd)
	sort.Float64s(hdd)
	cddThreshold := analysis.Quantile(cdd, s.percentile)
	hddThreshold := analysis.Quantile(hdd, s.percentile)

	var alerts []alerting.Notification
	for _, o := range fresh {
		note := alerting.Notification{
			Date:       o.Date,
			Percentile: s.percentile,
			AvgTemp:    o.AvgTemp,
			Channels:   s.channels,
		}
		switch {
		case o.CDD > cddThreshold:
			note.Kind, note.Value, note.Threshold = alerting.KindCDD, o.CDD, cddThreshold
		case o.HDD > hddThreshold:
			note.Kind, note.Value, note.Threshold = alerting.KindHDD, o.HDD, hddThreshold
		default:
			continue
		}
		note.Price, note.Symbol = s.referencePrice(ctx, history, o.Date)
		alerts = append(alerts, note)
	}
	return alerts, nil
}

// referencePrice returns the latest aligned futures price on or before date.
func (s *Service) referencePrice(ctx context.Context, history []weather.Observation, date time.Time) (float64, string) {
	if s.deps.Ticks == nil {
		return 0, ""
	}
	from := date.AddDate(0, 0, -priceLookback)
	ticks, err := s.deps.Ticks.ListTicks(ctx, storage.TickQuery{
		From:          from.Add(-24 * time.Hour),
		To:            date.Add(48 * time.Hour),
		SymbolPattern: s.filter.Pattern(),
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("load ticks for alert price")
		return 0, ""
	}

	opts := s.alignOpts
	opts.ReferenceDate = date
	records, err := align.Series(history, ticks, opts)
	if err != nil {
		return 0, ""
	}
	last := records[len(records)-1]
	if last.Date.Before(from) {
		return 0, ""
	}
	return last.Price, last.Symbol
}

func (s *Service) dispatch(ctx context.Context, alerts []alerting.Notification) {
	for _, note := range alerts {
		s.logger.Warn().
			Str("date", note.Date.Format(time.DateOnly)).
			Str("kind", note.Kind).
			Float64("value", note.Value).
			Float64("threshold", note.Threshold).
			Msg("extreme weather detected")
		if s.deps.Notifier == nil {
			continue
		}
		if err := s.deps.Notifier.Notify(ctx, note); err != nil {
			s.logger.Error().Err(err).Str("date", note.Date.Format(time.DateOnly)).Msg("failed to dispatch alert")
			continue
		}
		if s.deps.Metrics != nil {
			s.deps.Metrics.AlertsSent.Inc()
		}
	}
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.deps.Locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.deps.Locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
