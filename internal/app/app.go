package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"gas-weather-analytics/internal/alerting"
	"gas-weather-analytics/internal/config"
	"gas-weather-analytics/internal/fetcher"
	"gas-weather-analytics/internal/ingest"
	"gas-weather-analytics/internal/metrics"
	"gas-weather-analytics/internal/scheduler"
	"gas-weather-analytics/internal/service"
	"gas-weather-analytics/internal/storage"
	"gas-weather-analytics/internal/weather"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	registry *prometheus.Registry
	metrics  *metrics.Metrics
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &App{
		Config:   cfg,
		Logger:   logger.With().Str("component", "app").Logger(),
		registry: registry,
		metrics:  metrics.New(registry),
	}
}

func (a *App) newArchive() *fetcher.Archive {
	return fetcher.NewArchive(fetcher.ArchiveOptions{
		BaseURL:   a.Config.Weather.ArchiveURL,
		Latitude:  a.Config.Weather.Latitude,
		Longitude: a.Config.Weather.Longitude,
		Timezone:  a.Config.Weather.Timezone,
		Timeout:   a.Config.Weather.RequestTimeout,
		UserAgent: a.Config.Weather.UserAgent,
	}, a.Logger, nil)
}

func (a *App) newCalculator() *weather.Calculator {
	return weather.NewCalculator(weather.Config{ReferenceTemp: a.Config.Weather.ReferenceTemp})
}

// newIngester builds an ingester; a positive workers overrides ingest.workers.
func (a *App) newIngester(store ingest.Store, workers int) *ingest.Ingester {
	if workers <= 0 {
		workers = a.Config.Ingest.Workers
	}
	return ingest.New(store, ingest.Options{
		BatchSize:        a.Config.Ingest.BatchSize,
		Workers:          workers,
		WeatherChunkSize: a.Config.Ingest.WeatherChunkSize,
	}, a.Logger, ingest.WithMetrics(a.metrics))
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, timeout, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, errors.New("database.dsn not configured")
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running weather refresh service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.Migrate(ctx); err != nil {
		return err
	}

	if a.Config.Metrics.Enabled {
		srv := metrics.NewServer(a.Config.Metrics.Addr, a.registry, a.Logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.Logger.Error().Err(err).Msg("metrics server stopped")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
		RunOnStart:   true,
	}, a.Logger, nil)

	svc, err := service.New(a.Config, service.Deps{
		Scheduler:  sched,
		Fetcher:    a.newArchive(),
		Calculator: a.newCalculator(),
		Ingester:   a.newIngester(store, 0),
		Weather:    store,
		Ticks:      store,
		Notifier:   a.newNotifier(),
		Locker:     store,
		Metrics:    a.metrics,
	}, a.Logger)
	if err != nil {
		return err
	}

	a.Logger.Info().Msg("starting weather refresh service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("weather refresh service stopped")
	return nil
}

// FetchOptions configure fetch-weather. Zero bounds fall back to the
// configured lookback window.
type FetchOptions struct {
	From   time.Time
	To     time.Time
	DryRun bool
}

// IngestTicksOptions configure ingest-ticks. Zero values use config defaults.
type IngestTicksOptions struct {
	Path      string
	BatchSize int
	Workers   int
}

// AnalyzeOptions configure the analyze command.
type AnalyzeOptions struct {
	Variant   string
	Pipeline  string
	AsOf      time.Time
	OutputDir string
	Persist   bool

	// AllowPartial returns success when some statistics lacked data.
	AllowPartial bool
}

// ExportOptions hold parameters for exporting the aligned series.
type ExportOptions struct {
	From      time.Time
	To        time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// CleanOptions configure clean-db.
type CleanOptions struct {
	Recreate bool
}
