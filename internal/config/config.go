package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"gas-weather-analytics/internal/align"
	"gas-weather-analytics/internal/analysis"
	"gas-weather-analytics/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Weather   WeatherConfig   `mapstructure:"weather"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
}

// WeatherConfig covers the archive API location and degree-day base.
type WeatherConfig struct {
	ArchiveURL     string        `mapstructure:"archive_url"`
	Latitude       float64       `mapstructure:"latitude"`
	Longitude      float64       `mapstructure:"longitude"`
	Timezone       string        `mapstructure:"timezone"`
	ReferenceTemp  float64       `mapstructure:"reference_temp"`
	LookbackDays   int           `mapstructure:"lookback_days"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// IngestConfig governs persistence batching.
type IngestConfig struct {
	BatchSize        int `mapstructure:"batch_size"`
	Workers          int `mapstructure:"workers"`
	WeatherChunkSize int `mapstructure:"weather_chunk_size"`
}

// AnalysisConfig selects instruments and statistics parameters.
type AnalysisConfig struct {
	Root           string  `mapstructure:"root"`
	Timezone       string  `mapstructure:"timezone"`
	TieBreak       string  `mapstructure:"tie_break"`
	Variant        string  `mapstructure:"variant"`
	Pipeline       string  `mapstructure:"pipeline"`
	Percentile     float64 `mapstructure:"percentile"`
	VolatilityMode string  `mapstructure:"volatility_mode"`
	OutputDir      string  `mapstructure:"output_dir"`
}

// SchedulerConfig governs the weather refresh cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	RefreshDays     int           `mapstructure:"refresh_days"`
}

// AlertingConfig defines extreme-weather alert routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Channels []string       `mapstructure:"channels"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes Telegram alert parameters.
type TelegramConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	BotToken string        `mapstructure:"bot_token"`
	ChatID   string        `mapstructure:"chat_id"`
	APIBase  string        `mapstructure:"api_base"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// MetricsConfig controls the Prometheus endpoint served by `run`.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("GASWX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "gaswx")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.connect_timeout", "10s")

	v.SetDefault("weather.archive_url", "https://archive-api.open-meteo.com/v1/archive")
	v.SetDefault("weather.latitude", 40.7128)
	v.SetDefault("weather.longitude", -74.0060)
	v.SetDefault("weather.timezone", "America/New_York")
	v.SetDefault("weather.reference_temp", 18.33)
	v.SetDefault("weather.lookback_days", 5*365)
	v.SetDefault("weather.request_timeout", "30s")
	v.SetDefault("weather.user_agent", "gaswx/1.0")

	v.SetDefault("ingest.batch_size", 1000)
	v.SetDefault("ingest.workers", 1)
	v.SetDefault("ingest.weather_chunk_size", 500)

	v.SetDefault("analysis.root", "HH")
	v.SetDefault("analysis.timezone", "America/New_York")
	v.SetDefault("analysis.tie_break", string(align.TieBreakNearestExpiry))
	v.SetDefault("analysis.variant", VariantFutures)
	v.SetDefault("analysis.pipeline", "")
	v.SetDefault("analysis.percentile", analysis.DefaultPercentile)
	v.SetDefault("analysis.volatility_mode", string(analysis.VolatilityFullSeries))
	v.SetDefault("analysis.output_dir", "data")

	v.SetDefault("scheduler.interval", "24h")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x67617377))
	v.SetDefault("scheduler.startup_delay", "0s")
	v.SetDefault("scheduler.refresh_days", 7)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.channels", []string{"telegram"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.bot_token", "")
	v.SetDefault("alerting.telegram.chat_id", "")
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.telegram.timeout", "10s")

	v.SetDefault("export.max_data_points", 5000)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", ":9108")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Scheduler.RefreshDays <= 0 {
		return fmt.Errorf("scheduler.refresh_days must be greater than zero")
	}
	if c.Ingest.BatchSize <= 0 {
		return fmt.Errorf("ingest.batch_size must be greater than zero")
	}
	if c.Ingest.Workers <= 0 {
		return fmt.Errorf("ingest.workers must be greater than zero")
	}
	if c.Ingest.WeatherChunkSize <= 0 {
		return fmt.Errorf("ingest.weather_chunk_size must be greater than zero")
	}
	if c.Weather.Latitude < -90 || c.Weather.Latitude > 90 {
		return fmt.Errorf("weather.latitude must be within [-90, 90]")
	}
	if c.Weather.Longitude < -180 || c.Weather.Longitude > 180 {
		return fmt.Errorf("weather.longitude must be within [-180, 180]")
	}
	if c.Weather.LookbackDays <= 0 {
		return fmt.Errorf("weather.lookback_days must be greater than zero")
	}
	if _, err := time.LoadLocation(c.Weather.Timezone); err != nil {
		return fmt.Errorf("weather.timezone: %w", err)
	}
	if _, err := c.Analysis.Location(); err != nil {
		return fmt.Errorf("analysis.timezone: %w", err)
	}
	if _, err := align.ParseTieBreak(c.Analysis.TieBreak); err != nil {
		return fmt.Errorf("analysis.tie_break: %w", err)
	}
	if _, err := analysis.ParseVolatilityMode(c.Analysis.VolatilityMode); err != nil {
		return fmt.Errorf("analysis.volatility_mode: %w", err)
	}
	if c.Analysis.Percentile <= 0 || c.Analysis.Percentile >= 1 {
		return fmt.Errorf("analysis.percentile must be within (0, 1)")
	}
	if c.Analysis.Variant != VariantFutures && c.Analysis.Variant != VariantSettlement {
		return fmt.Errorf("analysis.variant must be %q or %q", VariantFutures, VariantSettlement)
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	return nil
}

// Analysis variants.
const (
	VariantFutures    = "futures"
	VariantSettlement = "settlement"
)

// Location resolves the calendar timezone used to bucket ticks into dates.
func (a AnalysisConfig) Location() (*time.Location, error) {
	if a.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(a.Timezone)
}

// AlignOptions builds aligner options from the analysis section.
func (a AnalysisConfig) AlignOptions() (align.Options, error) {
	loc, err := a.Location()
	if err != nil {
		return align.Options{}, err
	}
	tieBreak, err := align.ParseTieBreak(a.TieBreak)
	if err != nil {
		return align.Options{}, err
	}
	return align.Options{Root: a.Root, Location: loc, TieBreak: tieBreak}, nil
}

// ExtremeOptions builds extreme-weather analysis options.
func (a AnalysisConfig) ExtremeOptions() (analysis.ExtremeOptions, error) {
	mode, err := analysis.ParseVolatilityMode(a.VolatilityMode)
	if err != nil {
		return analysis.ExtremeOptions{}, err
	}
	return analysis.ExtremeOptions{Percentile: a.Percentile, Mode: mode}, nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
