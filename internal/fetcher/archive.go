package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"gas-weather-analytics/internal/weather"
)

const dailyFields = "temperature_2m_max,temperature_2m_min,temperature_2m_mean"

// ArchiveOptions parameterise the Open-Meteo archive client.
type ArchiveOptions struct {
	BaseURL   string
	Latitude  float64
	Longitude float64
	Timezone  string
	Timeout   time.Duration
	UserAgent string
}

// Archive fetches historical daily temperatures from the Open-Meteo archive API.
type Archive struct {
	opts    ArchiveOptions
	logger  zerolog.Logger
	client  *http.Client
	clock   clockwork.Clock
	baseURL string
}

// NewArchive constructs an archive fetcher. A nil clock uses wall time.
func NewArchive(opts ArchiveOptions, logger zerolog.Logger, clock clockwork.Clock) *Archive {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://archive-api.open-meteo.com/v1/archive"
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Archive{
		opts:    opts,
		logger:  logger.With().Str("component", "weather_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		clock:   clock,
		baseURL: baseURL,
	}
}

// Window returns the inclusive range covering the last days days, ending
// today in the archive timezone.
func (a *Archive) Window(days int) (time.Time, time.Time) {
	now := a.clock.Now()
	if loc, err := time.LoadLocation(a.opts.Timezone); err == nil && a.opts.Timezone != "" {
		now = now.In(loc)
	}
	to := weather.CivilDate(now)
	return to.AddDate(0, 0, -days), to
}

// FetchDaily requests max, min and mean 2m temperature for every day in
// [from, to]. Days the archive has not filled yet (null values) are dropped.
func (a *Archive) FetchDaily(ctx context.Context, from, to time.Time) ([]weather.DailyTemperature, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("invalid range: %s is after %s", from.Format(time.DateOnly), to.Format(time.DateOnly))
	}

	query := url.Values{}
	query.Set("latitude", strconv.FormatFloat(a.opts.Latitude, 'f', -1, 64))
	query.Set("longitude", strconv.FormatFloat(a.opts.Longitude, 'f', -1, 64))
	query.Set("start_date", from.Format(time.DateOnly))
	query.Set("end_date", to.Format(time.DateOnly))
	query.Set("daily", dailyFields)
	if a.opts.Timezone != "" {
		query.Set("timezone", a.opts.Timezone)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(a.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "gaswx/1.0")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, parseHTTPError(resp.StatusCode, payload)
	}

	var archive archiveResponse
	if err := json.Unmarshal(payload, &archive); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	days, missing, err := archive.toDaily()
	if err != nil {
		return nil, err
	}
	if missing > 0 {
		a.logger.Debug().Int("missing", missing).Msg("archive days without temperatures skipped")
	}
	a.logger.Info().
		Str("from", from.Format(time.DateOnly)).
		Str("to", to.Format(time.DateOnly)).
		Int("days", len(days)).
		Msg("weather archive fetched")
	return days, nil
}

type archiveResponse struct {
	Daily struct {
		Time []string   `json:"time"`
		Max  []*float64 `json:"temperature_2m_max"`
		Min  []*float64 `json:"temperature_2m_min"`
		Mean []*float64 `json:"temperature_2m_mean"`
	} `json:"daily"`
}

func (r archiveResponse) toDaily() ([]weather.DailyTemperature, int, error) {
	d := r.Daily
	n := len(d.Time)
	if len(d.Max) != n || len(d.Min) != n || len(d.Mean) != n {
		return nil, 0, fmt.Errorf("%w: %d dates but %d/%d/%d max/min/mean values",
			ErrMalformedResponse, n, len(d.Max), len(d.Min), len(d.Mean))
	}

	out := make([]weather.DailyTemperature, 0, n)
	missing := 0
	for i, raw := range d.Time {
		date, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: date %q: %v", ErrMalformedResponse, raw, err)
		}
		if d.Max[i] == nil || d.Min[i] == nil || d.Mean[i] == nil {
			missing++
			continue
		}
		out = append(out, weather.DailyTemperature{
			Date: date,
			High: *d.Max[i],
			Low:  *d.Min[i],
			Mean: *d.Mean[i],
		})
	}
	return out, missing, nil
}

type errorResponse struct {
	Error  bool   `json:"error"`
	Reason string `json:"reason"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil && apiErr.Reason != "" {
		return fmt.Errorf("weather archive error (%d): %s", status, apiErr.Reason)
	}
	if len(payload) > 0 {
		return fmt.Errorf("weather archive error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("weather archive error (%d)", status)
}

var _ WeatherFetcher = (*Archive)(nil)
