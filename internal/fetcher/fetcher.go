package fetcher

import (
	"context"
	"errors"
	"time"

	"gas-weather-analytics/internal/weather"
)

// ErrMalformedResponse reports an archive payload that cannot be mapped to daily rows.
var ErrMalformedResponse = errors.New("fetcher: malformed archive response")

// WeatherFetcher retrieves daily temperature triples for an inclusive date range.
type WeatherFetcher interface {
	FetchDaily(ctx context.Context, from, to time.Time) ([]weather.DailyTemperature, error)
}
