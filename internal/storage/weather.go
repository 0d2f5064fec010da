package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"gas-weather-analytics/internal/weather"
)

const (
	insertWeatherSQL = `INSERT INTO weather_data (date, high_temp, low_temp, avg_temp, cdd, hdd)
    VALUES ($1, $2, $3, $4, $5, $6)
    ON CONFLICT (date) DO NOTHING;`

	listWeatherSQL = `SELECT date, high_temp, low_temp, avg_temp, cdd, hdd
    FROM weather_data
    WHERE ($1::date IS NULL OR date >= $1::date)
      AND ($2::date IS NULL OR date <= $2::date)
    ORDER BY date;`

	latestWeatherSQL = `SELECT MAX(date) FROM weather_data;`
)

// InsertWeather writes observations in a single transaction, skipping dates
// that already exist. It returns the number of rows inserted.
func (s *Store) InsertWeather(ctx context.Context, observations []weather.Observation) (int, error) {
	batch := &pgx.Batch{}
	for _, o := range observations {
		batch.Queue(insertWeatherSQL, o.Date, o.HighTemp, o.LowTemp, o.AvgTemp, o.CDD, o.HDD)
	}
	inserted, err := s.insertQueued(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("insert weather: %w", err)
	}
	return inserted, nil
}

// ListWeather returns observations between two dates inclusive, ordered by date.
func (s *Store) ListWeather(ctx context.Context, from, to time.Time) ([]weather.Observation, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	lo, hi := timeRange(from, to)
	rows, err := pool.Query(ctx, listWeatherSQL, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("list weather: %w", err)
	}
	defer rows.Close()

	out := make([]weather.Observation, 0)
	for rows.Next() {
		var o weather.Observation
		if err := rows.Scan(&o.Date, &o.HighTemp, &o.LowTemp, &o.AvgTemp, &o.CDD, &o.HDD); err != nil {
			return nil, fmt.Errorf("scan weather: %w", err)
		}
		o.Date = weather.CivilDate(o.Date)
		out = append(out, o)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// LatestWeatherDate returns the most recent stored date, if any.
func (s *Store) LatestWeatherDate(ctx context.Context) (time.Time, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return time.Time{}, false, err
	}
	var latest *time.Time
	if err := pool.QueryRow(ctx, latestWeatherSQL).Scan(&latest); err != nil {
		return time.Time{}, false, fmt.Errorf("latest weather date: %w", err)
	}
	if latest == nil {
		return time.Time{}, false, nil
	}
	return weather.CivilDate(*latest), true, nil
}
