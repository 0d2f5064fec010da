package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"gas-weather-analytics/internal/market"
	"gas-weather-analytics/internal/weather"
)

const (
	insertSettlementSQL = `INSERT INTO settlement_prices (date, pipeline, settlement_price)
    VALUES ($1, $2, $3)
    ON CONFLICT (date, pipeline) DO NOTHING;`

	listSettlementsSQL = `SELECT date, pipeline, settlement_price::text
    FROM settlement_prices
    WHERE ($1::date IS NULL OR date >= $1::date)
      AND ($2::date IS NULL OR date <= $2::date)
      AND ($3::text = '' OR pipeline = $3::text)
    ORDER BY date, pipeline;`
)

// InsertSettlements writes settlement prices in one transaction, skipping
// (date, pipeline) pairs that already exist.
func (s *Store) InsertSettlements(ctx context.Context, prices []market.SettlementPrice) (int, error) {
	batch := &pgx.Batch{}
	for _, p := range prices {
		batch.Queue(insertSettlementSQL, p.Date, p.Pipeline, p.Price.String())
	}
	inserted, err := s.insertQueued(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("insert settlements: %w", err)
	}
	return inserted, nil
}

// ListSettlements returns settlement prices in a date range, optionally for
// one pipeline only.
func (s *Store) ListSettlements(ctx context.Context, from, to time.Time, pipeline string) ([]market.SettlementPrice, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	lo, hi := timeRange(from, to)
	rows, err := pool.Query(ctx, listSettlementsSQL, lo, hi, pipeline)
	if err != nil {
		return nil, fmt.Errorf("list settlements: %w", err)
	}
	defer rows.Close()

	out := make([]market.SettlementPrice, 0)
	for rows.Next() {
		var (
			p        market.SettlementPrice
			priceStr string
		)
		if err := rows.Scan(&p.Date, &p.Pipeline, &priceStr); err != nil {
			return nil, fmt.Errorf("scan settlement: %w", err)
		}
		if p.Price, err = decimal.NewFromString(priceStr); err != nil {
			return nil, fmt.Errorf("parse settlement price: %w", err)
		}
		p.Date = weather.CivilDate(p.Date)
		out = append(out, p)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}
