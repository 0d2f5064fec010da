package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"gas-weather-analytics/internal/market"
)

const (
	insertTickSQL = `INSERT INTO futures_data (ts_event, instrument_id, symbol, open, high, low, close, volume)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    ON CONFLICT (ts_event, instrument_id) DO NOTHING;`

	listTicksSQL = `SELECT ts_event, instrument_id, symbol, open::text, high::text, low::text, close::text, volume
    FROM futures_data
    WHERE ($1::timestamptz IS NULL OR ts_event >= $1::timestamptz)
      AND ($2::timestamptz IS NULL OR ts_event < $2::timestamptz)
      AND ($3::text = '' OR symbol ~ $3::text)
    ORDER BY ts_event, instrument_id;`
)

// InsertTicks writes one batch of ticks in a single transaction. Rows whose
// (ts_event, instrument_id) already exists are skipped; the count of rows
// actually inserted is returned. On error nothing from the batch is kept.
func (s *Store) InsertTicks(ctx context.Context, ticks []market.PriceTick) (int, error) {
	batch := &pgx.Batch{}
	for _, t := range ticks {
		batch.Queue(insertTickSQL,
			t.Timestamp,
			int64(t.InstrumentID),
			t.Symbol,
			t.Open.String(),
			t.High.String(),
			t.Low.String(),
			t.Close.String(),
			int64(t.Volume),
		)
	}
	inserted, err := s.insertQueued(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("insert ticks: %w", err)
	}
	return inserted, nil
}

// ListTicks returns stored ticks ordered by event time then instrument.
func (s *Store) ListTicks(ctx context.Context, q TickQuery) ([]market.PriceTick, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	lo, hi := timeRange(q.From, q.To)
	rows, err := pool.Query(ctx, listTicksSQL, lo, hi, q.SymbolPattern)
	if err != nil {
		return nil, fmt.Errorf("list ticks: %w", err)
	}
	defer rows.Close()

	out := make([]market.PriceTick, 0)
	for rows.Next() {
		tick, err := scanTick(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tick)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func scanTick(rows pgx.Rows) (market.PriceTick, error) {
	var (
		tick                               market.PriceTick
		instrumentID, volume               int64
		openStr, highStr, lowStr, closeStr string
	)
	if err := rows.Scan(
		&tick.Timestamp,
		&instrumentID,
		&tick.Symbol,
		&openStr,
		&highStr,
		&lowStr,
		&closeStr,
		&volume,
	); err != nil {
		return market.PriceTick{}, fmt.Errorf("scan tick: %w", err)
	}

	prices := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"open", openStr, &tick.Open},
		{"high", highStr, &tick.High},
		{"low", lowStr, &tick.Low},
		{"close", closeStr, &tick.Close},
	}
	for _, p := range prices {
		v, err := decimal.NewFromString(p.raw)
		if err != nil {
			return market.PriceTick{}, fmt.Errorf("parse %s price: %w", p.name, err)
		}
		*p.dst = v
	}

	tick.InstrumentID = uint32(instrumentID)
	tick.Volume = uint64(volume)
	return tick, nil
}
