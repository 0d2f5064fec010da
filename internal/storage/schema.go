package storage

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

//go:embed schema.sql
var schemaSQL string

// Tables lists every table owned by the schema, in creation order.
var Tables = []string{"weather_data", "futures_data", "settlement_prices", "analysis_runs"}

const listTablesSQL = `SELECT table_name
    FROM information_schema.tables
    WHERE table_schema = 'public'
    ORDER BY table_name;`

// Migrate applies the embedded schema. Statements are idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	// No arguments, so pgx sends the script over the simple protocol.
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// ListTables returns the public tables present in the database.
func (s *Store) ListTables(ctx context.Context) ([]string, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, listTablesSQL)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	tables, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return tables, nil
}

// CountRows returns the row count of every schema table that exists.
func (s *Store) CountRows(ctx context.Context) (map[string]int64, error) {
	present, err := s.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	exists := make(map[string]bool, len(present))
	for _, t := range present {
		exists[t] = true
	}

	counts := make(map[string]int64, len(Tables))
	for _, table := range Tables {
		if !exists[table] {
			continue
		}
		var n int64
		query := "SELECT COUNT(*) FROM " + pgx.Identifier{table}.Sanitize()
		if err := s.pool.QueryRow(ctx, query).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}

// Truncate empties every schema table and resets identity sequences.
func (s *Store) Truncate(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, "TRUNCATE "+quotedTables()+" RESTART IDENTITY"); err != nil {
		return fmt.Errorf("truncate tables: %w", err)
	}
	return nil
}

// Recreate drops every schema table and applies the schema again.
func (s *Store) Recreate(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS "+quotedTables()+" CASCADE"); err != nil {
		return fmt.Errorf("drop tables: %w", err)
	}
	return s.Migrate(ctx)
}

func quotedTables() string {
	quoted := make([]string, len(Tables))
	for i, t := range Tables {
		quoted[i] = pgx.Identifier{t}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
