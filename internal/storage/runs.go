package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

const (
	insertAnalysisRunSQL = `INSERT INTO analysis_runs (id, variant, records, date_from, date_to, summary)
    VALUES ($1, $2, $3, $4, $5, $6)
    RETURNING created_at;`

	listAnalysisRunsSQL = `SELECT id::text, variant, records, date_from, date_to, summary, created_at
    FROM analysis_runs
    ORDER BY created_at DESC
    LIMIT $1;`
)

// InsertAnalysisRun persists a run summary, assigning an id when absent.
func (s *Store) InsertAnalysisRun(ctx context.Context, run AnalysisRun) (AnalysisRun, error) {
	pool, err := s.getPool()
	if err != nil {
		return AnalysisRun{}, err
	}
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	summary := run.Summary
	if len(summary) == 0 {
		summary = json.RawMessage(`{}`)
	}

	err = pool.QueryRow(ctx, insertAnalysisRunSQL,
		run.ID.String(),
		run.Variant,
		run.Records,
		run.From,
		run.To,
		[]byte(summary),
	).Scan(&run.CreatedAt)
	if err != nil {
		return AnalysisRun{}, fmt.Errorf("insert analysis run: %w", err)
	}
	run.Summary = summary
	return run, nil
}

// ListAnalysisRuns returns the most recent runs first.
func (s *Store) ListAnalysisRuns(ctx context.Context, limit int) ([]AnalysisRun, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, listAnalysisRunsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("list analysis runs: %w", err)
	}
	defer rows.Close()

	runs := make([]AnalysisRun, 0, limit)
	for rows.Next() {
		var (
			run AnalysisRun
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &run.Variant, &run.Records, &run.From, &run.To, &raw, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan analysis run: %w", err)
		}
		if run.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse run id: %w", err)
		}
		run.Summary = json.RawMessage(raw)
		runs = append(runs, run)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return runs, nil
}
