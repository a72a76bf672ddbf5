package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/taskmint/taskmint/internal/types"
)

// RecordBatch persists the audit row for one pipeline run. An empty ID
// is assigned here.
func (s *Store) RecordBatch(ctx context.Context, run *types.BatchRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() || run.FinishedAt.Before(run.StartedAt) {
		return fmt.Errorf("batch run has invalid time range: %v .. %v", run.StartedAt, run.FinishedAt)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO batches (id, started_at, finished_at, inputs, accepted, merged, needs_review, rejected)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.StartedAt.UTC().Format(timeLayout), run.FinishedAt.UTC().Format(timeLayout),
		run.Inputs, run.Accepted, run.Merged, run.NeedsReview, run.Rejected,
	)
	if err != nil {
		return fmt.Errorf("failed to record batch: %w", err)
	}
	return nil
}

// RecentBatches returns the latest batch runs, newest first.
func (s *Store) RecentBatches(ctx context.Context, limit int) ([]*types.BatchRun, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, started_at, finished_at, inputs, accepted, merged, needs_review, rejected
		FROM batches
		ORDER BY started_at DESC
		LIMIT %d
	`, limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	defer rows.Close()

	var runs []*types.BatchRun
	for rows.Next() {
		var run types.BatchRun
		var startedAt, finishedAt string
		if err := rows.Scan(
			&run.ID, &startedAt, &finishedAt,
			&run.Inputs, &run.Accepted, &run.Merged, &run.NeedsReview, &run.Rejected,
		); err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		if run.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
			return nil, fmt.Errorf("failed to parse started_at %q: %w", startedAt, err)
		}
		if run.FinishedAt, err = time.Parse(timeLayout, finishedAt); err != nil {
			return nil, fmt.Errorf("failed to parse finished_at %q: %w", finishedAt, err)
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}
