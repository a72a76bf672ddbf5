package store

import (
	"context"
	"testing"
	"time"

	"github.com/taskmint/taskmint/internal/types"
)

func TestRecordBatchAssignsID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	start := time.Now().UTC().Add(-2 * time.Second)
	run := &types.BatchRun{
		StartedAt:  start,
		FinishedAt: start.Add(time.Second),
		Inputs:     3,
		Accepted:   1,
		Merged:     1,
		Rejected:   1,
	}
	if err := s.RecordBatch(ctx, run); err != nil {
		t.Fatalf("RecordBatch failed: %v", err)
	}
	if run.ID == "" {
		t.Fatal("expected RecordBatch to assign an id")
	}

	runs, err := s.RecentBatches(ctx, 10)
	if err != nil {
		t.Fatalf("RecentBatches failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 batch, got %d", len(runs))
	}
	got := runs[0]
	if got.ID != run.ID {
		t.Errorf("id = %q, want %q", got.ID, run.ID)
	}
	if got.Inputs != 3 || got.Accepted != 1 || got.Merged != 1 || got.Rejected != 1 {
		t.Errorf("counts did not survive: %+v", got)
	}
	if !got.StartedAt.Equal(run.StartedAt) || !got.FinishedAt.Equal(run.FinishedAt) {
		t.Errorf("timestamps did not survive: %+v", got)
	}
}

func TestRecordBatchRejectsInvalidRange(t *testing.T) {
	s := newTestStore(t)

	now := time.Now().UTC()
	run := &types.BatchRun{
		StartedAt:  now,
		FinishedAt: now.Add(-time.Minute),
	}
	if err := s.RecordBatch(context.Background(), run); err == nil {
		t.Error("expected error when finished_at precedes started_at")
	}
}

func TestRecentBatchesNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		start := base.Add(time.Duration(i) * time.Minute)
		run := &types.BatchRun{
			StartedAt:  start,
			FinishedAt: start.Add(10 * time.Second),
			Inputs:     i + 1,
		}
		if err := s.RecordBatch(ctx, run); err != nil {
			t.Fatalf("RecordBatch failed: %v", err)
		}
	}

	runs, err := s.RecentBatches(ctx, 2)
	if err != nil {
		t.Fatalf("RecentBatches failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(runs))
	}
	if runs[0].Inputs != 3 || runs[1].Inputs != 2 {
		t.Errorf("expected newest first, got inputs %d then %d", runs[0].Inputs, runs[1].Inputs)
	}
}
