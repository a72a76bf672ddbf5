package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/taskmint/taskmint/internal/store"
	"github.com/taskmint/taskmint/internal/types"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func insertTask(t *testing.T, st *store.Store, record *types.TaskRecord) *types.TaskRecord {
	t.Helper()
	if record.Priority == "" {
		record.Priority = types.PriorityMedium
	}
	if record.Status == "" {
		record.Status = types.StatusActive
	}
	if err := st.Insert(context.Background(), record); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	return record
}

func TestResolveKeep(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	flagged := insertTask(t, st, &types.TaskRecord{
		Title:        "Review the Q3 numbers",
		Embedding:    []float32{1, 0, 0},
		NeedsReview:  true,
		ReviewReason: "near-duplicate of 01ABC (similarity 0.850)",
	})

	if err := resolveKeep(ctx, st, flagged.ID); err != nil {
		t.Fatalf("resolveKeep failed: %v", err)
	}

	got, err := st.Get(ctx, flagged.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.NeedsReview {
		t.Error("review flag should be cleared")
	}
	if got.ReviewReason != "" {
		t.Errorf("review reason should be cleared, got %q", got.ReviewReason)
	}
	if got.Status != types.StatusActive {
		t.Errorf("status = %s, want ACTIVE", got.Status)
	}
}

func TestResolveKeepValidation(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	plain := insertTask(t, st, &types.TaskRecord{
		Title:     "Send the invoice",
		Embedding: []float32{1, 0, 0},
	})
	unembedded := insertTask(t, st, &types.TaskRecord{
		Title:        "Call the vendor",
		NeedsReview:  true,
		ReviewReason: types.ReasonEmbeddingUnavailable,
	})

	tests := []struct {
		name string
		id   string
	}{
		{"missing task", "01NOSUCHTASK0000000000000"},
		{"not flagged", plain.ID},
		{"no embedding", unembedded.ID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := resolveKeep(ctx, st, tt.id); err == nil {
				t.Error("expected an error")
			}
		})
	}

	// The unembedded record must be untouched by the refused keep.
	got, err := st.Get(ctx, unembedded.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got.NeedsReview || got.ReviewReason != types.ReasonEmbeddingUnavailable {
		t.Error("refused keep must not alter the record")
	}
}

func TestResolveMergeBackfillsSurvivor(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	due := time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC)
	hours := 2.0
	target := insertTask(t, st, &types.TaskRecord{
		Title:     "Send the Q3 report to John",
		Embedding: []float32{1, 0, 0},
	})
	flagged := insertTask(t, st, &types.TaskRecord{
		Title:          "Email John the Q3 report",
		DueDate:        &due,
		EstimatedHours: &hours,
		Embedding:      []float32{0.99, 0.14, 0},
		NeedsReview:    true,
		ReviewReason:   "near-duplicate of " + target.ID + " (similarity 0.850)",
	})

	if err := resolveMerge(ctx, st, flagged.ID, target.ID); err != nil {
		t.Fatalf("resolveMerge failed: %v", err)
	}

	merged, err := st.Get(ctx, flagged.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if merged.Status != types.StatusMerged {
		t.Errorf("status = %s, want MERGED", merged.Status)
	}
	if merged.MergedInto != target.ID {
		t.Errorf("merged_into = %q, want %q", merged.MergedInto, target.ID)
	}
	if merged.NeedsReview {
		t.Error("review flag should clear on merge")
	}

	survivor, err := st.Get(ctx, target.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if survivor.DueDate == nil || !survivor.DueDate.Equal(due) {
		t.Errorf("survivor should gain the due date, got %v", survivor.DueDate)
	}
	if survivor.EstimatedHours == nil || *survivor.EstimatedHours != hours {
		t.Errorf("survivor should gain the estimate, got %v", survivor.EstimatedHours)
	}
}

func TestResolveMergeKeepsSurvivorFields(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	targetDue := time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC)
	otherDue := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	target := insertTask(t, st, &types.TaskRecord{
		Title:     "Book flights for the offsite",
		DueDate:   &targetDue,
		Embedding: []float32{1, 0, 0},
	})
	duplicate := insertTask(t, st, &types.TaskRecord{
		Title:     "Book the offsite flights",
		DueDate:   &otherDue,
		Embedding: []float32{0.99, 0.14, 0},
	})

	if err := resolveMerge(ctx, st, duplicate.ID, target.ID); err != nil {
		t.Fatalf("resolveMerge failed: %v", err)
	}

	survivor, err := st.Get(ctx, target.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if survivor.DueDate == nil || !survivor.DueDate.Equal(targetDue) {
		t.Errorf("conflicting due date must not overwrite the survivor's, got %v", survivor.DueDate)
	}
}

func TestResolveMergeValidation(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	active := insertTask(t, st, &types.TaskRecord{
		Title:     "Renew the domain",
		Embedding: []float32{1, 0, 0},
	})
	retired := insertTask(t, st, &types.TaskRecord{
		Title:     "Old duplicate",
		Embedding: []float32{0, 1, 0},
	})
	if err := resolveArchive(ctx, st, retired.ID); err != nil {
		t.Fatalf("resolveArchive failed: %v", err)
	}

	tests := []struct {
		name     string
		id       string
		targetID string
	}{
		{"self merge", active.ID, active.ID},
		{"missing task", "01NOSUCHTASK0000000000000", active.ID},
		{"missing target", active.ID, "01NOSUCHTASK0000000000000"},
		{"archived target", active.ID, retired.ID},
		{"archived source", retired.ID, active.ID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := resolveMerge(ctx, st, tt.id, tt.targetID); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestResolveArchive(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	flagged := insertTask(t, st, &types.TaskRecord{
		Title:        "Maybe write a blog post",
		Embedding:    []float32{1, 0, 0},
		NeedsReview:  true,
		ReviewReason: "near-duplicate of 01ABC (similarity 0.810)",
	})

	if err := resolveArchive(ctx, st, flagged.ID); err != nil {
		t.Fatalf("resolveArchive failed: %v", err)
	}

	got, err := st.Get(ctx, flagged.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != types.StatusArchived {
		t.Errorf("status = %s, want ARCHIVED", got.Status)
	}
	if got.NeedsReview {
		t.Error("review flag should clear on archive")
	}

	// Archiving twice is refused.
	if err := resolveArchive(ctx, st, flagged.ID); err == nil {
		t.Error("expected an error archiving an archived task")
	}
}
