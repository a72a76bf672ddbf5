package dedup

import (
	"testing"
	"time"

	"github.com/taskmint/taskmint/internal/types"
)

func datePtr(t *testing.T, value string) *time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		t.Fatalf("bad test date %q: %v", value, err)
	}
	return &parsed
}

func hoursPtr(h float64) *float64 {
	return &h
}

func TestMergeBackfillsMissingFields(t *testing.T) {
	existing := &types.TaskRecord{
		ID:       "task-1",
		Title:    "Ship the release notes",
		Priority: types.PriorityMedium,
		Status:   types.StatusActive,
	}
	candidate := types.TaskCandidate{
		Title:          "Ship release notes",
		Priority:       types.PriorityMedium,
		DueDate:        datePtr(t, "2026-09-01"),
		EstimatedHours: hoursPtr(2.5),
	}

	patch, conflicts := Merge(existing, candidate)

	if len(conflicts) != 0 {
		t.Errorf("expected no conflicts, got %v", conflicts)
	}
	if patch.Empty() {
		t.Fatal("expected patch to backfill missing fields")
	}
	if patch.DueDate == nil || !patch.DueDate.Equal(*candidate.DueDate) {
		t.Errorf("expected due date backfill %v, got %v", candidate.DueDate, patch.DueDate)
	}
	if patch.EstimatedHours == nil || *patch.EstimatedHours != 2.5 {
		t.Errorf("expected estimated hours backfill 2.5, got %v", patch.EstimatedHours)
	}
}

func TestMergeExistingValuesWin(t *testing.T) {
	existing := &types.TaskRecord{
		ID:             "task-1",
		Title:          "Ship the release notes",
		Priority:       types.PriorityMedium,
		DueDate:        datePtr(t, "2026-09-01"),
		EstimatedHours: hoursPtr(2.0),
		Status:         types.StatusActive,
	}
	candidate := types.TaskCandidate{
		Title:          "Ship release notes",
		Priority:       types.PriorityMedium,
		DueDate:        datePtr(t, "2026-10-15"),
		EstimatedHours: hoursPtr(8.0),
	}

	patch, conflicts := Merge(existing, candidate)

	if !patch.Empty() {
		t.Errorf("expected empty patch when existing fields are set, got %+v", patch)
	}
	if len(conflicts) != 2 {
		t.Fatalf("expected 2 conflicts, got %d: %v", len(conflicts), conflicts)
	}

	fields := map[string]Conflict{}
	for _, c := range conflicts {
		fields[c.Field] = c
	}
	if c, ok := fields["due_date"]; !ok {
		t.Error("expected due_date conflict")
	} else if c.Existing != "2026-09-01" || c.Candidate != "2026-10-15" {
		t.Errorf("unexpected due_date conflict values: %+v", c)
	}
	if c, ok := fields["estimated_hours"]; !ok {
		t.Error("expected estimated_hours conflict")
	} else if c.Existing != "2.00" || c.Candidate != "8.00" {
		t.Errorf("unexpected estimated_hours conflict values: %+v", c)
	}
}

func TestMergeAgreementIsQuiet(t *testing.T) {
	due := datePtr(t, "2026-09-01")
	existing := &types.TaskRecord{
		ID:             "task-1",
		Title:          "Ship the release notes",
		Priority:       types.PriorityHigh,
		DueDate:        due,
		EstimatedHours: hoursPtr(4.0),
		Status:         types.StatusActive,
	}
	candidate := types.TaskCandidate{
		Title:          "Ship release notes",
		Priority:       types.PriorityHigh,
		DueDate:        due,
		EstimatedHours: hoursPtr(4.0),
	}

	patch, conflicts := Merge(existing, candidate)

	if !patch.Empty() {
		t.Errorf("expected empty patch, got %+v", patch)
	}
	if len(conflicts) != 0 {
		t.Errorf("expected no conflicts when values agree, got %v", conflicts)
	}
}

func TestMergePriorityNeverRefreshed(t *testing.T) {
	existing := &types.TaskRecord{
		ID:       "task-1",
		Title:    "Ship the release notes",
		Priority: types.PriorityLow,
		Status:   types.StatusActive,
	}
	candidate := types.TaskCandidate{
		Title:    "Ship release notes urgently",
		Priority: types.PriorityHigh,
	}

	patch, conflicts := Merge(existing, candidate)

	if !patch.Empty() {
		t.Errorf("priority must never enter the patch, got %+v", patch)
	}
	if len(conflicts) != 1 || conflicts[0].Field != "priority" {
		t.Fatalf("expected a single priority conflict, got %v", conflicts)
	}
	if conflicts[0].Existing != "LOW" || conflicts[0].Candidate != "HIGH" {
		t.Errorf("unexpected priority conflict values: %+v", conflicts[0])
	}
}

func TestMergeCandidateWithoutOptionalsIsNoop(t *testing.T) {
	existing := &types.TaskRecord{
		ID:       "task-1",
		Title:    "Ship the release notes",
		Priority: types.PriorityMedium,
		Status:   types.StatusActive,
	}
	candidate := types.TaskCandidate{
		Title:    "Ship release notes",
		Priority: types.PriorityMedium,
	}

	patch, conflicts := Merge(existing, candidate)

	if !patch.Empty() {
		t.Errorf("expected empty patch, got %+v", patch)
	}
	if len(conflicts) != 0 {
		t.Errorf("expected no conflicts, got %v", conflicts)
	}
}
