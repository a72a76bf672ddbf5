package types

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// TaskCandidate is an unpersisted task extracted from one unit of raw text.
// It exists between the extraction call and the dedup decision; on acceptance
// its fields are copied into a TaskRecord and the candidate is discarded.
type TaskCandidate struct {
	Title          string     `json:"title"`
	Priority       Priority   `json:"priority"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	EstimatedHours *float64   `json:"estimated_hours,omitempty"`
	Source         string     `json:"source,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	SourceText     string     `json:"source_text,omitempty"`
}

// Validate checks if the candidate has valid field values
func (c *TaskCandidate) Validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if utf8.RuneCountInString(c.Title) > MaxTitleLength {
		return fmt.Errorf("title must be %d characters or less (got %d)", MaxTitleLength, utf8.RuneCountInString(c.Title))
	}
	if !c.Priority.IsValid() {
		return fmt.Errorf("invalid priority: %s", c.Priority)
	}
	if c.EstimatedHours != nil && *c.EstimatedHours < 0 {
		return fmt.Errorf("estimated_hours cannot be negative")
	}
	return nil
}

// Field length limits enforced at validation time.
const (
	MaxTitleLength  = 200
	MaxSourceLength = 100
	MaxNotesLength  = 500
)

// TaskRecord is the durable form of an accepted task. The embedding is owned
// by the record and never mutated in place; re-fingerprinting a record is an
// update transaction that replaces the vector. Embedding is nil only for
// records flagged needs_review with reason "embedding-unavailable".
type TaskRecord struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Priority       Priority   `json:"priority"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	EstimatedHours *float64   `json:"estimated_hours,omitempty"`
	Source         string     `json:"source,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	SourceText     string     `json:"source_text,omitempty"`
	Embedding      []float32  `json:"-"`
	Status         Status     `json:"status"`
	NeedsReview    bool       `json:"needs_review"`
	ReviewReason   string     `json:"review_reason,omitempty"`
	MergedInto     string     `json:"merged_into,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Validate checks if the record has valid field values
func (r *TaskRecord) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if utf8.RuneCountInString(r.Title) > MaxTitleLength {
		return fmt.Errorf("title must be %d characters or less (got %d)", MaxTitleLength, utf8.RuneCountInString(r.Title))
	}
	if !r.Priority.IsValid() {
		return fmt.Errorf("invalid priority: %s", r.Priority)
	}
	if !r.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", r.Status)
	}
	if r.EstimatedHours != nil && *r.EstimatedHours < 0 {
		return fmt.Errorf("estimated_hours cannot be negative")
	}
	if r.Status == StatusMerged && r.MergedInto == "" {
		return fmt.Errorf("merged records must reference the surviving record")
	}
	return nil
}

// NewTaskRecord copies a candidate into an unpersisted ACTIVE record.
// ID and timestamps are assigned by the store at insert time.
func NewTaskRecord(c TaskCandidate) *TaskRecord {
	return &TaskRecord{
		Title:          c.Title,
		Priority:       c.Priority,
		DueDate:        c.DueDate,
		EstimatedHours: c.EstimatedHours,
		Source:         c.Source,
		Notes:          c.Notes,
		SourceText:     c.SourceText,
		Status:         StatusActive,
	}
}

// Priority ranks how urgent a task is
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// IsValid checks if the priority value is valid
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Status represents the lifecycle state of a task record.
// Exactly one ACTIVE record exists per semantic cluster under the current
// similarity threshold; MERGED and ARCHIVED records are kept for audit but
// never participate in dedup.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusMerged   Status = "MERGED"
	StatusArchived Status = "ARCHIVED"
)

// IsValid checks if the status value is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusMerged, StatusArchived:
		return true
	}
	return false
}

// SimilarityMatch is one hit from an index query, transient and never persisted
type SimilarityMatch struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// OutcomeKind categorizes what the pipeline did with one candidate
type OutcomeKind string

const (
	OutcomeAccepted    OutcomeKind = "accepted"
	OutcomeMerged      OutcomeKind = "merged"
	OutcomeNeedsReview OutcomeKind = "needs_review"
	OutcomeRejected    OutcomeKind = "rejected"
)

// IsValid checks if the outcome kind value is valid
func (k OutcomeKind) IsValid() bool {
	switch k {
	case OutcomeAccepted, OutcomeMerged, OutcomeNeedsReview, OutcomeRejected:
		return true
	}
	return false
}

// Well-known reason strings carried on Rejected and NeedsReview outcomes.
const (
	ReasonExtractionFailed     = "extraction-failed"
	ReasonNoActionableTasks    = "no-actionable-tasks"
	ReasonBatchCanceled        = "batch-canceled"
	ReasonEmbeddingUnavailable = "embedding-unavailable"
)

// Outcome is the pipeline's verdict for one candidate (or for a whole input
// unit when extraction produced nothing usable). InputIndex ties it back to
// the batch input that produced it; the outcome sequence preserves input
// order. Record is nil only for rejections.
type Outcome struct {
	InputIndex int         `json:"input_index"`
	Kind       OutcomeKind `json:"kind"`
	Record     *TaskRecord `json:"record,omitempty"`
	Reason     string      `json:"reason,omitempty"`
	MatchID    string      `json:"match_id,omitempty"`
	Score      float64     `json:"score,omitempty"`
}

// BatchRun is the audit row recorded after each pipeline batch
type BatchRun struct {
	ID          string    `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Inputs      int       `json:"inputs"`
	Accepted    int       `json:"accepted"`
	Merged      int       `json:"merged"`
	NeedsReview int       `json:"needs_review"`
	Rejected    int       `json:"rejected"`
}

// Statistics provides aggregate corpus metrics
type Statistics struct {
	TotalTasks    int `json:"total_tasks"`
	ActiveTasks   int `json:"active_tasks"`
	MergedTasks   int `json:"merged_tasks"`
	ArchivedTasks int `json:"archived_tasks"`
	NeedsReview   int `json:"needs_review"`
	Unembedded    int `json:"unembedded"`
}
