package dedup

import (
	"fmt"
	"log"
	"time"

	"github.com/taskmint/taskmint/internal/types"
)

// Patch is the set of fields a merge wants to write back to the
// surviving task. Only optional fields the existing task lacks are
// ever filled in; merging never overwrites data already present.
type Patch struct {
	DueDate        *time.Time
	EstimatedHours *float64
}

// Empty reports whether the patch would change nothing.
func (p Patch) Empty() bool {
	return p.DueDate == nil && p.EstimatedHours == nil
}

// Conflict records a field where the duplicate candidate disagreed
// with the surviving task. The existing value always wins; conflicts
// are surfaced for logging and audit, not resolution.
type Conflict struct {
	Field     string
	Existing  string
	Candidate string
}

// Merge folds a duplicate candidate into the task it matched.
//
// Returns the patch of fields to backfill (due date and estimate where
// the existing task had none) and any conflicts where both sides had a
// value and disagreed. Title, source, and notes of the existing task
// are never touched, and priority is never refreshed from a duplicate.
func Merge(existing *types.TaskRecord, candidate types.TaskCandidate) (Patch, []Conflict) {
	var patch Patch
	var conflicts []Conflict

	if candidate.DueDate != nil {
		switch {
		case existing.DueDate == nil:
			due := *candidate.DueDate
			patch.DueDate = &due
		case !existing.DueDate.Equal(*candidate.DueDate):
			conflicts = append(conflicts, Conflict{
				Field:     "due_date",
				Existing:  existing.DueDate.Format("2006-01-02"),
				Candidate: candidate.DueDate.Format("2006-01-02"),
			})
		}
	}

	if candidate.EstimatedHours != nil {
		switch {
		case existing.EstimatedHours == nil:
			hours := *candidate.EstimatedHours
			patch.EstimatedHours = &hours
		case *existing.EstimatedHours != *candidate.EstimatedHours:
			conflicts = append(conflicts, Conflict{
				Field:     "estimated_hours",
				Existing:  fmt.Sprintf("%.2f", *existing.EstimatedHours),
				Candidate: fmt.Sprintf("%.2f", *candidate.EstimatedHours),
			})
		}
	}

	if candidate.Priority != existing.Priority {
		conflicts = append(conflicts, Conflict{
			Field:     "priority",
			Existing:  string(existing.Priority),
			Candidate: string(candidate.Priority),
		})
	}

	for _, c := range conflicts {
		log.Printf("[DEDUP] merge conflict on %s for task %s: keeping %q, duplicate offered %q",
			c.Field, existing.ID, c.Existing, c.Candidate)
	}

	return patch, conflicts
}
