// Package dedup decides whether an embedded task candidate is new,
// a duplicate of an existing task, or close enough to need human review.
//
// The decision is a pure threshold comparison against the nearest
// neighbor in the similarity index. The engine never talks to the
// store or the network; callers own persistence and merging.
package dedup

import (
	"fmt"

	"github.com/taskmint/taskmint/internal/index"
)

// Verdict classifies a candidate relative to the existing task corpus.
type Verdict string

const (
	// VerdictNew means no existing task is similar enough to matter.
	VerdictNew Verdict = "new"
	// VerdictDuplicate means the candidate restates an existing task.
	VerdictDuplicate Verdict = "duplicate"
	// VerdictReview means the candidate is suspiciously close to an
	// existing task but not close enough to auto-merge.
	VerdictReview Verdict = "review"
)

// IsValid checks if the verdict is one of the defined values.
func (v Verdict) IsValid() bool {
	switch v {
	case VerdictNew, VerdictDuplicate, VerdictReview:
		return true
	}
	return false
}

// Decision is the outcome of comparing one candidate against the index.
type Decision struct {
	// Verdict is the classification of the candidate.
	Verdict Verdict `json:"verdict"`

	// MatchID is the ID of the nearest existing task. Set whenever the
	// index was non-empty, including for VerdictNew, so callers can log
	// near misses.
	MatchID string `json:"match_id,omitempty"`

	// Score is the cosine similarity to MatchID. Zero when the index
	// was empty.
	Score float64 `json:"score"`

	// ComparedCount is the number of existing tasks compared against.
	ComparedCount int `json:"compared_count"`
}

// Validate checks if the decision has valid values.
func (d *Decision) Validate() error {
	if !d.Verdict.IsValid() {
		return fmt.Errorf("invalid verdict: %s", d.Verdict)
	}
	if d.Score < -1.0 || d.Score > 1.0 {
		return fmt.Errorf("score must be between -1.0 and 1.0 (got %.4f)", d.Score)
	}
	if d.Verdict != VerdictNew && d.MatchID == "" {
		return fmt.Errorf("match_id must be set when verdict is %s", d.Verdict)
	}
	if d.ComparedCount < 0 {
		return fmt.Errorf("compared_count cannot be negative (got %d)", d.ComparedCount)
	}
	return nil
}

// Engine applies the duplicate/review thresholds to nearest-neighbor
// lookups. It is safe for concurrent use to the extent the underlying
// index is; batch ingestion serializes decisions anyway so that each
// candidate sees the tasks committed before it.
type Engine struct {
	idx                *index.Index
	duplicateThreshold float64
	reviewThreshold    float64
}

// NewEngine creates a dedup engine over the given index.
//
// duplicateThreshold is inclusive: a neighbor at exactly the threshold
// is a duplicate. reviewThreshold is likewise inclusive for the review
// band. Thresholds must satisfy 0 < review < duplicate <= 1.
func NewEngine(idx *index.Index, duplicateThreshold, reviewThreshold float64) (*Engine, error) {
	if idx == nil {
		return nil, fmt.Errorf("index is required")
	}
	if duplicateThreshold <= 0 || duplicateThreshold > 1.0 {
		return nil, fmt.Errorf("duplicate threshold must be in (0.0, 1.0] (got %.4f)", duplicateThreshold)
	}
	if reviewThreshold <= 0 || reviewThreshold >= duplicateThreshold {
		return nil, fmt.Errorf("review threshold must be in (0.0, %.4f) (got %.4f)", duplicateThreshold, reviewThreshold)
	}
	return &Engine{
		idx:                idx,
		duplicateThreshold: duplicateThreshold,
		reviewThreshold:    reviewThreshold,
	}, nil
}

// Decide classifies an embedding against the current index contents.
//
// An empty index always yields VerdictNew. Otherwise the single nearest
// neighbor determines the verdict:
//
//	score >= duplicateThreshold  -> VerdictDuplicate
//	score >= reviewThreshold     -> VerdictReview
//	otherwise                    -> VerdictNew
func (e *Engine) Decide(embedding []float32) Decision {
	compared := e.idx.Len()
	if compared == 0 {
		return Decision{Verdict: VerdictNew}
	}

	matches := e.idx.Query(embedding, 1)
	if len(matches) == 0 {
		return Decision{Verdict: VerdictNew, ComparedCount: compared}
	}

	top := matches[0]
	d := Decision{
		MatchID:       top.ID,
		Score:         top.Score,
		ComparedCount: compared,
	}
	switch {
	case top.Score >= e.duplicateThreshold:
		d.Verdict = VerdictDuplicate
	case top.Score >= e.reviewThreshold:
		d.Verdict = VerdictReview
	default:
		d.Verdict = VerdictNew
	}
	return d
}
