// Package schema is the single chokepoint between the language model's
// loosely-typed output and the typed TaskCandidate the pipeline trusts.
// Per-field problems are recoverable (defaults, dropped fields, truncation);
// only an unusable title rejects a candidate.
package schema

import (
	"errors"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/taskmint/taskmint/internal/types"
)

// ErrMissingTitle rejects a raw record whose title is empty after trimming.
// It is the only validation failure that drops a whole candidate.
var ErrMissingTitle = errors.New("title is required")

// RawTask is the untrusted record shape extraction returns. Every field is
// optional at this layer; Validate decides what survives.
type RawTask struct {
	Title          string   `json:"title"`
	Priority       string   `json:"priority"`
	DueDate        string   `json:"due_date"`
	EstimatedHours *float64 `json:"estimated_hours"`
	Source         string   `json:"source"`
	Notes          string   `json:"notes"`
}

// dueDateLayouts are tried in order. The prompt asks for YYYY-MM-DD, but
// models drift; RFC 3339 timestamps are accepted with the time discarded.
var dueDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"January 2, 2006",
	"Jan 2, 2006",
	"2006/01/02",
}

// Validate coerces a raw extraction record into a TaskCandidate.
// Recoverable problems are logged and repaired in place; the returned
// candidate always passes types.TaskCandidate.Validate.
func Validate(raw RawTask, sourceText string) (types.TaskCandidate, error) {
	title := strings.TrimSpace(raw.Title)
	if title == "" {
		return types.TaskCandidate{}, ErrMissingTitle
	}
	if utf8.RuneCountInString(title) > types.MaxTitleLength {
		log.Printf("[SCHEMA] truncating title to %d characters: %.40s...", types.MaxTitleLength, title)
		title = truncateRunes(title, types.MaxTitleLength)
	}

	candidate := types.TaskCandidate{
		Title:      title,
		Priority:   parsePriority(raw.Priority),
		Source:     truncateRunes(strings.TrimSpace(raw.Source), types.MaxSourceLength),
		Notes:      truncateRunes(strings.TrimSpace(raw.Notes), types.MaxNotesLength),
		SourceText: sourceText,
	}

	if raw.DueDate != "" {
		if due, ok := parseDueDate(raw.DueDate); ok {
			candidate.DueDate = &due
		} else {
			log.Printf("[SCHEMA] dropping unparseable due_date %q for %q", raw.DueDate, title)
		}
	}

	if raw.EstimatedHours != nil {
		if *raw.EstimatedHours < 0 {
			log.Printf("[SCHEMA] clearing negative estimated_hours %.1f for %q", *raw.EstimatedHours, title)
		} else {
			hours := *raw.EstimatedHours
			candidate.EstimatedHours = &hours
		}
	}

	return candidate, nil
}

// parsePriority maps the model's priority string onto the enum.
// Absent means MEDIUM silently; anything unrecognized means MEDIUM with a
// warning. Numeric aliases follow the 1=high convention.
func parsePriority(s string) types.Priority {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return types.PriorityMedium
	}
	switch strings.ToUpper(trimmed) {
	case "LOW", "3":
		return types.PriorityLow
	case "MEDIUM", "2":
		return types.PriorityMedium
	case "HIGH", "1":
		return types.PriorityHigh
	}
	log.Printf("[SCHEMA] unrecognized priority %q, defaulting to MEDIUM", s)
	return types.PriorityMedium
}

// parseDueDate normalizes any accepted layout to a UTC date at midnight
func parseDueDate(s string) (time.Time, bool) {
	trimmed := strings.TrimSpace(s)
	for _, layout := range dueDateLayouts {
		parsed, err := time.Parse(layout, trimmed)
		if err != nil {
			continue
		}
		y, m, d := parsed.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
