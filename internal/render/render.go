// Package render turns task records and pipeline outcomes into
// human-readable terminal output: a boxed card suitable for printing
// and colored one-line listings.
package render

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fatih/color"

	"github.com/taskmint/taskmint/internal/types"
)

// cardWidth is the inner width of the card in characters, sized for a
// 48mm thermal printer column.
const cardWidth = 40

// Card renders a record as a boxed plain-text task card: centered
// wrapped title, priority marker, due date, then the attribute lines.
func Card(record *types.TaskRecord) string {
	var b strings.Builder
	border := "+" + strings.Repeat("-", cardWidth+2) + "+"

	writeCentered := func(s string) {
		pad := cardWidth - utf8.RuneCountInString(s)
		left := pad / 2
		right := pad - left
		fmt.Fprintf(&b, "| %s%s%s |\n", strings.Repeat(" ", left), s, strings.Repeat(" ", right))
	}
	writeField := func(label, value string) {
		for i, line := range wrap(value, cardWidth-10) {
			if i > 0 {
				label = ""
			}
			fmt.Fprintf(&b, "| %-8s %-*s |\n", label, cardWidth-9, line)
		}
	}

	b.WriteString(border + "\n")
	writeCentered("")
	for _, line := range wrap(record.Title, cardWidth) {
		writeCentered(line)
	}
	writeCentered("")
	writeCentered(priorityMarker(record.Priority))
	if record.DueDate != nil {
		writeCentered("due " + humanDate(*record.DueDate))
	}
	writeCentered("")
	b.WriteString(border + "\n")

	if record.EstimatedHours != nil {
		writeField("estimate", formatHours(*record.EstimatedHours))
	}
	if record.Source != "" {
		writeField("source", record.Source)
	}
	if record.Notes != "" {
		writeField("notes", record.Notes)
	}
	if record.NeedsReview {
		writeField("review", record.ReviewReason)
	}
	b.WriteString(border + "\n")

	return b.String()
}

// Line renders a record as one colored listing line: id, priority
// glyph, title, due date, and any status markers.
func Line(record *types.TaskRecord) string {
	gray := color.New(color.FgHiBlack).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	magenta := color.New(color.FgMagenta).SprintFunc()

	parts := []string{gray(record.ID), priorityGlyph(record.Priority), record.Title}
	if record.DueDate != nil {
		parts = append(parts, cyan("(due "+record.DueDate.Format("2006-01-02")+")"))
	}
	if record.Status == types.StatusMerged {
		parts = append(parts, magenta("[merged into "+record.MergedInto+"]"))
	}
	if record.Status == types.StatusArchived {
		parts = append(parts, magenta("[archived]"))
	}
	if record.NeedsReview {
		parts = append(parts, yellow("[review]"))
	}
	return strings.Join(parts, " ")
}

// OutcomeLine renders one pipeline outcome for the ingest/capture
// output listing.
func OutcomeLine(outcome types.Outcome) string {
	green := color.New(color.FgGreen).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	switch outcome.Kind {
	case types.OutcomeAccepted:
		return fmt.Sprintf("%s %s %s", green("✓ accepted"), outcome.Record.ID, summarize(outcome.Record))
	case types.OutcomeMerged:
		return fmt.Sprintf("%s %s %s %s", cyan("→ merged  "), outcome.Record.ID, summarize(outcome.Record),
			cyan(fmt.Sprintf("[similarity %.3f]", outcome.Score)))
	case types.OutcomeNeedsReview:
		return fmt.Sprintf("%s %s %s %s", yellow("? review  "), outcome.Record.ID, summarize(outcome.Record),
			yellow("("+outcome.Reason+")"))
	default:
		return fmt.Sprintf("%s input #%d: %s", red("✗ rejected"), outcome.InputIndex+1, outcome.Reason)
	}
}

func summarize(record *types.TaskRecord) string {
	if record == nil {
		return ""
	}
	s := record.Title
	if record.DueDate != nil {
		s += " (due " + record.DueDate.Format("2006-01-02") + ")"
	}
	return s
}

// priorityMarker is the card's center-stage priority label. HIGH gets
// the triple marker the printed cards used.
func priorityMarker(p types.Priority) string {
	switch p {
	case types.PriorityHigh:
		return "!!! HIGH !!!"
	case types.PriorityLow:
		return "LOW"
	default:
		return "MEDIUM"
	}
}

func priorityGlyph(p types.Priority) string {
	switch p {
	case types.PriorityHigh:
		return color.New(color.FgRed, color.Bold).Sprint("!")
	case types.PriorityLow:
		return color.New(color.FgGreen).Sprint("·")
	default:
		return color.New(color.FgYellow).Sprint("-")
	}
}

// humanDate formats a date the way the printed cards did: month name,
// day with ordinal suffix.
func humanDate(t time.Time) string {
	day := t.Day()
	suffix := "th"
	switch {
	case day%10 == 1 && day != 11:
		suffix = "st"
	case day%10 == 2 && day != 12:
		suffix = "nd"
	case day%10 == 3 && day != 13:
		suffix = "rd"
	}
	return fmt.Sprintf("%s %d%s", t.Format("January"), day, suffix)
}

func formatHours(hours float64) string {
	if hours == float64(int(hours)) {
		return fmt.Sprintf("%dh", int(hours))
	}
	return fmt.Sprintf("%.1fh", hours)
}

// wrap word-wraps s to the given width, hard-splitting words longer
// than a whole line.
func wrap(s string, width int) []string {
	if width < 1 {
		width = 1
	}
	var lines []string
	var current string
	for _, word := range strings.Fields(s) {
		for utf8.RuneCountInString(word) > width {
			if current != "" {
				lines = append(lines, current)
				current = ""
			}
			runes := []rune(word)
			lines = append(lines, string(runes[:width]))
			word = string(runes[width:])
		}
		switch {
		case current == "":
			current = word
		case utf8.RuneCountInString(current)+1+utf8.RuneCountInString(word) <= width:
			current += " " + word
		default:
			lines = append(lines, current)
			current = word
		}
	}
	if current != "" {
		lines = append(lines, current)
	}
	if len(lines) == 0 {
		lines = []string{""}
	}
	return lines
}
