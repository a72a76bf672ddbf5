package extract

import (
	"strings"
	"testing"
)

type parseTarget struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestParseJSONStrategies(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "direct parse",
			input: `{"name": "alpha", "count": 3}`,
		},
		{
			name:  "json code fence",
			input: "```json\n{\"name\": \"alpha\", \"count\": 3}\n```",
		},
		{
			name:  "bare code fence",
			input: "```\n{\"name\": \"alpha\", \"count\": 3}\n```",
		},
		{
			name:  "trailing comma",
			input: `{"name": "alpha", "count": 3,}`,
		},
		{
			name:  "line comment",
			input: "{\"name\": \"alpha\", // the usual\n\"count\": 3}",
		},
		{
			name:  "block comment",
			input: `{"name": "alpha", /* noise */ "count": 3}`,
		},
		{
			name:  "surrounding prose",
			input: `Here is the JSON you asked for: {"name": "alpha", "count": 3} Hope that helps!`,
		},
		{
			name:  "fenced with prose and trailing comma",
			input: "Sure!\n```json\n{\"name\": \"alpha\", \"count\": 3,}\n```\nLet me know if you need anything else.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseJSON[parseTarget](tt.input, "test")
			if err != nil {
				t.Fatalf("parseJSON failed: %v", err)
			}
			if got.Name != "alpha" || got.Count != 3 {
				t.Errorf("parsed %+v, want {alpha 3}", got)
			}
		})
	}
}

func TestParseJSONApostrophesSurvive(t *testing.T) {
	got, err := parseJSON[parseTarget](`{"name": "John's report", "count": 1}`, "test")
	if err != nil {
		t.Fatalf("parseJSON failed: %v", err)
	}
	if got.Name != "John's report" {
		t.Errorf("apostrophe mangled: %q", got.Name)
	}
}

func TestParseJSONArrayPayload(t *testing.T) {
	input := "The tasks are:\n[{\"name\": \"a\", \"count\": 1}, {\"name\": \"b\", \"count\": 2}]"
	got, err := parseJSON[[]parseTarget](input, "test")
	if err != nil {
		t.Fatalf("parseJSON failed: %v", err)
	}
	if len(got) != 2 || got[0].Name != "a" || got[1].Count != 2 {
		t.Errorf("parsed %+v", got)
	}
}

func TestParseJSONFailures(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ""},
		{name: "whitespace only", input: "   \n\t  "},
		{name: "no JSON at all", input: "I could not find any tasks in that text."},
		{name: "hopelessly broken", input: `{"name": "alpha", "count": }`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseJSON[parseTarget](tt.input, "test"); err == nil {
				t.Error("expected parse error, got none")
			}
		})
	}
}

func TestParseJSONExtractionEnvelope(t *testing.T) {
	response := "```json\n" + `{
  "tasks": [
    {
      "title": "Call John about the quarterly report",
      "priority": "HIGH",
      "due_date": "2026-08-28",
      "estimated_hours": 0.5,
      "source": "email",
      "notes": "He asked twice already"
    },
    {
      "title": "Book the team offsite venue",
      "priority": "MEDIUM"
    }
  ],
  "summary": "An email asking for a call and an offsite booking"
}` + "\n```"

	envelope, err := parseJSON[extractionResponse](response, "extraction response")
	if err != nil {
		t.Fatalf("parseJSON failed: %v", err)
	}
	if len(envelope.Tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(envelope.Tasks))
	}
	first := envelope.Tasks[0]
	if first.Title != "Call John about the quarterly report" {
		t.Errorf("title = %q", first.Title)
	}
	if first.Priority != "HIGH" || first.DueDate != "2026-08-28" {
		t.Errorf("fields did not survive: %+v", first)
	}
	if first.EstimatedHours == nil || *first.EstimatedHours != 0.5 {
		t.Errorf("estimated hours = %v", first.EstimatedHours)
	}
	if envelope.Tasks[1].DueDate != "" || envelope.Tasks[1].EstimatedHours != nil {
		t.Errorf("omitted fields should stay zero: %+v", envelope.Tasks[1])
	}
	if !strings.Contains(envelope.Summary, "offsite") {
		t.Errorf("summary = %q", envelope.Summary)
	}
}
