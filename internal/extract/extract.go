// Package extract turns raw unstructured text into task candidates by
// calling an Anthropic model with a strict output schema.
package extract

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/sync/semaphore"

	"github.com/taskmint/taskmint/internal/config"
	"github.com/taskmint/taskmint/internal/schema"
	"github.com/taskmint/taskmint/internal/types"
)

// Result is the outcome of one extraction call: zero or more validated
// candidates plus the model's one-line summary of the input.
type Result struct {
	Candidates []types.TaskCandidate
	Summary    string
}

// Extractor converts one unit of input text into task candidates.
//
// Implementations make exactly one attempt; retry policy belongs to
// the pipeline orchestrator, which knows the batch-level budget.
type Extractor interface {
	Extract(ctx context.Context, input string) (*Result, error)
}

// extractionResponse is the JSON envelope the model is instructed to
// return.
type extractionResponse struct {
	Tasks   []schema.RawTask `json:"tasks"`
	Summary string           `json:"summary"`
}

// AnthropicExtractor implements Extractor against the Anthropic
// Messages API.
type AnthropicExtractor struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
	timeout   time.Duration
	sem       *semaphore.Weighted // limits concurrent API calls process-wide
}

// NewAnthropicExtractor creates an extraction client from config. The
// API key is read from the ANTHROPIC_API_KEY environment variable.
func NewAnthropicExtractor(cfg config.ExtractionConfig) (*AnthropicExtractor, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
	}

	model := cfg.Model
	if model == "" {
		model = config.Default().Extraction.Model
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = config.Default().Extraction.MaxTokens
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	var sem *semaphore.Weighted
	if cfg.MaxConcurrentCalls > 0 {
		sem = semaphore.NewWeighted(int64(cfg.MaxConcurrentCalls))
	}

	return &AnthropicExtractor{
		client:    &client,
		model:     model,
		maxTokens: maxTokens,
		timeout:   cfg.RequestTimeout,
		sem:       sem,
	}, nil
}

// Extract implements Extractor. Whitespace-only input returns an empty
// result without spending an API call. Tasks the model returns that
// fail schema validation are dropped individually; one bad task never
// sinks its siblings.
func (e *AnthropicExtractor) Extract(ctx context.Context, input string) (*Result, error) {
	if strings.TrimSpace(input) == "" {
		return &Result{Summary: "empty input"}, nil
	}

	if e.sem != nil {
		if err := e.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer e.sem.Release(1)
	}

	callCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	prompt := buildExtractionPrompt(input, time.Now().UTC())

	response, err := e.client.Messages.New(callCtx, anthropic.MessageNewParams{
		Model:     anthropic.Model(e.model),
		MaxTokens: e.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API call failed: %w", err)
	}

	var responseText string
	for _, block := range response.Content {
		if block.Type == "text" {
			responseText += block.Text
		}
	}

	envelope, err := parseJSON[extractionResponse](responseText, "extraction response")
	if err != nil {
		return nil, fmt.Errorf("failed to parse extraction response: %w (response: %s)", err, truncate(responseText, 200))
	}

	result := &Result{
		Summary:    envelope.Summary,
		Candidates: make([]types.TaskCandidate, 0, len(envelope.Tasks)),
	}
	for i, raw := range envelope.Tasks {
		candidate, err := schema.Validate(raw, input)
		if err != nil {
			log.Printf("[EXTRACT] dropping task %d (%q): %v", i, truncate(raw.Title, 60), err)
			continue
		}
		result.Candidates = append(result.Candidates, candidate)
	}
	return result, nil
}

// truncate shortens a string for log and error messages.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
