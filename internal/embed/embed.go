// Package embed produces the semantic fingerprint vector for a task
// candidate by calling an OpenAI-compatible embeddings endpoint.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"golang.org/x/time/rate"

	"github.com/taskmint/taskmint/internal/config"
	"github.com/taskmint/taskmint/internal/types"
)

// ErrUnavailable is the sentinel for every embedding failure mode:
// transport errors, non-2xx responses, malformed bodies, and vectors
// of unexpected dimension. Callers retry on it and, when retries are
// exhausted, route the candidate to manual review instead of guessing
// at a dedup decision without a fingerprint.
var ErrUnavailable = errors.New("embedding unavailable")

// Embedder computes a fixed-dimension vector for a piece of text.
type Embedder interface {
	// Embed returns the embedding vector for text. Errors wrap
	// ErrUnavailable unless the context was canceled.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension is the length of every vector Embed returns.
	Dimension() int
}

// CanonicalText builds the embedding input for a candidate: the title,
// plus the due date in YYYY-MM-DD form when present. Priority and
// estimated hours are attributes, not semantic identity, and are
// deliberately excluded so they never perturb similarity scores.
func CanonicalText(c types.TaskCandidate) string {
	if c.DueDate == nil {
		return c.Title
	}
	return c.Title + " due " + c.DueDate.Format("2006-01-02")
}

// OpenAIEmbedder calls POST {base_url}/embeddings on any service that
// speaks the OpenAI embeddings wire format.
type OpenAIEmbedder struct {
	baseURL    string
	model      string
	dimension  int
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewOpenAIEmbedder creates an embedder from config. The API key is
// read from the OPENAI_API_KEY environment variable.
func NewOpenAIEmbedder(cfg config.EmbeddingConfig) (*OpenAIEmbedder, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable is required")
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive (got %d)", cfg.Dimension)
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = config.Default().Embedding.RequestsPerSecond
	}
	return &OpenAIEmbedder{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		model:     cfg.Model,
		dimension: cfg.Dimension,
		apiKey:    apiKey,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}, nil
}

// embeddingRequest is the OpenAI embeddings request body.
type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// embeddingResponse is the subset of the OpenAI embeddings response we
// consume.
type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed implements Embedder.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		// Context canceled or deadline passed while queued; report the
		// context error so callers can tell cancellation from outage.
		return nil, err
	}

	body, err := json.Marshal(embeddingRequest{Model: e.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var parsed embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("%w: response contained no embeddings", ErrUnavailable)
	}

	vec := parsed.Data[0].Embedding
	if len(vec) != e.dimension {
		return nil, fmt.Errorf("%w: expected dimension %d, got %d", ErrUnavailable, e.dimension, len(vec))
	}
	return vec, nil
}

// Dimension implements Embedder.
func (e *OpenAIEmbedder) Dimension() int {
	return e.dimension
}
