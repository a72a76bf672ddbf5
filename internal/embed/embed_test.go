package embed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/taskmint/taskmint/internal/config"
	"github.com/taskmint/taskmint/internal/types"
)

func TestCanonicalText(t *testing.T) {
	due := time.Date(2026, 9, 4, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		candidate types.TaskCandidate
		want      string
	}{
		{
			name:      "title only",
			candidate: types.TaskCandidate{Title: "Call John about the report"},
			want:      "Call John about the report",
		},
		{
			name:      "title with due date",
			candidate: types.TaskCandidate{Title: "Call John about the report", DueDate: &due},
			want:      "Call John about the report due 2026-09-04",
		},
		{
			name: "priority and hours are excluded",
			candidate: types.TaskCandidate{
				Title:          "Call John about the report",
				Priority:       types.PriorityHigh,
				EstimatedHours: func() *float64 { h := 4.0; return &h }(),
			},
			want: "Call John about the report",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanonicalText(tt.candidate); got != tt.want {
				t.Errorf("CanonicalText() = %q, want %q", got, tt.want)
			}
		})
	}
}

// newTestEmbedder points an OpenAIEmbedder at a test server.
func newTestEmbedder(t *testing.T, serverURL string, dimension int) *OpenAIEmbedder {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "test-key")
	e, err := NewOpenAIEmbedder(config.EmbeddingConfig{
		BaseURL:           serverURL,
		Model:             "text-embedding-3-small",
		Dimension:         dimension,
		RequestTimeout:    5 * time.Second,
		RequestsPerSecond: 100,
	})
	if err != nil {
		t.Fatalf("NewOpenAIEmbedder failed: %v", err)
	}
	return e
}

func embeddingBody(vec []float32) string {
	parts := make([]string, len(vec))
	for i, v := range vec {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return `{"object":"list","data":[{"object":"embedding","index":0,"embedding":[` +
		strings.Join(parts, ",") + `]}],"model":"text-embedding-3-small"}`
}

func TestEmbedSuccess(t *testing.T) {
	var gotPath, gotAuth string
	var gotReq embeddingRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request body: %v", err)
		}
		fmt.Fprint(w, embeddingBody([]float32{0.1, 0.2, 0.3}))
	}))
	defer server.Close()

	e := newTestEmbedder(t, server.URL, 3)
	vec, err := e.Embed(context.Background(), "Call John due 2026-09-04")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	if len(vec) != 3 {
		t.Fatalf("expected 3-dim vector, got %d", len(vec))
	}
	if vec[0] != 0.1 || vec[1] != 0.2 || vec[2] != 0.3 {
		t.Errorf("unexpected vector: %v", vec)
	}
	if gotPath != "/embeddings" {
		t.Errorf("expected POST /embeddings, got %s", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("expected bearer auth, got %q", gotAuth)
	}
	if gotReq.Model != "text-embedding-3-small" {
		t.Errorf("expected model in request, got %q", gotReq.Model)
	}
	if gotReq.Input != "Call John due 2026-09-04" {
		t.Errorf("expected canonical text in request, got %q", gotReq.Input)
	}
}

func TestEmbedTrailingSlashBaseURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("expected /v1/embeddings, got %s", r.URL.Path)
		}
		fmt.Fprint(w, embeddingBody([]float32{1}))
	}))
	defer server.Close()

	e := newTestEmbedder(t, server.URL+"/v1/", 1)
	if _, err := e.Embed(context.Background(), "x"); err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
}

func TestEmbedFailureModes(t *testing.T) {
	tests := []struct {
		name          string
		handler       http.HandlerFunc
		errorContains string
	}{
		{
			name: "server error status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "upstream overloaded", http.StatusServiceUnavailable)
			},
			errorContains: "status 503",
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"data": [{"embedding": "not-a-vector"`)
			},
			errorContains: "decode response",
		},
		{
			name: "empty data",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"object":"list","data":[]}`)
			},
			errorContains: "no embeddings",
		},
		{
			name: "dimension mismatch",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, embeddingBody([]float32{0.1, 0.2}))
			},
			errorContains: "expected dimension 3, got 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			e := newTestEmbedder(t, server.URL, 3)
			_, err := e.Embed(context.Background(), "anything")
			if err == nil {
				t.Fatal("expected error, got none")
			}
			if !errors.Is(err, ErrUnavailable) {
				t.Errorf("expected ErrUnavailable, got: %v", err)
			}
			if !strings.Contains(err.Error(), tt.errorContains) {
				t.Errorf("expected error containing %q, got: %v", tt.errorContains, err)
			}
		})
	}
}

func TestEmbedTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	e := newTestEmbedder(t, server.URL, 3)
	_, err := e.Embed(context.Background(), "anything")
	if err == nil {
		t.Fatal("expected error, got none")
	}
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got: %v", err)
	}
}

func TestEmbedCanceledContextIsNotUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, embeddingBody([]float32{0.1, 0.2, 0.3}))
	}))
	defer server.Close()

	e := newTestEmbedder(t, server.URL, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Embed(ctx, "anything")
	if err == nil {
		t.Fatal("expected error, got none")
	}
	if errors.Is(err, ErrUnavailable) {
		t.Errorf("cancellation must not be reported as unavailable: %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got: %v", err)
	}
}

func TestNewOpenAIEmbedderRequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewOpenAIEmbedder(config.Default().Embedding)
	if err == nil {
		t.Fatal("expected error when OPENAI_API_KEY is unset")
	}
	if !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Errorf("expected error to name the variable, got: %v", err)
	}
}
