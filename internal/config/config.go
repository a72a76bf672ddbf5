package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// envPrefix namespaces every environment override, e.g.
// TASKMINT_DUPLICATE_THRESHOLD or TASKMINT_EMBEDDING_DIMENSION.
const envPrefix = "taskmint"

// Config holds the full pipeline configuration. Values are resolved in three
// layers, later wins: Default() -> YAML file -> TASKMINT_* environment
// variables. API keys are deliberately not part of Config; the clients read
// ANTHROPIC_API_KEY and OPENAI_API_KEY directly.
type Config struct {
	// DuplicateThreshold is the minimum cosine similarity (0.0-1.0, inclusive
	// boundary) at which a candidate is treated as a duplicate of an existing
	// record. Higher values = more conservative (fewer merges, more near-twins
	// surviving as separate tasks).
	DuplicateThreshold float64 `yaml:"duplicate_threshold" split_words:"true"`

	// ReviewThreshold is the lower similarity bound at which a near-match is
	// flagged for human review instead of being silently admitted as new.
	// Must be strictly below DuplicateThreshold.
	ReviewThreshold float64 `yaml:"review_threshold" split_words:"true"`

	// ExtractionRetryCount is how many times a failed extraction call is
	// retried before the input unit is rejected. Default: 1 (two attempts
	// total).
	ExtractionRetryCount int `yaml:"extraction_retry_count" split_words:"true"`

	// EmbeddingRetryCount is how many times a failed embedding call is
	// retried before the candidate is routed to needs-review. Default: 2
	// (three attempts total).
	EmbeddingRetryCount int `yaml:"embedding_retry_count" split_words:"true"`

	// BatchConcurrencyLimit bounds how many input units are in flight at
	// once. Extraction and embedding are the dominant latency cost, so a
	// small pool is enough.
	BatchConcurrencyLimit int `yaml:"batch_concurrency_limit" split_words:"true"`

	// RetryBackoff is the initial delay between retry attempts; it doubles
	// per attempt up to MaxRetryBackoff.
	RetryBackoff time.Duration `yaml:"retry_backoff" split_words:"true"`

	// MaxRetryBackoff caps the exponential backoff delay.
	MaxRetryBackoff time.Duration `yaml:"max_retry_backoff" split_words:"true"`

	Extraction ExtractionConfig `yaml:"extraction"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Storage    StorageConfig    `yaml:"storage"`
}

// ExtractionConfig configures the language-model extraction client
type ExtractionConfig struct {
	// Model is the Anthropic model id. Extraction is a simple structured
	// task, so the cost-efficient tier is the default.
	Model string `yaml:"model"`

	// MaxTokens bounds the response size of one extraction call.
	MaxTokens int64 `yaml:"max_tokens" split_words:"true"`

	// MaxConcurrentCalls caps in-flight API calls process-wide, independent
	// of batch concurrency.
	MaxConcurrentCalls int `yaml:"max_concurrent_calls" split_words:"true"`

	// RequestTimeout is the timeout for one extraction call.
	RequestTimeout time.Duration `yaml:"request_timeout" split_words:"true"`
}

// EmbeddingConfig configures the embedding service adapter
type EmbeddingConfig struct {
	// BaseURL is the OpenAI-compatible API root, without the /embeddings
	// suffix.
	BaseURL string `yaml:"base_url" split_words:"true"`

	// Model is the embedding model id.
	Model string `yaml:"model"`

	// Dimension is the expected vector length; responses of any other
	// length are treated as embedding-unavailable.
	Dimension int `yaml:"dimension"`

	// RequestTimeout is the timeout for one embedding call.
	RequestTimeout time.Duration `yaml:"request_timeout" split_words:"true"`

	// RequestsPerSecond rate-limits embedding calls client-side.
	RequestsPerSecond float64 `yaml:"requests_per_second" split_words:"true"`
}

// StorageConfig configures the task store
type StorageConfig struct {
	// Path is the SQLite database file. Empty means DefaultDBPath().
	Path string `yaml:"path"`
}

// Default returns the default configuration.
//
// The thresholds are calibrated for text-embedding-3-small: 0.92 marks
// near-verbatim restatements, 0.80 catches paraphrases worth a human look.
// Both drift with the embedding model, which is why they are configuration.
func Default() *Config {
	return &Config{
		DuplicateThreshold:    0.92,
		ReviewThreshold:       0.80,
		ExtractionRetryCount:  1,
		EmbeddingRetryCount:   2,
		BatchConcurrencyLimit: 4,
		RetryBackoff:          500 * time.Millisecond,
		MaxRetryBackoff:       8 * time.Second,
		Extraction: ExtractionConfig{
			Model:              "claude-3-5-haiku-20241022",
			MaxTokens:          2048,
			MaxConcurrentCalls: 3,
			RequestTimeout:     60 * time.Second,
		},
		Embedding: EmbeddingConfig{
			BaseURL:           "https://api.openai.com/v1",
			Model:             "text-embedding-3-small",
			Dimension:         1536,
			RequestTimeout:    30 * time.Second,
			RequestsPerSecond: 5,
		},
		Storage: StorageConfig{},
	}
}

// Load resolves the configuration: defaults, then the YAML file at path (or
// ~/.taskmint.yaml when path is empty, skipped if absent), then TASKMINT_*
// environment variables. The result is validated before being returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, ".taskmint.yaml")
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", path, err)
			}
		case os.IsNotExist(err) && !explicit:
			// No config file is fine; defaults and env carry it.
		default:
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("loading environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if the configuration has valid values
func (c *Config) Validate() error {
	if c.DuplicateThreshold <= 0 || c.DuplicateThreshold > 1 {
		return fmt.Errorf("duplicate_threshold must be in (0.0, 1.0] (got %.2f)", c.DuplicateThreshold)
	}
	if c.ReviewThreshold <= 0 || c.ReviewThreshold > 1 {
		return fmt.Errorf("review_threshold must be in (0.0, 1.0] (got %.2f)", c.ReviewThreshold)
	}
	if c.ReviewThreshold >= c.DuplicateThreshold {
		return fmt.Errorf("review_threshold must be below duplicate_threshold (got %.2f >= %.2f)",
			c.ReviewThreshold, c.DuplicateThreshold)
	}
	if c.ExtractionRetryCount < 0 {
		return fmt.Errorf("extraction_retry_count cannot be negative (got %d)", c.ExtractionRetryCount)
	}
	if c.ExtractionRetryCount > 10 {
		return fmt.Errorf("extraction_retry_count too large (got %d, max 10)", c.ExtractionRetryCount)
	}
	if c.EmbeddingRetryCount < 0 {
		return fmt.Errorf("embedding_retry_count cannot be negative (got %d)", c.EmbeddingRetryCount)
	}
	if c.EmbeddingRetryCount > 10 {
		return fmt.Errorf("embedding_retry_count too large (got %d, max 10)", c.EmbeddingRetryCount)
	}
	if c.BatchConcurrencyLimit < 1 {
		return fmt.Errorf("batch_concurrency_limit must be positive (got %d)", c.BatchConcurrencyLimit)
	}
	if c.BatchConcurrencyLimit > 64 {
		return fmt.Errorf("batch_concurrency_limit too large (got %d, max 64)", c.BatchConcurrencyLimit)
	}
	if c.RetryBackoff <= 0 {
		return fmt.Errorf("retry_backoff must be positive (got %v)", c.RetryBackoff)
	}
	if c.MaxRetryBackoff < c.RetryBackoff {
		return fmt.Errorf("max_retry_backoff must be at least retry_backoff (got %v < %v)",
			c.MaxRetryBackoff, c.RetryBackoff)
	}
	if c.Extraction.Model == "" {
		return fmt.Errorf("extraction.model is required")
	}
	if c.Extraction.MaxTokens < 1 || c.Extraction.MaxTokens > 65536 {
		return fmt.Errorf("extraction.max_tokens must be in [1, 65536] (got %d)", c.Extraction.MaxTokens)
	}
	if c.Extraction.MaxConcurrentCalls < 1 {
		return fmt.Errorf("extraction.max_concurrent_calls must be positive (got %d)", c.Extraction.MaxConcurrentCalls)
	}
	if c.Extraction.RequestTimeout <= 0 || c.Extraction.RequestTimeout > 5*time.Minute {
		return fmt.Errorf("extraction.request_timeout must be in (0, 5m] (got %v)", c.Extraction.RequestTimeout)
	}
	if c.Embedding.BaseURL == "" {
		return fmt.Errorf("embedding.base_url is required")
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	if c.Embedding.Dimension < 1 || c.Embedding.Dimension > 8192 {
		return fmt.Errorf("embedding.dimension must be in [1, 8192] (got %d)", c.Embedding.Dimension)
	}
	if c.Embedding.RequestTimeout <= 0 || c.Embedding.RequestTimeout > 5*time.Minute {
		return fmt.Errorf("embedding.request_timeout must be in (0, 5m] (got %v)", c.Embedding.RequestTimeout)
	}
	if c.Embedding.RequestsPerSecond <= 0 || c.Embedding.RequestsPerSecond > 100 {
		return fmt.Errorf("embedding.requests_per_second must be in (0, 100] (got %.1f)", c.Embedding.RequestsPerSecond)
	}
	return nil
}

// String returns a human-readable representation of the config
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Duplicate: %.2f, Review: %.2f, ExtractRetries: %d, EmbedRetries: %d, "+
			"Concurrency: %d, Backoff: %v, Model: %s, EmbedModel: %s, Dim: %d}",
		c.DuplicateThreshold, c.ReviewThreshold, c.ExtractionRetryCount, c.EmbeddingRetryCount,
		c.BatchConcurrencyLimit, c.RetryBackoff, c.Extraction.Model, c.Embedding.Model,
		c.Embedding.Dimension,
	)
}

// DBPath returns the configured database path, or the per-user default when
// none is set.
func (c *Config) DBPath() string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	return DefaultDBPath()
}

// DefaultDBPath is ~/.taskmint/tasks.db, falling back to the working
// directory when the home directory cannot be resolved.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "taskmint.db"
	}
	return filepath.Join(home, ".taskmint", "tasks.db")
}
