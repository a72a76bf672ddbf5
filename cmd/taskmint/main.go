package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskmint/taskmint/internal/config"
	"github.com/taskmint/taskmint/internal/dedup"
	"github.com/taskmint/taskmint/internal/embed"
	"github.com/taskmint/taskmint/internal/extract"
	"github.com/taskmint/taskmint/internal/index"
	"github.com/taskmint/taskmint/internal/pipeline"
	"github.com/taskmint/taskmint/internal/store"
)

var (
	dbPath     string
	configPath string
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:   "taskmint",
	Short: "Extract and deduplicate tasks from raw text",
	Long: `Taskmint turns raw text (emails, meeting notes, voice-memo transcripts)
into a deduplicated task list.

Each input unit runs through language-model extraction, embedding
fingerprints, and cosine-similarity deduplication before landing in an
SQLite store. Near-duplicates are flagged for human review instead of
being silently merged or admitted.

Commands that call external APIs (ingest, capture, reembed) read
ANTHROPIC_API_KEY and OPENAI_API_KEY from the environment.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet {
			log.SetOutput(io.Discard)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database file (default: storage.path from config, else ~/.taskmint/tasks.db)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ~/.taskmint.yaml)")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Discard operational log output")
}

// loadConfig resolves the layered configuration and applies the --db
// override on top of it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Storage.Path = dbPath
	}
	return cfg, nil
}

// openStore opens the task database named by the resolved config,
// creating it if necessary.
func openStore(cfg *config.Config) (*store.Store, error) {
	return store.New(cfg.DBPath())
}

// buildOrchestrator wires the full pipeline and rebuilds the similarity
// index from the store's ACTIVE records.
func buildOrchestrator(ctx context.Context, cfg *config.Config, st *store.Store) (*pipeline.Orchestrator, error) {
	extractor, err := extract.NewAnthropicExtractor(cfg.Extraction)
	if err != nil {
		return nil, err
	}
	embedder, err := embed.NewOpenAIEmbedder(cfg.Embedding)
	if err != nil {
		return nil, err
	}

	idx := index.New(cfg.Embedding.Dimension)
	engine, err := dedup.NewEngine(idx, cfg.DuplicateThreshold, cfg.ReviewThreshold)
	if err != nil {
		return nil, err
	}

	orch, err := pipeline.New(extractor, embedder, st, idx, engine, cfg)
	if err != nil {
		return nil, err
	}
	if err := orch.Rebuild(ctx); err != nil {
		return nil, err
	}
	return orch, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
