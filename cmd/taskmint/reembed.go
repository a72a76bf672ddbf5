package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/taskmint/taskmint/internal/embed"
	"github.com/taskmint/taskmint/internal/index"
	"github.com/taskmint/taskmint/internal/pipeline"
	"github.com/taskmint/taskmint/internal/render"
	"github.com/taskmint/taskmint/internal/types"
)

var reembedDryRun bool

var reembedCmd = &cobra.Command{
	Use:   "reembed",
	Short: "Recover embeddings for tasks that lack one",
	Long: `Recompute embeddings for ACTIVE tasks whose embedding is missing.

Tasks land in this state when the embedding service was unavailable at
capture time; they sit out deduplication until recovered. Recovery
re-derives the canonical text from the stored fields, embeds it, stores
the vector, and clears the review flag where the missing embedding was
the only reason for it.

Examples:
  taskmint reembed --dry-run    # List affected tasks without calling the API
  taskmint reembed`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		st, err := openStore(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()

		ctx := context.Background()
		green := color.New(color.FgGreen).SprintFunc()

		active, err := st.ListActive(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		var missing []*types.TaskRecord
		for _, record := range active {
			if record.Embedding == nil {
				missing = append(missing, record)
			}
		}

		if len(missing) == 0 {
			fmt.Printf("%s All active tasks have embeddings\n", green("✓"))
			return
		}

		if reembedDryRun {
			fmt.Printf("%d task(s) missing an embedding:\n\n", len(missing))
			for _, record := range missing {
				fmt.Println(render.Line(record))
			}
			return
		}

		embedder, err := embed.NewOpenAIEmbedder(cfg.Embedding)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		idx := index.New(cfg.Embedding.Dimension)
		if err := idx.Rebuild(active); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to rebuild similarity index: %v\n", err)
			os.Exit(1)
		}

		recovered, err := pipeline.Reembed(ctx, st, embedder, idx, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if len(recovered) == 0 {
			fmt.Printf("No embeddings recovered; the embedding service may still be unavailable\n")
			os.Exit(1)
		}

		fmt.Printf("%s Recovered %d of %d embedding(s):\n\n", green("✓"), len(recovered), len(missing))
		for _, record := range recovered {
			fmt.Println(render.Line(record))
		}
	},
}

func init() {
	rootCmd.AddCommand(reembedCmd)
	reembedCmd.Flags().BoolVar(&reembedDryRun, "dry-run", false, "List tasks missing embeddings without calling the embedding API")
}
