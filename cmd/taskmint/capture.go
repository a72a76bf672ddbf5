package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskmint/taskmint/internal/repl"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Start the interactive capture shell",
	Long: `Start an interactive shell that turns each entered line into tasks.

Every line (or pasted block, via /paste) runs through the same extraction
and deduplication pipeline as 'taskmint ingest'. Slash commands browse
the store without leaving the shell.

Type /help in the shell for available commands.`,
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
		orch, err := buildOrchestrator(ctx, cfg, st)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		r, err := repl.New(&repl.Config{
			Orchestrator: orch,
			Store:        st,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create capture shell: %v\n", err)
			os.Exit(1)
		}

		if err := r.Run(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(captureCmd)
}
