package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/taskmint/taskmint/internal/render"
	"github.com/taskmint/taskmint/internal/types"
)

var (
	listRecent int
	listReview bool
	listAll    bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	Long: `List tasks as colored one-line entries.

By default only ACTIVE tasks are shown, oldest first.

Examples:
  taskmint list
  taskmint list --recent 20    # Newest 20 across all statuses
  taskmint list --review       # Only tasks flagged for review
  taskmint list --all          # Every record, including merged and archived`,
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

		var records []*types.TaskRecord
		switch {
		case listRecent > 0:
			records, err = st.ListRecent(ctx, listRecent)
		case listReview:
			records, err = st.ListNeedsReview(ctx)
		case listAll:
			records, err = st.ListAll(ctx)
		default:
			records, err = st.ListActive(ctx)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if len(records) == 0 {
			gray := color.New(color.FgHiBlack).SprintFunc()
			fmt.Println(gray("No tasks found"))
			return
		}

		for _, record := range records {
			fmt.Println(render.Line(record))
		}
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().IntVar(&listRecent, "recent", 0, "Show the N most recently created tasks, newest first")
	listCmd.Flags().BoolVar(&listReview, "review", false, "Show only tasks flagged for review")
	listCmd.Flags().BoolVar(&listAll, "all", false, "Show every record regardless of status")
}
