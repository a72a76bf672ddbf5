package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show corpus counts and recent batch runs",
	Long:  `Display task counts by status, the review backlog, and recent batch runs.`,
	Args:  cobra.NoArgs,
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

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s\n\n", cyan("=== Task Corpus ==="))

		stats, err := st.Stats(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s\n", yellow("Tasks:"))
		fmt.Printf("  Active:   %s\n", green(fmt.Sprintf("%d", stats.ActiveTasks)))
		fmt.Printf("  Merged:   %d\n", stats.MergedTasks)
		fmt.Printf("  Archived: %d\n", stats.ArchivedTasks)
		fmt.Printf("  Total:    %d\n", stats.TotalTasks)
		fmt.Println()

		fmt.Printf("%s\n", yellow("Attention:"))
		if stats.NeedsReview == 0 && stats.Unembedded == 0 {
			fmt.Printf("  %s\n", gray("Nothing needs review"))
		} else {
			if stats.NeedsReview > 0 {
				fmt.Printf("  Needs review: %s\n", yellow(fmt.Sprintf("%d", stats.NeedsReview)))
				fmt.Printf("  %s\n", gray("Run 'taskmint list --review' to see them"))
			}
			if stats.Unembedded > 0 {
				fmt.Printf("  Missing embeddings: %s\n", yellow(fmt.Sprintf("%d", stats.Unembedded)))
				fmt.Printf("  %s\n", gray("Run 'taskmint reembed' to recover them"))
			}
		}
		fmt.Println()

		fmt.Printf("%s\n", yellow("Recent Batches:"))
		runs, err := st.RecentBatches(ctx, 10)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(runs) == 0 {
			fmt.Printf("  %s\n", gray("No batches recorded"))
		} else {
			for _, run := range runs {
				fmt.Printf("  %s  %d input(s): %d accepted, %d merged, %d review, %d rejected\n",
					run.StartedAt.Local().Format("2006-01-02 15:04"),
					run.Inputs, run.Accepted, run.Merged, run.NeedsReview, run.Rejected)
			}
		}
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
