package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/taskmint/taskmint/internal/render"
	"github.com/taskmint/taskmint/internal/types"
)

var showCard bool

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one task's full fields",
	Long: `Display every stored field of one task, including the raw source
text it was extracted from.

With --card, render the task as a boxed plain-text card instead.

Examples:
  taskmint show 01JAZX4M8GQW3EJ6NKWP2R7V9T
  taskmint show 01JAZX4M8GQW3EJ6NKWP2R7V9T --card`,
	Args: cobra.ExactArgs(1),
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

		record, err := st.Get(context.Background(), args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if record == nil {
			fmt.Fprintf(os.Stderr, "Error: task %s not found\n", args[0])
			os.Exit(1)
		}

		if showCard {
			fmt.Print(render.Card(record))
			return
		}
		printTaskDetail(record)
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().BoolVar(&showCard, "card", false, "Render as a printable task card")
}

// printTaskDetail prints every stored field of one record.
func printTaskDetail(record *types.TaskRecord) {
	cyan := color.New(color.FgCyan).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Printf("\n%s %s\n\n", cyan(record.ID), record.Title)
	fmt.Printf("  Status:    %s\n", record.Status)
	fmt.Printf("  Priority:  %s\n", record.Priority)
	if record.DueDate != nil {
		fmt.Printf("  Due:       %s\n", record.DueDate.Format("2006-01-02"))
	}
	if record.EstimatedHours != nil {
		fmt.Printf("  Estimate:  %.1fh\n", *record.EstimatedHours)
	}
	if record.Source != "" {
		fmt.Printf("  Source:    %s\n", record.Source)
	}
	if record.Notes != "" {
		fmt.Printf("  Notes:     %s\n", record.Notes)
	}
	if record.MergedInto != "" {
		fmt.Printf("  Merged into: %s\n", cyan(record.MergedInto))
	}
	if record.NeedsReview {
		fmt.Printf("  Review:    %s\n", yellow(record.ReviewReason))
	}
	if record.Embedding == nil && record.Status == types.StatusActive {
		fmt.Printf("  %s\n", gray("No embedding stored (run 'taskmint reembed')"))
	}
	fmt.Printf("  Created:   %s\n", record.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("  Updated:   %s\n", record.UpdatedAt.Local().Format("2006-01-02 15:04:05"))

	if record.SourceText != "" {
		fmt.Printf("\n  Extracted from:\n")
		for _, line := range strings.Split(strings.TrimRight(record.SourceText, "\n"), "\n") {
			fmt.Printf("    %s\n", gray(line))
		}
	}
	fmt.Println()
}
