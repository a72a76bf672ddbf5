package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/taskmint/taskmint/internal/render"
	"github.com/taskmint/taskmint/internal/types"
)

var (
	ingestTexts []string
	ingestJSON  bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file...]",
	Short: "Batch-process raw text into tasks",
	Long: `Process raw text units through extraction, deduplication, and the
task store, printing one outcome line per extracted task.

Each file argument is one input unit. Repeated --text flags add literal
units. With no files and no --text, a single unit is read from stdin.

Examples:
  taskmint ingest meeting-notes.txt
  taskmint ingest inbox/*.txt
  taskmint ingest --text "Call John about the Q3 report"
  pbpaste | taskmint ingest
  taskmint ingest --json standup.txt > outcomes.json`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		inputs, err := gatherInputs(args, ingestTexts, os.Stdin)
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

		outcomes := orch.ProcessBatch(ctx, inputs)

		if ingestJSON {
			data, err := json.MarshalIndent(outcomes, "", "  ")
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: failed to encode outcomes: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(data))
			return
		}

		fmt.Println()
		for _, outcome := range outcomes {
			fmt.Println(render.OutcomeLine(outcome))
		}
		fmt.Println()
		printBatchSummary(outcomes)
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringArrayVar(&ingestTexts, "text", nil, "Literal input unit (repeatable)")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "Print outcomes as JSON")
}

// gatherInputs assembles the batch input units: one per file argument,
// one per --text flag, or one unit of stdin when neither is given.
func gatherInputs(files, texts []string, stdin io.Reader) ([]string, error) {
	var inputs []string
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		inputs = append(inputs, string(data))
	}
	inputs = append(inputs, texts...)

	if len(inputs) == 0 {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		if strings.TrimSpace(string(data)) == "" {
			return nil, fmt.Errorf("no input: pass files, --text, or pipe text on stdin")
		}
		inputs = append(inputs, string(data))
	}
	return inputs, nil
}

// printBatchSummary prints the accepted/merged/review/rejected tally
// for one batch.
func printBatchSummary(outcomes []types.Outcome) {
	var accepted, merged, review, rejected int
	for _, outcome := range outcomes {
		switch outcome.Kind {
		case types.OutcomeAccepted:
			accepted++
		case types.OutcomeMerged:
			merged++
		case types.OutcomeNeedsReview:
			review++
		case types.OutcomeRejected:
			rejected++
		}
	}

	green := color.New(color.FgGreen).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	fmt.Printf("Total: %s accepted, %s merged, %s for review, %s rejected\n",
		green(fmt.Sprintf("%d", accepted)),
		cyan(fmt.Sprintf("%d", merged)),
		yellow(fmt.Sprintf("%d", review)),
		red(fmt.Sprintf("%d", rejected)))

	if review > 0 {
		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Printf("%s\n", gray("Run 'taskmint list --review' to see tasks needing review"))
	}
}
