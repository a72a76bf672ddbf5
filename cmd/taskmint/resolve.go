package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/taskmint/taskmint/internal/dedup"
	"github.com/taskmint/taskmint/internal/store"
	"github.com/taskmint/taskmint/internal/types"
)

var (
	resolveKeepFlag    bool
	resolveMergeTarget string
	resolveArchiveFlag bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <id>",
	Short: "Resolve a task flagged for review",
	Long: `Resolve a review flag (or retire a task) in one of three ways:

  --keep             Clear the review flag; the task stays ACTIVE.
  --merge-into <id>  Fold the task into the given surviving task. The
                     survivor gains any due date or estimate it lacked;
                     the resolved task becomes MERGED.
  --archive          Retire the task without merging (status ARCHIVED).

Exactly one of the three must be given. Merged and archived tasks leave
deduplication the next time the similarity index is rebuilt.

Examples:
  taskmint resolve 01JAZX4M8GQW3EJ6NKWP2R7V9T --keep
  taskmint resolve 01JAZX4M8GQW3EJ6NKWP2R7V9T --merge-into 01JAZWY0P4T8RDH5MVB1C6K3XF
  taskmint resolve 01JAZX4M8GQW3EJ6NKWP2R7V9T --archive`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		chosen := 0
		if resolveKeepFlag {
			chosen++
		}
		if resolveMergeTarget != "" {
			chosen++
		}
		if resolveArchiveFlag {
			chosen++
		}
		if chosen != 1 {
			fmt.Fprintf(os.Stderr, "Error: exactly one of --keep, --merge-into, or --archive is required\n")
			os.Exit(1)
		}

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
		id := args[0]
		green := color.New(color.FgGreen).SprintFunc()

		switch {
		case resolveKeepFlag:
			if err := resolveKeep(ctx, st, id); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("%s Kept %s\n", green("✓"), id)

		case resolveMergeTarget != "":
			if err := resolveMerge(ctx, st, id, resolveMergeTarget); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("%s Merged %s into %s\n", green("✓"), id, resolveMergeTarget)

		case resolveArchiveFlag:
			if err := resolveArchive(ctx, st, id); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("%s Archived %s\n", green("✓"), id)
		}
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
	resolveCmd.Flags().BoolVar(&resolveKeepFlag, "keep", false, "Clear the review flag and keep the task active")
	resolveCmd.Flags().StringVar(&resolveMergeTarget, "merge-into", "", "Merge the task into this surviving task id")
	resolveCmd.Flags().BoolVar(&resolveArchiveFlag, "archive", false, "Archive the task")
}

// resolveKeep clears the review flag on a flagged ACTIVE task. A task
// whose flag reason is a missing embedding cannot be kept until reembed
// recovers it; clearing the flag would strand an unfingerprinted record.
func resolveKeep(ctx context.Context, st *store.Store, id string) error {
	record, err := st.Get(ctx, id)
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("task %s not found", id)
	}
	if !record.NeedsReview {
		return fmt.Errorf("task %s is not flagged for review", id)
	}
	if record.Embedding == nil {
		return fmt.Errorf("task %s has no embedding; run 'taskmint reembed' first", id)
	}

	cleared := false
	reason := ""
	return st.Update(ctx, id, store.UpdateFields{
		NeedsReview:  &cleared,
		ReviewReason: &reason,
	})
}

// resolveMerge folds one ACTIVE task into another: the survivor is
// backfilled per the merge rules and the resolved task becomes MERGED.
func resolveMerge(ctx context.Context, st *store.Store, id, targetID string) error {
	if id == targetID {
		return fmt.Errorf("cannot merge a task into itself")
	}

	record, err := st.Get(ctx, id)
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("task %s not found", id)
	}
	if record.Status != types.StatusActive {
		return fmt.Errorf("task %s is %s; only ACTIVE tasks can be merged", id, record.Status)
	}

	target, err := st.Get(ctx, targetID)
	if err != nil {
		return err
	}
	if target == nil {
		return fmt.Errorf("target task %s not found", targetID)
	}
	if target.Status != types.StatusActive {
		return fmt.Errorf("target task %s is %s; the surviving task must be ACTIVE", targetID, target.Status)
	}

	patch, _ := dedup.Merge(target, candidateFromRecord(record))
	if !patch.Empty() {
		fields := store.UpdateFields{
			DueDate:        patch.DueDate,
			EstimatedHours: patch.EstimatedHours,
		}
		if err := st.Update(ctx, targetID, fields); err != nil {
			return fmt.Errorf("failed to refresh %s: %w", targetID, err)
		}
	}

	merged := types.StatusMerged
	cleared := false
	reason := ""
	return st.Update(ctx, id, store.UpdateFields{
		Status:       &merged,
		MergedInto:   &targetID,
		NeedsReview:  &cleared,
		ReviewReason: &reason,
	})
}

// resolveArchive retires an ACTIVE task without merging it anywhere.
func resolveArchive(ctx context.Context, st *store.Store, id string) error {
	record, err := st.Get(ctx, id)
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("task %s not found", id)
	}
	if record.Status != types.StatusActive {
		return fmt.Errorf("task %s is %s; only ACTIVE tasks can be archived", id, record.Status)
	}

	archived := types.StatusArchived
	cleared := false
	reason := ""
	return st.Update(ctx, id, store.UpdateFields{
		Status:       &archived,
		NeedsReview:  &cleared,
		ReviewReason: &reason,
	})
}

// candidateFromRecord reshapes a record for the merge rules, which
// compare candidate fields against the surviving task.
func candidateFromRecord(record *types.TaskRecord) types.TaskCandidate {
	return types.TaskCandidate{
		Title:          record.Title,
		Priority:       record.Priority,
		DueDate:        record.DueDate,
		EstimatedHours: record.EstimatedHours,
		Source:         record.Source,
		Notes:          record.Notes,
		SourceText:     record.SourceText,
	}
}
