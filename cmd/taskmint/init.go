package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the task database",
	Long: `Create the task database file and schema.

The database lives at storage.path from the config file (or --db),
defaulting to ~/.taskmint/tasks.db. Running init against an existing
database is harmless.

Example:
  taskmint init
  taskmint init --db ./tasks.db`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		st, err := openStore(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to initialize database: %v\n", err)
			os.Exit(1)
		}
		_ = st.Close() // Ignore close error during initialization

		green := color.New(color.FgGreen).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s Initialized task database\n\n", green("✓"))
		fmt.Printf("  Database: %s\n", cyan(st.Path()))
		fmt.Println()
		fmt.Printf("%s Next steps:\n", gray("→"))
		fmt.Printf("  %s\n", gray("taskmint capture                 # Interactive capture shell"))
		fmt.Printf("  %s\n", gray("taskmint ingest notes.txt        # Batch-process a file"))
		fmt.Printf("  %s\n", gray("echo 'Call John re: report' | taskmint ingest"))
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
