// Package repl implements the interactive capture shell. Every line that
// is not a slash command runs through the extraction pipeline as a
// single-unit batch, so pasting an email body or typing a reminder
// becomes a dedup-checked task immediately.
package repl

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/taskmint/taskmint/internal/pipeline"
	"github.com/taskmint/taskmint/internal/render"
	"github.com/taskmint/taskmint/internal/store"
)

// REPL represents the interactive capture shell
type REPL struct {
	orch     *pipeline.Orchestrator
	store    *store.Store
	rl       *readline.Instance
	ctx      context.Context
	commands map[string]CommandHandler
}

// CommandHandler handles a specific slash command
type CommandHandler func(args []string) error

// Config holds REPL configuration
type Config struct {
	Orchestrator *pipeline.Orchestrator
	Store        *store.Store
}

// New creates a new REPL instance
func New(cfg *Config) (*REPL, error) {
	if cfg.Orchestrator == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}

	r := &REPL{
		orch:     cfg.Orchestrator,
		store:    cfg.Store,
		commands: make(map[string]CommandHandler),
	}

	// Register built-in commands
	r.registerCommands()

	return r, nil
}

// Run starts the REPL loop
func (r *REPL) Run(ctx context.Context) error {
	r.ctx = ctx

	cyan := color.New(color.FgCyan).SprintFunc()
	prompt := cyan("taskmint> ")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            prompt,
		HistoryFile:       "", // in-memory history
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	r.rl = rl

	r.printWelcome()

	// Main loop
	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				// Ctrl+C - just show prompt again
				continue
			} else if err == io.EOF {
				// Ctrl+D - exit
				fmt.Println("\nGoodbye!")
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if err := r.processInput(line); err != nil {
			if err == io.EOF {
				// Quit command - graceful shutdown
				return nil
			}
			red := color.New(color.FgRed).SprintFunc()
			fmt.Printf("%s %v\n", red("Error:"), err)
		}
	}
}

// processInput processes a single line of input: slash commands are
// dispatched, everything else is captured as task text.
func (r *REPL) processInput(line string) error {
	if strings.HasPrefix(line, "/") {
		parts := strings.Fields(line)
		command := parts[0]
		args := parts[1:]

		if handler, ok := r.commands[command]; ok {
			return handler(args)
		}
		return fmt.Errorf("unknown command %s (try /help)", command)
	}

	return r.ingest(line)
}

// ingest runs one unit of text through the pipeline and prints the
// outcome for each extracted candidate.
func (r *REPL) ingest(text string) error {
	outcomes := r.orch.ProcessBatch(r.ctx, []string{text})
	for _, outcome := range outcomes {
		fmt.Println(render.OutcomeLine(outcome))
	}
	return nil
}

// registerCommands registers all built-in slash commands
func (r *REPL) registerCommands() {
	r.commands["/help"] = r.cmdHelp
	r.commands["/?"] = r.cmdHelp
	r.commands["/paste"] = r.cmdPaste
	r.commands["/recent"] = r.cmdRecent
	r.commands["/review"] = r.cmdReview
	r.commands["/stats"] = r.cmdStats
	r.commands["/quit"] = r.cmdQuit
	r.commands["/exit"] = r.cmdQuit
}

// printWelcome prints the welcome message
func (r *REPL) printWelcome() {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Printf("\n%s\n", cyan("taskmint capture"))
	fmt.Println("Type anything to turn it into tasks; duplicates are folded in automatically.")
	fmt.Println()
	fmt.Println("Use /paste for multi-line input, /help for commands, /quit to leave")
	fmt.Println()
}

// cmdHelp shows help information
func (r *REPL) cmdHelp(args []string) error {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("\n%s\n\n", cyan("Available Commands:"))

	commands := []struct {
		name string
		desc string
	}{
		{"/paste", "Capture a multi-line block (finish with an empty line)"},
		{"/recent [n]", "Show the n most recent tasks (default 10)"},
		{"/review", "Show tasks waiting for human review"},
		{"/stats", "Show corpus counts"},
		{"/help, /?", "Show this help message"},
		{"/quit, /exit", "Exit the capture shell"},
	}
	for _, cmd := range commands {
		fmt.Printf("  %-14s %s\n", green(cmd.name), cmd.desc)
	}

	fmt.Println()
	fmt.Println("Anything else you type is treated as raw text to extract tasks from:")
	fmt.Println("  'Call John about the report by Friday'")
	fmt.Println("  'Don't forget the dentist on the 12th'")
	fmt.Println()

	return nil
}

// cmdPaste captures a multi-line block, terminated by an empty line,
// and processes it as a single input unit.
func (r *REPL) cmdPaste(args []string) error {
	gray := color.New(color.FgHiBlack).SprintFunc()
	fmt.Println(gray("Paste or type the block; finish with an empty line."))

	cyan := color.New(color.FgCyan).SprintFunc()
	r.rl.SetPrompt(gray("... "))
	defer r.rl.SetPrompt(cyan("taskmint> "))

	var lines []string
	for {
		line, err := r.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				fmt.Println(gray("(canceled)"))
				return nil
			}
			return err
		}
		if strings.TrimSpace(line) == "" {
			break
		}
		lines = append(lines, line)
	}

	block := strings.Join(lines, "\n")
	if strings.TrimSpace(block) == "" {
		return nil
	}
	return r.ingest(block)
}

// cmdRecent lists the most recently created tasks
func (r *REPL) cmdRecent(args []string) error {
	limit := parseLimit(args, 10)
	records, err := r.store.ListRecent(r.ctx, limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Printf("%s\n", gray("No tasks yet"))
		return nil
	}
	for _, record := range records {
		fmt.Println(render.Line(record))
	}
	return nil
}

// cmdReview lists tasks flagged for human review
func (r *REPL) cmdReview(args []string) error {
	records, err := r.store.ListNeedsReview(r.ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Nothing waiting for review\n", green("✓"))
		return nil
	}
	gray := color.New(color.FgHiBlack).SprintFunc()
	for _, record := range records {
		fmt.Println(render.Line(record))
		if record.ReviewReason != "" {
			fmt.Printf("    %s\n", gray(record.ReviewReason))
		}
	}
	fmt.Println()
	fmt.Println(gray("Resolve with: taskmint resolve <id> --keep | --merge-into <id> | --archive"))
	return nil
}

// cmdStats shows corpus counts
func (r *REPL) cmdStats(args []string) error {
	stats, err := r.store.Stats(r.ctx)
	if err != nil {
		return err
	}
	yellow := color.New(color.FgYellow).SprintFunc()
	fmt.Printf("\n%s\n", yellow("Tasks:"))
	fmt.Printf("  Active:   %d\n", stats.ActiveTasks)
	fmt.Printf("  Merged:   %d\n", stats.MergedTasks)
	fmt.Printf("  Archived: %d\n", stats.ArchivedTasks)
	fmt.Printf("  Review:   %d\n", stats.NeedsReview)
	if stats.Unembedded > 0 {
		fmt.Printf("  Missing fingerprints: %d (run 'taskmint reembed')\n", stats.Unembedded)
	}
	fmt.Println()
	return nil
}

// cmdQuit exits the REPL
func (r *REPL) cmdQuit(args []string) error {
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("\n%s Goodbye!\n", green("✓"))
	r.rl.Close()
	return io.EOF // Signal to exit the loop
}

// parseLimit reads an optional positive count argument, falling back
// when absent or unparseable.
func parseLimit(args []string, fallback int) int {
	if len(args) == 0 {
		return fallback
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
