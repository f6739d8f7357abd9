package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"recast/internal/history"
)

var (
	historyLimit   int
	historyOp      string
	historyOutcome string
	historyFormat  string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the operation journal",
	Long: `Show the operation journal, newest first. Every transformation and
query the engine ran in this workspace is recorded with its outcome,
touched file counts, and timing.

Examples:
  recast history
  recast history --limit 20
  recast history --op rename --outcome failed`,
	Run: runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 50, "Maximum number of entries")
	historyCmd.Flags().StringVar(&historyOp, "op", "", "Only show one operation kind (rename, inline, ...)")
	historyCmd.Flags().StringVar(&historyOutcome, "outcome", "", "Only show one outcome (succeeded, failed)")
	historyCmd.Flags().StringVar(&historyFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) {
	logger := newLogger(historyFormat)

	root := mustGetWorkspaceRoot()
	eng := mustGetEngine(root, logger)
	ctx := newContext()

	journal := eng.Journal()
	if journal == nil {
		fmt.Fprintln(os.Stderr, "Error: history is disabled in this workspace (history.enabled = false)")
		os.Exit(1)
	}

	entries, err := journal.List(ctx, historyLimit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading journal: %v\n", err)
		os.Exit(1)
	}

	filtered := make([]history.Entry, 0, len(entries))
	for _, e := range entries {
		if historyOp != "" && e.Operation != historyOp {
			continue
		}
		if historyOutcome == "succeeded" && !e.Succeeded {
			continue
		}
		if historyOutcome == "failed" && e.Succeeded {
			continue
		}
		filtered = append(filtered, e)
	}

	if historyFormat == "json" {
		printJSON(map[string]interface{}{
			"entries": filtered,
			"count":   len(filtered),
		})
		return
	}

	if len(filtered) == 0 {
		fmt.Println("No journal entries found.")
		return
	}

	fmt.Println("Operation Journal:")
	fmt.Println()
	fmt.Printf("  %-12s %-12s %-28s %-16s %-6s %-6s %s\n",
		"WHEN", "OPERATION", "TARGET", "RESULT", "FILES", "REFS", "ELAPSED")
	fmt.Printf("  %-12s %-12s %-28s %-16s %-6s %-6s %s\n",
		strings.Repeat("-", 12), strings.Repeat("-", 12), strings.Repeat("-", 28),
		strings.Repeat("-", 16), strings.Repeat("-", 6), strings.Repeat("-", 6), strings.Repeat("-", 7))

	for _, e := range filtered {
		target := e.Target
		if len(target) > 28 {
			target = target[:25] + "..."
		}

		result := "ok"
		switch {
		case !e.Succeeded:
			result = "FAIL " + e.ErrorCode
			if len(result) > 16 {
				result = result[:16]
			}
		case e.Preview:
			result = "preview"
		}

		files := e.FilesModified + e.FilesCreated + e.FilesDeleted

		fmt.Printf("  %-12s %-12s %-28s %-16s %-6d %-6d %dms\n",
			formatTimeAgo(e.CreatedAt), e.Operation, target, result, files, e.RefsUpdated, e.ElapsedMs)
	}
}
