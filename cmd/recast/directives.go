package main

import (
	"time"

	"github.com/spf13/cobra"

	"recast/internal/engine"
)

var (
	directivesMode    string
	directivesPreview bool
	directivesFormat  string
)

var directivesCmd = &cobra.Command{
	Use:   "directives <file>",
	Short: "Clean up a file's using directives",
	Long: `Reorganize, complete, or prune the using directives of one file.

Modes:
  organize       - Sort directives (System first), dropping duplicates
  add-missing    - Add directives for namespaces the file references
  remove-unused  - Remove directives nothing in the file uses

Examples:
  recast directives src/Orders/OrderService.cs
  recast directives src/Orders/OrderService.cs --mode remove-unused --preview`,
	Args: cobra.ExactArgs(1),
	Run:  runDirectives,
}

func init() {
	directivesCmd.Flags().StringVar(&directivesMode, "mode", "organize", "Cleanup mode (organize, add-missing, remove-unused)")
	directivesCmd.Flags().BoolVar(&directivesPreview, "preview", false, "Show diffs without writing files")
	directivesCmd.Flags().StringVar(&directivesFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(directivesCmd)
}

func runDirectives(cmd *cobra.Command, args []string) {
	start := time.Now()
	logger := newLogger(directivesFormat)

	root := mustGetWorkspaceRoot()
	eng := mustGetEngine(root, logger)
	ctx := newContext()

	res := eng.Directives(ctx, engine.DirectivesParams{
		Path:    args[0],
		Mode:    engine.DirectivesMode(directivesMode),
		Preview: directivesPreview,
	})
	emitResult(eng, res, directivesFormat)

	logger.Debug("Directives cleanup completed", map[string]interface{}{
		"path":     args[0],
		"mode":     directivesMode,
		"preview":  directivesPreview,
		"duration": time.Since(start).Milliseconds(),
	})
}
