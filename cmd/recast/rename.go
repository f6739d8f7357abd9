package main

import (
	"time"

	"github.com/spf13/cobra"

	"recast/internal/engine"
	"recast/internal/semantic"
)

var (
	renameKind    string
	renamePath    string
	renameLine    int
	renamePreview bool
	renameFormat  string
)

var renameCmd = &cobra.Command{
	Use:   "rename <name> <new-name>",
	Short: "Rename a declaration and every reference to it",
	Long: `Rename a declaration and rewrite every reference across the workspace.
Ambiguous names can be narrowed with --kind, --path, and --line.

With --preview the diffs are shown and nothing is written.

Examples:
  recast rename OrderService BillingService
  recast rename Total Subtotal --kind property --preview
  recast rename Process Handle --path src/Orders/OrderService.cs --line 42`,
	Args: cobra.ExactArgs(2),
	Run:  runRename,
}

func init() {
	renameCmd.Flags().StringVar(&renameKind, "kind", "", "Narrow by kind (class, interface, struct, enum, method, property, field)")
	renameCmd.Flags().StringVar(&renamePath, "path", "", "Narrow by declaring file")
	renameCmd.Flags().IntVar(&renameLine, "line", 0, "Narrow by declaration line")
	renameCmd.Flags().BoolVar(&renamePreview, "preview", false, "Show diffs without writing files")
	renameCmd.Flags().StringVar(&renameFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(renameCmd)
}

func runRename(cmd *cobra.Command, args []string) {
	start := time.Now()
	logger := newLogger(renameFormat)

	root := mustGetWorkspaceRoot()
	eng := mustGetEngine(root, logger)
	ctx := newContext()

	res := eng.Rename(ctx, engine.RenameParams{
		Target: semantic.Selector{
			Name: args[0],
			Kind: semantic.SymbolKind(renameKind),
			Path: renamePath,
			Line: renameLine,
		},
		NewName: args[1],
		Preview: renamePreview,
	})
	emitResult(eng, res, renameFormat)

	logger.Debug("Rename completed", map[string]interface{}{
		"name":     args[0],
		"newName":  args[1],
		"preview":  renamePreview,
		"duration": time.Since(start).Milliseconds(),
	})
}
