package main

import (
	"time"

	"github.com/spf13/cobra"

	"recast/internal/semantic"
)

var (
	refsKind   string
	refsPath   string
	refsLine   int
	refsFormat string
)

var refsCmd = &cobra.Command{
	Use:   "refs <name>",
	Short: "Find all references to a symbol",
	Long: `Find every reference to a symbol across the workspace, grouped by
document. The result separates references inside the declaring type
from external ones, and reports how each reference was bound.

Examples:
  recast refs OrderService
  recast refs Total --kind property --path src/Orders/Order.cs`,
	Args: cobra.ExactArgs(1),
	Run:  runRefs,
}

func init() {
	refsCmd.Flags().StringVar(&refsKind, "kind", "", "Narrow by kind (class, interface, struct, enum, method, property, field)")
	refsCmd.Flags().StringVar(&refsPath, "path", "", "Narrow by declaring file")
	refsCmd.Flags().IntVar(&refsLine, "line", 0, "Narrow by declaration line")
	refsCmd.Flags().StringVar(&refsFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(refsCmd)
}

func runRefs(cmd *cobra.Command, args []string) {
	start := time.Now()
	logger := newLogger(refsFormat)

	root := mustGetWorkspaceRoot()
	eng := mustGetEngine(root, logger)
	ctx := newContext()

	res := eng.Refs(ctx, semantic.Selector{
		Name: args[0],
		Kind: semantic.SymbolKind(refsKind),
		Path: refsPath,
		Line: refsLine,
	})
	emitResult(eng, res, refsFormat)

	logger.Debug("Reference query completed", map[string]interface{}{
		"name":     args[0],
		"duration": time.Since(start).Milliseconds(),
	})
}
