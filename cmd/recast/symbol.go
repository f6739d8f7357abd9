package main

import (
	"time"

	"github.com/spf13/cobra"

	"recast/internal/semantic"
)

var (
	symbolKind   string
	symbolPath   string
	symbolLine   int
	symbolFormat string
)

var symbolCmd = &cobra.Command{
	Use:   "symbol <name>",
	Short: "Look up a declaration by name",
	Long: `Look up a single declaration by name. Ambiguous names can be narrowed
with --kind, --path, and --line until exactly one declaration matches.

Examples:
  recast symbol OrderService
  recast symbol Total --kind property
  recast symbol Process --path src/Orders/OrderService.cs --line 42`,
	Args: cobra.ExactArgs(1),
	Run:  runSymbol,
}

func init() {
	symbolCmd.Flags().StringVar(&symbolKind, "kind", "", "Narrow by kind (class, interface, struct, enum, method, property, field)")
	symbolCmd.Flags().StringVar(&symbolPath, "path", "", "Narrow by declaring file")
	symbolCmd.Flags().IntVar(&symbolLine, "line", 0, "Narrow by declaration line")
	symbolCmd.Flags().StringVar(&symbolFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(symbolCmd)
}

func runSymbol(cmd *cobra.Command, args []string) {
	start := time.Now()
	logger := newLogger(symbolFormat)

	root := mustGetWorkspaceRoot()
	eng := mustGetEngine(root, logger)
	ctx := newContext()

	res := eng.Symbol(ctx, semantic.Selector{
		Name: args[0],
		Kind: semantic.SymbolKind(symbolKind),
		Path: symbolPath,
		Line: symbolLine,
	})
	emitResult(eng, res, symbolFormat)

	logger.Debug("Symbol lookup completed", map[string]interface{}{
		"name":     args[0],
		"duration": time.Since(start).Milliseconds(),
	})
}
