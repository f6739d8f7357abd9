package main

import (
	"time"

	"github.com/spf13/cobra"

	"recast/internal/engine"
	"recast/internal/semantic"
)

var (
	movetypeKind      string
	movetypePath      string
	movetypeLine      int
	movetypeNamespace string
	movetypePreview   bool
	movetypeFormat    string
)

var movetypeCmd = &cobra.Command{
	Use:   "movetype <type> <target-path>",
	Short: "Move a type declaration to another file",
	Long: `Move a top-level type declaration into another file, creating the
target if it does not exist. With --namespace the declaration is
rewritten into that namespace and using directives are adjusted where
the old namespace is no longer reachable.

Examples:
  recast movetype OrderService src/Billing/BillingService.cs
  recast movetype Order src/Domain/Order.cs --namespace Shop.Domain --preview`,
	Args: cobra.ExactArgs(2),
	Run:  runMoveType,
}

func init() {
	movetypeCmd.Flags().StringVar(&movetypeKind, "kind", "", "Narrow by kind (class, interface, struct, enum)")
	movetypeCmd.Flags().StringVar(&movetypePath, "path", "", "Narrow by declaring file")
	movetypeCmd.Flags().IntVar(&movetypeLine, "line", 0, "Narrow by declaration line")
	movetypeCmd.Flags().StringVar(&movetypeNamespace, "namespace", "", "Namespace for the moved declaration (default: keep)")
	movetypeCmd.Flags().BoolVar(&movetypePreview, "preview", false, "Show diffs without writing files")
	movetypeCmd.Flags().StringVar(&movetypeFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(movetypeCmd)
}

func runMoveType(cmd *cobra.Command, args []string) {
	start := time.Now()
	logger := newLogger(movetypeFormat)

	root := mustGetWorkspaceRoot()
	eng := mustGetEngine(root, logger)
	ctx := newContext()

	res := eng.MoveType(ctx, engine.MoveTypeParams{
		Target: semantic.Selector{
			Name: args[0],
			Kind: semantic.SymbolKind(movetypeKind),
			Path: movetypePath,
			Line: movetypeLine,
		},
		TargetPath:      args[1],
		TargetNamespace: movetypeNamespace,
		Preview:         movetypePreview,
	})
	emitResult(eng, res, movetypeFormat)

	logger.Debug("Move type completed", map[string]interface{}{
		"type":     args[0],
		"target":   args[1],
		"preview":  movetypePreview,
		"duration": time.Since(start).Milliseconds(),
	})
}
