package main

import (
	"time"

	"github.com/spf13/cobra"

	"recast/internal/engine"
)

var (
	inlineLine    int
	inlinePreview bool
	inlineFormat  string
)

var inlineCmd = &cobra.Command{
	Use:   "inline <file> <variable>",
	Short: "Inline a local variable",
	Long: `Replace every use of a local variable with its initializer expression
and remove the declaration. When the same name is declared more than
once in the file, --line selects which declaration to inline.

Examples:
  recast inline src/Orders/OrderService.cs subtotal
  recast inline src/Orders/OrderService.cs tmp --line 87 --preview`,
	Args: cobra.ExactArgs(2),
	Run:  runInline,
}

func init() {
	inlineCmd.Flags().IntVar(&inlineLine, "line", 0, "Declaration line when the name is declared more than once")
	inlineCmd.Flags().BoolVar(&inlinePreview, "preview", false, "Show diffs without writing files")
	inlineCmd.Flags().StringVar(&inlineFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(inlineCmd)
}

func runInline(cmd *cobra.Command, args []string) {
	start := time.Now()
	logger := newLogger(inlineFormat)

	root := mustGetWorkspaceRoot()
	eng := mustGetEngine(root, logger)
	ctx := newContext()

	res := eng.Inline(ctx, engine.InlineParams{
		Path:    args[0],
		Name:    args[1],
		Line:    inlineLine,
		Preview: inlinePreview,
	})
	emitResult(eng, res, inlineFormat)

	logger.Debug("Inline completed", map[string]interface{}{
		"path":     args[0],
		"name":     args[1],
		"preview":  inlinePreview,
		"duration": time.Since(start).Milliseconds(),
	})
}
