package main

import (
	"time"

	"github.com/spf13/cobra"

	"recast/internal/engine"
)

var (
	fmtPreview bool
	fmtFormat  string
)

var fmtCmd = &cobra.Command{
	Use:   "fmt <file>",
	Short: "Normalize a file's whitespace",
	Long: `Normalize one file's whitespace: indentation is aligned to the
configured width, trailing spaces are stripped, blank-line runs are
capped, and the file ends with exactly one newline. String literals
and comments are never touched.

Examples:
  recast fmt src/Orders/OrderService.cs
  recast fmt src/Orders/OrderService.cs --preview`,
	Args: cobra.ExactArgs(1),
	Run:  runFmt,
}

func init() {
	fmtCmd.Flags().BoolVar(&fmtPreview, "preview", false, "Show diffs without writing files")
	fmtCmd.Flags().StringVar(&fmtFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(fmtCmd)
}

func runFmt(cmd *cobra.Command, args []string) {
	start := time.Now()
	logger := newLogger(fmtFormat)

	root := mustGetWorkspaceRoot()
	eng := mustGetEngine(root, logger)
	ctx := newContext()

	res := eng.Format(ctx, engine.FormatParams{
		Path:    args[0],
		Preview: fmtPreview,
	})
	emitResult(eng, res, fmtFormat)

	logger.Debug("Format completed", map[string]interface{}{
		"path":     args[0],
		"preview":  fmtPreview,
		"duration": time.Since(start).Milliseconds(),
	})
}
