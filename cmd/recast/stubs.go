package main

import (
	"time"

	"github.com/spf13/cobra"

	"recast/internal/engine"
	"recast/internal/semantic"
)

var (
	stubsInterface string
	stubsPath      string
	stubsLine      int
	stubsPreview   bool
	stubsFormat    string
)

var stubsCmd = &cobra.Command{
	Use:   "stubs <type>",
	Short: "Generate stubs for unimplemented interface members",
	Long: `Generate member stubs for the interface members a type declares but
does not implement. Each stub throws NotImplementedException. With
--interface only members of that interface are generated.

Examples:
  recast stubs OrderService
  recast stubs OrderService --interface IDisposable --preview`,
	Args: cobra.ExactArgs(1),
	Run:  runStubs,
}

func init() {
	stubsCmd.Flags().StringVar(&stubsInterface, "interface", "", "Only generate members of this interface")
	stubsCmd.Flags().StringVar(&stubsPath, "path", "", "Narrow by declaring file")
	stubsCmd.Flags().IntVar(&stubsLine, "line", 0, "Narrow by declaration line")
	stubsCmd.Flags().BoolVar(&stubsPreview, "preview", false, "Show diffs without writing files")
	stubsCmd.Flags().StringVar(&stubsFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(stubsCmd)
}

func runStubs(cmd *cobra.Command, args []string) {
	start := time.Now()
	logger := newLogger(stubsFormat)

	root := mustGetWorkspaceRoot()
	eng := mustGetEngine(root, logger)
	ctx := newContext()

	res := eng.Stubs(ctx, engine.StubsParams{
		Target: semantic.Selector{
			Name: args[0],
			Path: stubsPath,
			Line: stubsLine,
		},
		Interface: stubsInterface,
		Preview:   stubsPreview,
	})
	emitResult(eng, res, stubsFormat)

	logger.Debug("Stub generation completed", map[string]interface{}{
		"type":     args[0],
		"preview":  stubsPreview,
		"duration": time.Since(start).Milliseconds(),
	})
}
