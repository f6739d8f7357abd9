package main

import (
	"time"

	"github.com/spf13/cobra"
)

var (
	statusFormat string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show workspace status",
	Long: `Display the health of the loaded workspace: snapshot version,
declaration counts, documents that failed to parse, and files whose
declared namespace does not match their folder location.`,
	Run: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	start := time.Now()
	logger := newLogger(statusFormat)

	root := mustGetWorkspaceRoot()
	eng := mustGetEngine(root, logger)
	ctx := newContext()

	res := eng.Status(ctx)
	emitResult(eng, res, statusFormat)

	logger.Debug("Status completed", map[string]interface{}{
		"duration": time.Since(start).Milliseconds(),
	})
}
