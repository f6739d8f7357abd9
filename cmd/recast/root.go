package main

import (
	"github.com/spf13/cobra"

	"recast/internal/version"
)

var (
	// workspaceFlag is the CLI --workspace flag value
	workspaceFlag string
)

var rootCmd = &cobra.Command{
	Use:   "recast",
	Short: "recast - C# workspace refactoring engine",
	Long: `recast is a source-level refactoring engine for C# workspaces. It loads
every document into an immutable snapshot, resolves declarations and
references across files, and applies transformations such as rename,
inline, encapsulate, and signature changes, with a preview mode that
shows the exact diffs before anything is written to disk.`,
	Version: version.Version,
}

func init() {
	rootCmd.SetVersionTemplate("recast version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&workspaceFlag, "workspace", "",
		"Workspace root directory (default: current directory)")
}
