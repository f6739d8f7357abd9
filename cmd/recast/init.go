package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"recast/internal/config"
	"recast/internal/logging"
	"recast/internal/paths"
)

var (
	initForce bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize recast configuration",
	Long:  "Creates a .recast/ directory with default configuration in the workspace root",
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Force reinitialization (removes existing .recast directory)")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	logger := logging.NewLogger(logging.Config{
		Format: logging.HumanFormat,
		Level:  logging.InfoLevel,
	})

	root, err := getWorkspaceRoot()
	if err != nil {
		return err
	}

	stateDir := paths.StateDir(root)
	if _, statErr := os.Stat(stateDir); statErr == nil {
		if !initForce {
			// Idempotent behavior: already initialized is success (CI-friendly)
			fmt.Println("recast already initialized.")
			fmt.Printf("Configuration at: %s\n", paths.ConfigPath(root))
			fmt.Println("\nRun 'recast init --force' to reinitialize.")
			return nil
		}
		if removeErr := os.RemoveAll(stateDir); removeErr != nil {
			return fmt.Errorf("failed to remove existing %s directory: %w", paths.StateDirName, removeErr)
		}
		logger.Info("Removed existing state directory", map[string]interface{}{
			"path": stateDir,
		})
	}

	cfg := config.DefaultConfig()
	cfg.WorkspaceRoot = "."
	if err := cfg.Save(root); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	logger.Info("recast initialized", map[string]interface{}{
		"configPath": paths.ConfigPath(root),
	})

	fmt.Println("recast initialized successfully!")
	fmt.Printf("Configuration written to: %s\n", paths.ConfigPath(root))
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Run 'recast status' to check the workspace loads cleanly")
	fmt.Println("  2. Run 'recast symbol <name>' to look up a declaration")

	return nil
}
