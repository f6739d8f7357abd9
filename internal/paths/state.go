package paths

import (
	"os"
	"path/filepath"
)

const (
	// StateDirName is the per-workspace state directory
	StateDirName = ".recast"

	// ConfigFileName is the workspace configuration file inside the state dir
	ConfigFileName = "config.json"

	// HistoryDBFile is the journal of applied operations
	HistoryDBFile = "history.db"

	// ServerConfigFile configures the HTTP server
	ServerConfigFile = "server.toml"

	// AuthDBFile stores issued API keys for the HTTP server
	AuthDBFile = "auth.db"

	// DefaultExportFile is the default SCIP export target
	DefaultExportFile = "index.scip"
)

// StateDir returns the workspace state directory (<root>/.recast).
func StateDir(workspaceRoot string) string {
	return filepath.Join(workspaceRoot, StateDirName)
}

// EnsureStateDir creates the workspace state directory if missing.
func EnsureStateDir(workspaceRoot string) (string, error) {
	dir := StateDir(workspaceRoot)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// ConfigPath returns the workspace config file path.
func ConfigPath(workspaceRoot string) string {
	return filepath.Join(StateDir(workspaceRoot), ConfigFileName)
}

// HistoryDBPath returns the operation journal database path.
func HistoryDBPath(workspaceRoot string) string {
	return filepath.Join(StateDir(workspaceRoot), HistoryDBFile)
}

// ServerConfigPath returns the server configuration file path.
func ServerConfigPath(workspaceRoot string) string {
	return filepath.Join(StateDir(workspaceRoot), ServerConfigFile)
}

// AuthDBPath returns the API key database path.
func AuthDBPath(workspaceRoot string) string {
	return filepath.Join(StateDir(workspaceRoot), AuthDBFile)
}

// ExportPath resolves the SCIP export target. Relative configured paths are
// resolved against the workspace root; empty selects the default.
func ExportPath(workspaceRoot string, configured string) string {
	if configured == "" {
		return filepath.Join(workspaceRoot, DefaultExportFile)
	}
	if filepath.IsAbs(configured) {
		return configured
	}
	return filepath.Join(workspaceRoot, configured)
}
