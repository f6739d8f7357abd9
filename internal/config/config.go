package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"recast/internal/paths"
)

// Config represents the complete recast configuration (v1 schema)
type Config struct {
	Version       int    `json:"version" mapstructure:"version"`
	WorkspaceRoot string `json:"workspaceRoot" mapstructure:"workspaceRoot"`

	Workspace  WorkspaceConfig  `json:"workspace" mapstructure:"workspace"`
	Transforms TransformsConfig `json:"transforms" mapstructure:"transforms"`
	History    HistoryConfig    `json:"history" mapstructure:"history"`
	Export     ExportConfig     `json:"export" mapstructure:"export"`
	Server     ServerConfig     `json:"server" mapstructure:"server"`
	Watcher    WatcherConfig    `json:"watcher" mapstructure:"watcher"`
	Logging    LoggingConfig    `json:"logging" mapstructure:"logging"`
}

// WorkspaceConfig controls which documents are loaded into a snapshot
type WorkspaceConfig struct {
	Include          []string `json:"include" mapstructure:"include"`
	Ignore           []string `json:"ignore" mapstructure:"ignore"`
	MaxFileSizeBytes int      `json:"maxFileSizeBytes" mapstructure:"maxFileSizeBytes"`
}

// TransformsConfig controls transformation behavior
type TransformsConfig struct {
	MaxReferences    int `json:"maxReferences" mapstructure:"maxReferences"`
	ParallelRewrites int `json:"parallelRewrites" mapstructure:"parallelRewrites"`
	IndentWidth      int `json:"indentWidth" mapstructure:"indentWidth"`
	MaxBlankLines    int `json:"maxBlankLines" mapstructure:"maxBlankLines"`
}

// HistoryConfig controls the operation journal
type HistoryConfig struct {
	Enabled     bool   `json:"enabled" mapstructure:"enabled"`
	MaxEntries  int    `json:"maxEntries" mapstructure:"maxEntries"`
	Compression string `json:"compression" mapstructure:"compression"`
}

// ExportConfig controls SCIP index export
type ExportConfig struct {
	IndexPath string `json:"indexPath" mapstructure:"indexPath"`
}

// ServerConfig contains HTTP server defaults
type ServerConfig struct {
	Bind        string `json:"bind" mapstructure:"bind"`
	Port        int    `json:"port" mapstructure:"port"`
	AuthEnabled bool   `json:"authEnabled" mapstructure:"authEnabled"`
}

// WatcherConfig contains file watcher configuration
type WatcherConfig struct {
	Enabled    bool `json:"enabled" mapstructure:"enabled"`
	DebounceMs int  `json:"debounceMs" mapstructure:"debounceMs"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version:       1,
		WorkspaceRoot: ".",
		Workspace: WorkspaceConfig{
			Include:          []string{"**/*.cs"},
			Ignore:           []string{"bin", "obj", ".git", "node_modules", paths.StateDirName},
			MaxFileSizeBytes: 2000000,
		},
		Transforms: TransformsConfig{
			MaxReferences:    10000,
			ParallelRewrites: 4,
			IndentWidth:      4,
			MaxBlankLines:    2,
		},
		History: HistoryConfig{
			Enabled:     true,
			MaxEntries:  1000,
			Compression: "zstd",
		},
		Export: ExportConfig{
			IndexPath: "index.scip",
		},
		Server: ServerConfig{
			Bind:        "localhost",
			Port:        9220,
			AuthEnabled: false,
		},
		Watcher: WatcherConfig{
			Enabled:    true,
			DebounceMs: 300,
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// LoadConfig loads configuration from .recast/config.json
func LoadConfig(workspaceRoot string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("version", 1)
	v.SetDefault("workspaceRoot", ".")

	// Configure viper
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(workspaceRoot, paths.StateDirName))

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		// If config doesn't exist, return default config
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	// Unmarshal into config struct, starting from defaults so that
	// partial config files only override what they set
	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to .recast/config.json
func (c *Config) Save(workspaceRoot string) error {
	if _, err := paths.EnsureStateDir(workspaceRoot); err != nil {
		return err
	}

	// Marshal to JSON with indentation
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	// Write to file
	return os.WriteFile(paths.ConfigPath(workspaceRoot), data, 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != 1 {
		return &ConfigError{Field: "version", Message: "unsupported config version"}
	}
	if c.Transforms.IndentWidth < 1 || c.Transforms.IndentWidth > 8 {
		return &ConfigError{Field: "transforms.indentWidth", Message: "must be between 1 and 8"}
	}
	if c.Transforms.ParallelRewrites < 1 {
		return &ConfigError{Field: "transforms.parallelRewrites", Message: "must be at least 1"}
	}
	switch c.History.Compression {
	case "", "none", "zstd":
	default:
		return &ConfigError{Field: "history.compression", Message: "must be 'none' or 'zstd'"}
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return &ConfigError{Field: "server.port", Message: "must be a valid TCP port"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
