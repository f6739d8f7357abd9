package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// Check version
	if cfg.Version != 1 {
		t.Errorf("Version = %d, want 1", cfg.Version)
	}

	// Check workspace defaults
	if len(cfg.Workspace.Include) == 0 {
		t.Error("Workspace.Include should not be empty")
	}
	if cfg.Workspace.MaxFileSizeBytes <= 0 {
		t.Error("MaxFileSizeBytes should be positive")
	}

	// State dir must always be ignored, otherwise the walker would
	// load the journal and config into the snapshot
	found := false
	for _, ig := range cfg.Workspace.Ignore {
		if ig == ".recast" {
			found = true
		}
	}
	if !found {
		t.Error("Workspace.Ignore should contain .recast")
	}

	// Check transform defaults
	if cfg.Transforms.IndentWidth != 4 {
		t.Errorf("IndentWidth = %d, want 4", cfg.Transforms.IndentWidth)
	}
	if cfg.Transforms.ParallelRewrites <= 0 {
		t.Error("ParallelRewrites should be positive")
	}

	// Check history defaults
	if !cfg.History.Enabled {
		t.Error("History should be enabled by default")
	}
	if cfg.History.Compression != "zstd" {
		t.Errorf("Compression = %q, want zstd", cfg.History.Compression)
	}

	// Check server defaults
	if cfg.Server.Port != 9220 {
		t.Errorf("Server.Port = %d, want 9220", cfg.Server.Port)
	}
	if cfg.Server.Bind != "localhost" {
		t.Errorf("Server.Bind = %q, want localhost", cfg.Server.Bind)
	}

	// Check logging defaults
	if cfg.Logging.Format != "human" {
		t.Errorf("Logging.Format = %q, want human", cfg.Logging.Format)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"version 0 unsupported", func(c *Config) { c.Version = 0 }, true},
		{"version 2 unsupported", func(c *Config) { c.Version = 2 }, true},
		{"indent width zero", func(c *Config) { c.Transforms.IndentWidth = 0 }, true},
		{"indent width nine", func(c *Config) { c.Transforms.IndentWidth = 9 }, true},
		{"indent width two ok", func(c *Config) { c.Transforms.IndentWidth = 2 }, false},
		{"parallel rewrites zero", func(c *Config) { c.Transforms.ParallelRewrites = 0 }, true},
		{"compression none ok", func(c *Config) { c.History.Compression = "none" }, false},
		{"compression empty ok", func(c *Config) { c.History.Compression = "" }, false},
		{"compression gzip rejected", func(c *Config) { c.History.Compression = "gzip" }, true},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, true},
		{"port too big", func(c *Config) { c.Server.Port = 70000 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			if tt.wantErr && err == nil {
				t.Error("Validate() should return an error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() returned unexpected error: %v", err)
			}
		})
	}
}

func TestLoadConfig_MissingFileReturnsDefaults(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "recast-config-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(tempDir) })

	cfg, err := LoadConfig(tempDir)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Version != 1 {
		t.Errorf("Version = %d, want 1", cfg.Version)
	}
	if cfg.Transforms.IndentWidth != 4 {
		t.Errorf("IndentWidth = %d, want 4", cfg.Transforms.IndentWidth)
	}
}

func TestLoadConfig_PartialFileKeepsDefaults(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "recast-config-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(tempDir) })

	configDir := filepath.Join(tempDir, ".recast")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}

	partial := `{
  "version": 1,
  "server": {"port": 8099}
}`
	if err := os.WriteFile(filepath.Join(configDir, "config.json"), []byte(partial), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadConfig(tempDir)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != 8099 {
		t.Errorf("Server.Port = %d, want 8099", cfg.Server.Port)
	}
	// Untouched sections keep their defaults
	if cfg.Transforms.IndentWidth != 4 {
		t.Errorf("IndentWidth = %d, want default 4", cfg.Transforms.IndentWidth)
	}
	if !cfg.History.Enabled {
		t.Error("History should keep its default enabled state")
	}
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "recast-config-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(tempDir) })

	configDir := filepath.Join(tempDir, ".recast")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.json"), []byte("{not json"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	if _, err := LoadConfig(tempDir); err == nil {
		t.Error("LoadConfig should fail on invalid JSON")
	}
}

func TestConfig_SaveRoundTrip(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "recast-config-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(tempDir) })

	cfg := DefaultConfig()
	cfg.Server.Port = 9999
	cfg.Logging.Level = "debug"

	if err := cfg.Save(tempDir); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Save must create the state dir itself
	if _, err := os.Stat(filepath.Join(tempDir, ".recast", "config.json")); err != nil {
		t.Fatalf("Config file was not written: %v", err)
	}

	loaded, err := LoadConfig(tempDir)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", loaded.Server.Port)
	}
	if loaded.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", loaded.Logging.Level)
	}
}

func TestConfigError(t *testing.T) {
	err := &ConfigError{Field: "server.port", Message: "must be a valid TCP port"}
	want := "config error in field 'server.port': must be a valid TCP port"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
