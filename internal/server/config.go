package server

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"recast/internal/auth"
	"recast/internal/config"
	"recast/internal/paths"
)

// Config is the daemon configuration, read from .recast/server.toml.
// Keys absent from the file keep the workspace defaults.
type Config struct {
	Bind string             `toml:"bind"`
	Port int                `toml:"port"`
	Auth auth.ManagerConfig `toml:"auth"`
}

// LoadConfig builds the server configuration from the workspace
// defaults, overridden by .recast/server.toml when that file exists.
func LoadConfig(workspaceRoot string, defaults config.ServerConfig) (*Config, error) {
	cfg := &Config{
		Bind: defaults.Bind,
		Port: defaults.Port,
		Auth: auth.DefaultManagerConfig(),
	}
	cfg.Auth.Enabled = defaults.AuthEnabled

	path := paths.ServerConfigPath(workspaceRoot)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Bind, c.Port)
}
