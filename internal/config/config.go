// Package config resolves warden's two configuration layers.
//
//   - Operator config (this file): data directory, listen port, path to the
//     security document. Set via env vars (WARDEN_*) or flags; has safe
//     defaults because it carries no security decisions.
//
//   - The security document (document.go): the warden.config.yaml file with
//     the security and secrets sections. It has NO defaults and its absence
//     is a hard error — a gatekeeper without its rules must refuse to gate.
package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Viper keys. Each maps to an env var with the WARDEN_ prefix
// (e.g. "data_dir" → WARDEN_DATA_DIR).
const (
	KeyDataDir    = "data_dir"
	KeyConfigPath = "config_path"
	KeyListenPort = "listen_port"
)

// DefaultConfigPath is where the security document is looked up when
// WARDEN_CONFIG_PATH is unset.
const DefaultConfigPath = "warden.config.yaml"

// DefaultListenPort is the serve-mode HTTP port.
const DefaultListenPort = 8377

// Config holds resolved operator-level settings for a warden process.
type Config struct {
	DataDir    string // Base directory for all state (~/.warden)
	ConfigPath string // Path to the security document
	ListenPort int    // serve-mode HTTP port
}

func init() {
	viper.SetEnvPrefix("WARDEN")
	viper.AutomaticEnv()
	viper.SetDefault(KeyConfigPath, DefaultConfigPath)
	viper.SetDefault(KeyListenPort, DefaultListenPort)
}

// Load reads operator configuration from viper (env vars merged with
// defaults).
func Load() *Config {
	return &Config{
		DataDir:    resolveDataDir(),
		ConfigPath: viper.GetString(KeyConfigPath),
		ListenPort: viper.GetInt(KeyListenPort),
	}
}

// RateLimitStorePath is the shared cross-process rate-limit store file.
func (c *Config) RateLimitStorePath() string {
	return filepath.Join(c.DataDir, "rate_limits.json")
}

// AuditDBPath is the SQLite decision log.
func (c *Config) AuditDBPath() string {
	return filepath.Join(c.DataDir, "audit.db")
}

// EnsureDataDir creates the data directory with owner-only permissions.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0o700)
}

func resolveDataDir() string {
	if dir := viper.GetString(KeyDataDir); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".warden"
	}
	return filepath.Join(home, ".warden")
}
