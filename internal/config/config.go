// Package config handles configuration loading from TOML files and environment variables.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration structure.
type Config struct {
	Client ClientConfig `toml:"client"`
	Server ServerConfig `toml:"server"`
}

// ClientConfig holds chat client settings.
type ClientConfig struct {
	ServerURL string `toml:"server_url"`
	UserID    int64  `toml:"user_id"`
}

// ServerConfig holds companion server settings.
type ServerConfig struct {
	Listen         string `toml:"listen"`
	DBPath         string `toml:"db_path"`
	MediaDir       string `toml:"media_dir"`
	MaxUploadBytes int64  `toml:"max_upload_bytes"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Client: ClientConfig{
			ServerURL: "http://localhost:5000",
			UserID:    0,
		},
		Server: ServerConfig{
			Listen:         ":5000",
			DBPath:         "",
			MediaDir:       "",
			MaxUploadBytes: 16 * 1024 * 1024,
		},
	}
}

// Load reads configuration from a TOML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	// Load from file if it exists
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, err
			}
		}
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PESAN_SERVER_URL"); v != "" {
		cfg.Client.ServerURL = v
	}

	if v := os.Getenv("PESAN_USER_ID"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Client.UserID = n
		}
	}

	if v := os.Getenv("PESAN_LISTEN"); v != "" {
		cfg.Server.Listen = v
	}

	if v := os.Getenv("PESAN_DB_PATH"); v != "" {
		cfg.Server.DBPath = v
	}

	if v := os.Getenv("PESAN_MEDIA_DIR"); v != "" {
		cfg.Server.MediaDir = v
	}

	if v := os.Getenv("PESAN_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Server.MaxUploadBytes = n
		}
	}
}

// DataDir returns the path to the pesan data directory (~/.pesan).
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".pesan"), nil
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}
