package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tailscale/hujson"
)

// Config holds all configuration options.
type Config struct {
	ServerURL string `json:"server_url"`
	DataDir   string `json:"data_dir,omitempty"`

	// SyncIntervalSeconds is the periodic sync cadence for watch mode.
	SyncIntervalSeconds int `json:"sync_interval_seconds,omitempty"`

	// RequestTimeoutSeconds bounds each remote call.
	RequestTimeoutSeconds int `json:"request_timeout_seconds,omitempty"`

	// Storage selects the persistence adapter: "files" (default) or
	// "sqlite".
	Storage string `json:"storage,omitempty"`
}

// ConfigFileName is the project-local config file name.
const ConfigFileName = ".tasksync.json"

// Storage backends.
const (
	StorageFiles  = "files"
	StorageSQLite = "sqlite"
)

var errConfigInvalid = errors.New("invalid config file")

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		ServerURL:             "http://localhost:8585",
		SyncIntervalSeconds:   30,
		RequestTimeoutSeconds: 15,
		Storage:               StorageFiles,
	}
}

// SyncInterval returns the configured cadence as a duration.
func (c Config) SyncInterval() time.Duration {
	return time.Duration(c.SyncIntervalSeconds) * time.Second
}

// RequestTimeout returns the configured per-request bound as a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// globalConfigPath returns $XDG_CONFIG_HOME/tasksync/config.json, falling
// back to ~/.config/tasksync/config.json. Empty when no home can be found.
func globalConfigPath(env map[string]string) string {
	if xdg := env["XDG_CONFIG_HOME"]; xdg != "" {
		return filepath.Join(xdg, "tasksync", "config.json")
	}

	home, err := os.UserHomeDir()
	if err == nil {
		return filepath.Join(home, ".config", "tasksync", "config.json")
	}

	return ""
}

// LoadConfig loads configuration with the following precedence (highest
// wins): defaults, global user config, project config in workDir, explicit
// config file.
func LoadConfig(workDir, configPath string, env map[string]string) (Config, error) {
	cfg := DefaultConfig()

	if global := globalConfigPath(env); global != "" {
		loaded, err := loadConfigFile(global)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}

		if err == nil {
			cfg = mergeConfig(cfg, loaded)
		}
	}

	project := filepath.Join(workDir, ConfigFileName)

	loaded, err := loadConfigFile(project)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, err
	}

	if err == nil {
		cfg = mergeConfig(cfg, loaded)
	}

	if configPath != "" {
		loaded, err = loadConfigFile(configPath)
		if err != nil {
			return Config{}, err
		}

		cfg = mergeConfig(cfg, loaded)
	}

	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Join(workDir, ".tasksync")
	}

	if cfg.Storage != StorageFiles && cfg.Storage != StorageSQLite {
		return Config{}, fmt.Errorf("%w: unknown storage %q", errConfigInvalid, cfg.Storage)
	}

	return cfg, nil
}

// loadConfigFile reads one JWCC config file. Comments and trailing commas
// are allowed; the file is standardized before JSON decoding.
func loadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	std, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s: %v", errConfigInvalid, path, err)
	}

	var cfg Config

	err = json.Unmarshal(std, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s: %v", errConfigInvalid, path, err)
	}

	return cfg, nil
}

// mergeConfig overlays set fields of over onto base.
func mergeConfig(base, over Config) Config {
	if over.ServerURL != "" {
		base.ServerURL = over.ServerURL
	}

	if over.DataDir != "" {
		base.DataDir = over.DataDir
	}

	if over.SyncIntervalSeconds > 0 {
		base.SyncIntervalSeconds = over.SyncIntervalSeconds
	}

	if over.RequestTimeoutSeconds > 0 {
		base.RequestTimeoutSeconds = over.RequestTimeoutSeconds
	}

	if over.Storage != "" {
		base.Storage = over.Storage
	}

	return base
}
