package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DriverSQLite = "sqlite"
	DriverFile   = "file"

	EnvBackendURL = "PDFCHAT_BACKEND_URL"
	EnvLogLevel   = "PDFCHAT_LOG_LEVEL"
)

type BackendConfig struct {
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
	MaxChunks int           `yaml:"max_chunks"`
	Offline   bool          `yaml:"offline"` // never contact the backend
}

type StorageConfig struct {
	Driver string `yaml:"driver"` // sqlite | file
	Path   string `yaml:"path"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // trace|debug|info|warn|error
	Format string `yaml:"format"` // json|console
	File   string `yaml:"file"`
}

type Config struct {
	Backend BackendConfig `yaml:"backend"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads path (if it exists), applies env overrides and defaults.
// A missing file is not an error unless required is set.
func Load(path string, required bool) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist) && !required:
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if v := os.Getenv(EnvBackendURL); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = "http://127.0.0.1:8000"
	}
	c.Backend.BaseURL = strings.TrimRight(c.Backend.BaseURL, "/")
	if c.Backend.Timeout <= 0 {
		c.Backend.Timeout = 30 * time.Second
	}
	if c.Backend.MaxChunks <= 0 {
		c.Backend.MaxChunks = 5
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverSQLite
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid backend.base_url %q", c.Backend.BaseURL)
	}
	switch c.Storage.Driver {
	case DriverSQLite, DriverFile:
	default:
		return fmt.Errorf("unknown storage.driver %q (want %s or %s)", c.Storage.Driver, DriverSQLite, DriverFile)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("unknown log.format %q", c.Log.Format)
	}
	return nil
}

// Dir returns the per-user directory holding pdfchat's files.
func Dir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		homeDir, herr := os.UserHomeDir()
		if herr != nil {
			return "", err
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "pdfchat"), nil
}

// DefaultPath is where Load looks when no --config flag is given.
func DefaultPath() string {
	dir, err := Dir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(dir, "config.yaml")
}

// StoragePath resolves the snapshot location for the configured driver.
func (c *Config) StoragePath() (string, error) {
	if c.Storage.Path != "" {
		return c.Storage.Path, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	if c.Storage.Driver == DriverFile {
		return filepath.Join(dir, "chats.json"), nil
	}
	return filepath.Join(dir, "pdfchat.db"), nil
}

// LogPath resolves the log file used by the TUI.
func (c *Config) LogPath() (string, error) {
	if c.Log.File != "" {
		return c.Log.File, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "pdfchat.log"), nil
}
