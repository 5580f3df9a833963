package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.jobboard/config.toml.
type Config struct {
	DefaultProfile string `toml:"default_profile"`
	// RemoteDSN selects the remote document store (memory://, postgres://,
	// s3://). Empty runs the profile offline.
	RemoteDSN      string        `toml:"remote_dsn"`
	ProbeAddress   string        `toml:"probe_address"`
	ProbeTimeout   time.Duration `toml:"probe_timeout"`
	ProbeInterval  time.Duration `toml:"probe_interval"`
	PollInterval   time.Duration `toml:"poll_interval"`
	OutboxInterval time.Duration `toml:"outbox_interval"`
	LogLevel       string        `toml:"log_level"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		DefaultProfile: "main",
		ProbeAddress:   "1.1.1.1:443",
		ProbeTimeout:   2 * time.Second,
		ProbeInterval:  5 * time.Second,
		PollInterval:   15 * time.Second,
		OutboxInterval: 500 * time.Millisecond,
		LogLevel:       "info",
	}
}

// Load reads config from the given path. Fields missing from the file keep
// their defaults. Returns an error if the file is missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.fill()
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields Default.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// fill replaces zero values written explicitly in the file.
func (c *Config) fill() {
	d := Default()
	if c.DefaultProfile == "" {
		c.DefaultProfile = d.DefaultProfile
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = d.ProbeTimeout
	}
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = d.ProbeInterval
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.OutboxInterval <= 0 {
		c.OutboxInterval = d.OutboxInterval
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
