package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"

	"github.com/illarion/coachvault/internal/crypto"
	"github.com/illarion/coachvault/internal/keyring"
)

const (
	// FileName is the config file looked up inside the data directory
	FileName = "config.toml"

	DefaultDataDir  = ".coachvault"
	DefaultLogLevel = "info"

	EnvDataDir  = "COACHVAULT_DATA_DIR"
	EnvLogLevel = "COACHVAULT_LOG_LEVEL"
)

// ErrInvalidConfig is returned by Validate
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the tunable settings of a vault
type Config struct {
	DataDir       string        `toml:"data_dir"`
	KDFIterations int           `toml:"kdf_iterations"`
	LogLevel      string        `toml:"log_level"`
	Keyring       KeyringConfig `toml:"keyring"`
}

// KeyringConfig controls use of the OS keyring
type KeyringConfig struct {
	Service    string `toml:"service"`
	DeviceKeys bool   `toml:"device_keys"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		DataDir:       DefaultDataDir,
		KDFIterations: crypto.DefaultIterations,
		LogLevel:      DefaultLogLevel,
		Keyring: KeyringConfig{
			Service: keyring.DefaultService,
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path means <data dir>/config.toml, and a
// missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if dir := os.Getenv(EnvDataDir); dir != "" {
		cfg.DataDir = dir
	}

	explicit := path != ""
	if !explicit {
		path = filepath.Join(cfg.DataDir, FileName)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if !errors.Is(err, os.ErrNotExist) || explicit {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if dir := os.Getenv(EnvDataDir); dir != "" {
		c.DataDir = dir
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		c.LogLevel = level
	}
}

// Validate checks the configuration for values the vault cannot run with
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("%w: data_dir is empty", ErrInvalidConfig)
	}
	if c.KDFIterations < crypto.DefaultIterations {
		return fmt.Errorf("%w: kdf_iterations must be at least %d", ErrInvalidConfig, crypto.DefaultIterations)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level: %w", ErrInvalidConfig, err)
	}
	if c.Keyring.Service == "" {
		return fmt.Errorf("%w: keyring.service is empty", ErrInvalidConfig)
	}
	return nil
}

// Level returns the parsed log level
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// RecordsPath returns the path of the encrypted record database
func (c *Config) RecordsPath() string {
	return filepath.Join(c.DataDir, "records.db")
}

// KeysPath returns the path of the salt and key database
func (c *Config) KeysPath() string {
	return filepath.Join(c.DataDir, "keys.db")
}

// Save writes the configuration as TOML to path
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer file.Close()

	return toml.NewEncoder(file).Encode(c)
}
