package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-test/deep"
	"github.com/sirupsen/logrus"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "vault")
	t.Setenv(EnvDataDir, dir)
	t.Setenv(EnvLogLevel, "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := Default()
	want.DataDir = dir
	if diff := deep.Equal(cfg, want); diff != nil {
		t.Error(diff)
	}
	if cfg.RecordsPath() != filepath.Join(dir, "records.db") {
		t.Errorf("unexpected records path %s", cfg.RecordsPath())
	}
}

func TestLoadExplicitMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for explicit missing config")
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv(EnvDataDir, "")
	t.Setenv(EnvLogLevel, "")

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
data_dir = "/var/lib/coachvault"
kdf_iterations = 250000
log_level = "debug"

[keyring]
service = "coach-test"
device_keys = true
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := &Config{
		DataDir:       "/var/lib/coachvault",
		KDFIterations: 250000,
		LogLevel:      "debug",
		Keyring:       KeyringConfig{Service: "coach-test", DeviceKeys: true},
	}
	if diff := deep.Equal(cfg, want); diff != nil {
		t.Error(diff)
	}
	if cfg.Level() != logrus.DebugLevel {
		t.Errorf("level: got %v", cfg.Level())
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("data_dir = \"a\"\nlog_level = \"warn\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvDataDir, "b")
	t.Setenv(EnvLogLevel, "error")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DataDir != "b" || cfg.LogLevel != "error" {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty data dir", func(c *Config) { c.DataDir = " " }},
		{"low iterations", func(c *Config) { c.KDFIterations = 1000 }},
		{"bad log level", func(c *Config) { c.LogLevel = "chatty" }},
		{"empty service", func(c *Config) { c.Keyring.Service = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}

	if err := Default().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv(EnvDataDir, "")
	t.Setenv(EnvLogLevel, "")

	path := filepath.Join(t.TempDir(), "nested", FileName)
	cfg := Default()
	cfg.KDFIterations = 150000
	cfg.Keyring.DeviceKeys = true
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := deep.Equal(loaded, cfg); diff != nil {
		t.Error(diff)
	}
}
