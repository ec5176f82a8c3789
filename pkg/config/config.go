// Package config loads the host-supplied settings every Lazarus core
// component reads at startup: data directory, backup retention, USB
// watcher cadence, log verbosity, and the zstd compression level used
// for note bodies.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ochichan/lazarus/pkg/lazerr"
	"github.com/ochichan/lazarus/pkg/log"
)

// Config is the top-level settings document, loaded from lazarus.yaml.
// Zero-valued fields are filled in by applyDefaults after parsing, so
// a minimal or even empty file is always usable.
type Config struct {
	DataDir            string `yaml:"data_dir"`
	BackupDir          string `yaml:"backup_dir"`
	BackupRetention    int    `yaml:"backup_retention"`
	UsbPollIntervalSec int    `yaml:"usb_poll_interval_seconds"`
	LogLevel           string `yaml:"log_level"`
	LogJSON            bool   `yaml:"log_json"`
	ZstdLevel          int    `yaml:"zstd_level"`
}

// Defaults mirror the values named throughout the component design:
// 3-backup retention, 5s USB polling, zstd level 3 for note bodies.
const (
	DefaultBackupRetention    = 3
	DefaultUsbPollIntervalSec = 5
	DefaultZstdLevel          = 3
	DefaultLogLevel           = "info"
)

func applyDefaults(c *Config) {
	if c.DataDir == "" {
		c.DataDir = "./lazarus-data"
	}
	if c.BackupDir == "" {
		c.BackupDir = "./lazarus-data/backups"
	}
	if c.BackupRetention == 0 {
		c.BackupRetention = DefaultBackupRetention
	}
	if c.UsbPollIntervalSec == 0 {
		c.UsbPollIntervalSec = DefaultUsbPollIntervalSec
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.ZstdLevel == 0 {
		c.ZstdLevel = DefaultZstdLevel
	}
}

// Load reads and parses a YAML config file at path, applying defaults
// to any field the file leaves zero-valued. A missing file is a
// ConfigLoad error; malformed YAML is ConfigInvalid.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, lazerr.Wrap(lazerr.ConfigLoad, "config file not found: "+path, err)
		}
		return nil, lazerr.Wrap(lazerr.Io, "reading config file", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, lazerr.Wrap(lazerr.ConfigInvalid, "parsing config YAML", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns a fully defaulted Config, used by callers (and
// tests) that have no config file on disk.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// LogConfig converts the config's logging fields to a log.Config.
func (c *Config) LogConfig() log.Config {
	var level log.Level
	switch c.LogLevel {
	case "debug":
		level = log.DebugLevel
	case "warn":
		level = log.WarnLevel
	case "error":
		level = log.ErrorLevel
	default:
		level = log.InfoLevel
	}
	return log.Config{Level: level, JSONOutput: c.LogJSON}
}
