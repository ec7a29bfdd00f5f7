// Package config reads the daemon's TOML configuration.
package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds the daemon's tunables. Zero fields are filled with
// defaults after decoding, so a partial file is fine.
type Config struct {
	DatabasePath  string `toml:"database_path"`
	ListenAddr    string `toml:"listen_addr"`
	AttributeName string `toml:"attribute_name"`

	PollTimeoutMS   int `toml:"poll_timeout_ms"`
	FlushIntervalMS int `toml:"flush_interval_ms"`
	ScanIntervalMS  int `toml:"scan_interval_ms"`
	QueueSize       int `toml:"queue_size"`

	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		DatabasePath:    "sweeper.db",
		ListenAddr:      ":8080",
		AttributeName:   "user.expire_at",
		PollTimeoutMS:   200,
		FlushIntervalMS: 100,
		ScanIntervalMS:  100,
		QueueSize:       1024,
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// Read decodes a Config from the provided reader and applies defaults.
func Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Load reads the config file at path. An empty path selects defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	cfg, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.DatabasePath == "" {
		c.DatabasePath = def.DatabasePath
	}
	if c.ListenAddr == "" {
		c.ListenAddr = def.ListenAddr
	}
	if c.AttributeName == "" {
		c.AttributeName = def.AttributeName
	}
	if c.PollTimeoutMS <= 0 {
		c.PollTimeoutMS = def.PollTimeoutMS
	}
	if c.FlushIntervalMS <= 0 {
		c.FlushIntervalMS = def.FlushIntervalMS
	}
	if c.ScanIntervalMS <= 0 {
		c.ScanIntervalMS = def.ScanIntervalMS
	}
	if c.QueueSize <= 0 {
		c.QueueSize = def.QueueSize
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = def.LogFormat
	}
}

// PollTimeout is how long one capture poll blocks before rechecking the
// cancellation flag.
func (c *Config) PollTimeout() time.Duration {
	return time.Duration(c.PollTimeoutMS) * time.Millisecond
}

// FlushInterval is the persistence loop's wait between queue polls.
func (c *Config) FlushInterval() time.Duration {
	return time.Duration(c.FlushIntervalMS) * time.Millisecond
}

// ScanInterval is the cleanup loop's wait between due-record scans.
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.ScanIntervalMS) * time.Millisecond
}
