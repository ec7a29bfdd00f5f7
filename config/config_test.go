package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if cfg.DatabasePath != "sweeper.db" {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath)
	}
	if cfg.AttributeName != "user.expire_at" {
		t.Errorf("AttributeName = %q", cfg.AttributeName)
	}
	if cfg.PollTimeout() != 200*time.Millisecond {
		t.Errorf("PollTimeout() = %v", cfg.PollTimeout())
	}
	if cfg.QueueSize != 1024 {
		t.Errorf("QueueSize = %d", cfg.QueueSize)
	}
}

func TestReadAppliesDefaultsToMissingFields(t *testing.T) {
	cfg, err := Read(strings.NewReader(`
database_path = "/var/lib/sweeper/schedules.db"
scan_interval_ms = 250
`))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if cfg.DatabasePath != "/var/lib/sweeper/schedules.db" {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath)
	}
	if cfg.ScanInterval() != 250*time.Millisecond {
		t.Errorf("ScanInterval() = %v", cfg.ScanInterval())
	}
	// Unset fields fall back to defaults.
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.FlushInterval() != 100*time.Millisecond {
		t.Errorf("FlushInterval() = %v", cfg.FlushInterval())
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweeper.toml")
	content := `
attribute_name = "user.ttl"
log_format = "json"
queue_size = 16
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AttributeName != "user.ttl" {
		t.Errorf("AttributeName = %q", cfg.AttributeName)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q", cfg.LogFormat)
	}
	if cfg.QueueSize != 16 {
		t.Errorf("QueueSize = %d", cfg.QueueSize)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("Load() of a missing file succeeded, want error")
	}
}

func TestReadRejectsMalformedTOML(t *testing.T) {
	if _, err := Read(strings.NewReader("database_path = [broken")); err == nil {
		t.Error("Read() of malformed TOML succeeded, want error")
	}
}
