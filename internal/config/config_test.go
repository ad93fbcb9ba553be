package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relay.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Server.Port != 3000 {
		t.Errorf("Port = %d, want 3000", cfg.Server.Port)
	}
	if cfg.Relay.HeartbeatInterval != 30*time.Second {
		t.Errorf("HeartbeatInterval = %s, want 30s", cfg.Relay.HeartbeatInterval)
	}
	if cfg.Relay.ReapInterval != 30*time.Minute || cfg.Relay.SessionRetention != 2*time.Hour {
		t.Errorf("Reap settings = %s/%s", cfg.Relay.ReapInterval, cfg.Relay.SessionRetention)
	}
	if cfg.Relay.SendQueueSize != 256 || cfg.Relay.ObserverQueueSize != 1024 {
		t.Errorf("Queue sizes = %d/%d", cfg.Relay.SendQueueSize, cfg.Relay.ObserverQueueSize)
	}
	if cfg.Storage.DBPath != ":memory:" || cfg.Storage.RecordDir != "" {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Defaults should validate: %v", err)
	}
	if cfg.Addr() != "0.0.0.0:3000" {
		t.Errorf("Addr = %s", cfg.Addr())
	}
}

func TestLoadPartialOverride(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8080
relay:
  session_retention: 90m
  max_artifact_bytes: 1048576
storage:
  record_dir: /tmp/records
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 || cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Relay.SessionRetention != 90*time.Minute {
		t.Errorf("SessionRetention = %s, want 90m", cfg.Relay.SessionRetention)
	}
	if cfg.Relay.HeartbeatInterval != 30*time.Second {
		t.Errorf("HeartbeatInterval should keep its default, got %s", cfg.Relay.HeartbeatInterval)
	}
	if cfg.Relay.MaxArtifactBytes != 1<<20 {
		t.Errorf("MaxArtifactBytes = %d", cfg.Relay.MaxArtifactBytes)
	}
	if cfg.Storage.RecordDir != "/tmp/records" {
		t.Errorf("RecordDir = %q", cfg.Storage.RecordDir)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad yaml", "server: [unclosed"},
		{"bad port", "server:\n  port: 70000\n"},
		{"zero heartbeat", "relay:\n  heartbeat_interval: 0s\n"},
		{"zero observer queue", "relay:\n  observer_queue_size: 0\n"},
		{"negative limit", "relay:\n  max_artifact_bytes: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.body)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("missing file should fall back to defaults: %v", err)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("Port = %d, want 3000", cfg.Server.Port)
	}

	if _, err := LoadOrDefault(""); err != nil {
		t.Errorf("empty path: %v", err)
	}

	if _, err := LoadOrDefault(writeConfig(t, "server: [")); err == nil {
		t.Error("broken file should still fail")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"PORT":       "4100",
		"DB_PATH":    "/var/lib/relay.db",
		"RECORD_DIR": "/var/lib/records",
	}
	cfg := Default()
	if err := cfg.applyEnv(func(k string) string { return env[k] }); err != nil {
		t.Fatalf("applyEnv: %v", err)
	}
	if cfg.Server.Port != 4100 || cfg.Storage.DBPath != "/var/lib/relay.db" || cfg.Storage.RecordDir != "/var/lib/records" {
		t.Errorf("env not applied: %+v", cfg)
	}

	cfg = Default()
	if err := cfg.applyEnv(func(k string) string {
		if k == "PORT" {
			return "abc"
		}
		return ""
	}); err == nil {
		t.Error("non-numeric PORT should fail")
	}
}

func TestApplyEnvFromProcess(t *testing.T) {
	t.Setenv("PORT", "5005")
	cfg := Default()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Server.Port != 5005 {
		t.Errorf("Port = %d, want 5005", cfg.Server.Port)
	}
}
