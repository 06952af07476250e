package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "raidguard.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
log_level: debug
cooldown:
  duration_seconds: 3600
  log_actions: false
cleanup:
  enabled: true
  interval_minutes: 5
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Cooldown.DurationSeconds != 3600 {
		t.Fatalf("duration: %d", cfg.Cooldown.DurationSeconds)
	}
	if cfg.Cooldown.LogActions {
		t.Fatalf("log_actions should be false")
	}
	if cfg.Storage.Driver != "file" {
		t.Fatalf("default driver: %s", cfg.Storage.Driver)
	}
	if cfg.Persistence.SaveIntervalSeconds != 30 {
		t.Fatalf("default save interval: %d", cfg.Persistence.SaveIntervalSeconds)
	}
}

func TestLoadClampsNegativeDuration(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "cooldown:\n  duration_seconds: -5\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Cooldown.DurationSeconds != 0 {
		t.Fatalf("negative duration not clamped: %d", cfg.Cooldown.DurationSeconds)
	}
	if cfg.Cooldown.Duration() != 0 {
		t.Fatalf("zero duration should disable the cooldown")
	}
}

func TestValidateRejectsBadDriver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Driver = "redis"
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected driver error")
	}
}

func TestValidateRejectsBadBypassActor(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Bypass.Actors = []string{"not-a-uuid"}
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected bypass uuid error")
	}
}

func TestReloadFailureKeepsOldConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "cooldown:\n  duration_seconds: 100\n")
	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	if err := os.WriteFile(path, []byte("cooldown: [broken"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	if _, err := m.Reload(); err == nil {
		t.Fatalf("expected reload error")
	}
	if got := m.Get().Cooldown.DurationSeconds; got != 100 {
		t.Fatalf("old config lost after failed reload: %d", got)
	}
}
