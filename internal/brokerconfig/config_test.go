package brokerconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadWithoutFileReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def := Default()
	if cfg != def {
		t.Fatalf("expected default config, got %+v", cfg)
	}
}

func TestLoadReadsYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := "admin_addr: 0.0.0.0:9999\nmetrics_enabled: false\nlog_level: debug\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AdminAddr != "0.0.0.0:9999" {
		t.Fatalf("expected admin_addr override, got %q", cfg.AdminAddr)
	}
	if cfg.MetricsEnabled {
		t.Fatalf("expected metrics_enabled override to false")
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected log_level override, got %q", cfg.LogLevel)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("admin_addr: 0.0.0.0:9999\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("MEDIABROKER_ADMIN_ADDR", "10.0.0.1:1234")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AdminAddr != "10.0.0.1:1234" {
		t.Fatalf("expected env override, got %q", cfg.AdminAddr)
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("expected defaults when config file is missing, got %+v", cfg)
	}
}
