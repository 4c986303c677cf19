package config

import (
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Name != "reqtrace" {
		t.Errorf("expected Name=reqtrace, got %s", cfg.Name)
	}
	if cfg.Scan.Concurrency != 20 {
		t.Errorf("expected Concurrency=20, got %d", cfg.Scan.Concurrency)
	}
	if !cfg.Check.FailOnOrphans {
		t.Error("expected FailOnOrphans=true by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	// Ensure no env vars interfere
	t.Setenv("REQTRACE_WORKSPACE", "")
	t.Setenv("REQTRACE_LOG_LEVEL", "")
	t.Setenv("REQTRACE_DB", "")

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	cfg := DefaultConfig()
	cfg.Scan.Root = "/src/project"
	cfg.Check.MinCoverage = 0.8

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Scan.Root != "/src/project" {
		t.Errorf("expected Root=/src/project, got %s", loaded.Scan.Root)
	}
	if loaded.Check.MinCoverage != 0.8 {
		t.Errorf("expected MinCoverage=0.8, got %f", loaded.Check.MinCoverage)
	}
}

func TestConfig_LoadMissingReturnsDefaults(t *testing.T) {
	t.Setenv("REQTRACE_WORKSPACE", "")
	t.Setenv("REQTRACE_LOG_LEVEL", "")
	t.Setenv("REQTRACE_DB", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load of missing file should not error: %v", err)
	}
	if cfg.Name != "reqtrace" {
		t.Errorf("expected defaults, got Name=%s", cfg.Name)
	}
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("REQTRACE_WORKSPACE", "/tmp/ws")
	t.Setenv("REQTRACE_LOG_LEVEL", "debug")
	t.Setenv("REQTRACE_DB", "/tmp/trace.db")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	if cfg.Scan.Root != "/tmp/ws" {
		t.Errorf("expected Root=/tmp/ws, got %s", cfg.Scan.Root)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected Level=debug, got %s", cfg.Logging.Level)
	}
	if cfg.Store.DatabasePath != "/tmp/trace.db" {
		t.Errorf("expected DatabasePath=/tmp/trace.db, got %s", cfg.Store.DatabasePath)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scan.Concurrency = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for zero concurrency")
	}

	cfg = DefaultConfig()
	cfg.Check.MinCoverage = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for coverage > 1")
	}

	cfg = DefaultConfig()
	cfg.Requirements.Paths = nil
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for empty requirement paths")
	}

	cfg = DefaultConfig()
	cfg.Logging.Level = "loud"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for unknown log level")
	}
}

func TestConfig_DatabasePath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scan.Root = "/src/project"
	if got, want := cfg.DatabasePath(), filepath.Join("/src/project", ".reqtrace/trace.db"); got != want {
		t.Errorf("DatabasePath() = %s, want %s", got, want)
	}

	cfg.Store.DatabasePath = "/var/lib/trace.db"
	if got := cfg.DatabasePath(); got != "/var/lib/trace.db" {
		t.Errorf("absolute path should pass through, got %s", got)
	}
}
