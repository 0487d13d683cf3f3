package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Shortener.MaxURLLength != 2048 {
		t.Errorf("MaxURLLength = %d, want 2048", cfg.Shortener.MaxURLLength)
	}
	if cfg.Shortener.Validity() != 30*24*time.Hour {
		t.Errorf("Validity() = %v, want 720h", cfg.Shortener.Validity())
	}
	if cfg.RateLimit.Limit != 10 || cfg.RateLimit.Window != time.Minute {
		t.Errorf("RateLimit = %+v, want 10 per 1m", cfg.RateLimit)
	}
	if cfg.Shortener.APIVersion != "v1" {
		t.Errorf("APIVersion = %q, want v1", cfg.Shortener.APIVersion)
	}
	if cfg.IDAllocator.MaxWait != 5*time.Second {
		t.Errorf("IDAllocator.MaxWait = %v, want 5s", cfg.IDAllocator.MaxWait)
	}
	if cfg.Shortener.CreationLeaseTTL <= cfg.IDAllocator.MaxWait {
		t.Errorf("CreationLeaseTTL = %v, must exceed IDAllocator.MaxWait %v", cfg.Shortener.CreationLeaseTTL, cfg.IDAllocator.MaxWait)
	}
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
server:
  port: 9090
shortener:
  validity_days: 7
rate_limit:
  window: 30s
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("DATABASE_URL", "postgres://user:pass@db:5432/shortr?sslmode=disable")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")
	t.Setenv("SHORTENER_MAX_URL_LENGTH", "512")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Shortener.ValidityDays != 7 {
		t.Errorf("ValidityDays = %d, want 7", cfg.Shortener.ValidityDays)
	}
	if cfg.RateLimit.Window != 30*time.Second {
		t.Errorf("RateLimit.Window = %v, want 30s", cfg.RateLimit.Window)
	}
	if cfg.Database.URL != "postgres://user:pass@db:5432/shortr?sslmode=disable" {
		t.Errorf("Database.URL = %q", cfg.Database.URL)
	}
	if cfg.Cache.URL != "redis://cache:6379/1" {
		t.Errorf("Cache.URL = %q", cfg.Cache.URL)
	}
	if cfg.Shortener.MaxURLLength != 512 {
		t.Errorf("MaxURLLength = %d, want 512", cfg.Shortener.MaxURLLength)
	}
}

func TestLoad_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed config, got nil")
	}
}
