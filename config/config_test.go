package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_ShippedFiles(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("STORE", "")
	cfg, err := Load("local", ".")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.Env != "local" {
		t.Fatalf("local overlay not applied: %+v", cfg)
	}
	if cfg.DB.SlowQueryThreshold != 50*time.Millisecond || cfg.DB.Port != 5432 {
		t.Fatalf("unexpected db config: %+v", cfg.DB)
	}
	if cfg.JWT.Secret != "test-secret" || cfg.DB.Password != "pw" {
		t.Fatalf("placeholders not substituted: jwt=%q db=%q", cfg.JWT.Secret, cfg.DB.Password)
	}
	if cfg.Breaker.Timeout != 5*time.Second || cfg.Breaker.FailureThreshold != 5 {
		t.Fatalf("unexpected breaker config: %+v", cfg.Breaker)
	}
	if cfg.Notify.DefaultDuration != 5*time.Second || cfg.Notify.DefaultPosition != "top-right" {
		t.Fatalf("unexpected notify config: %+v", cfg.Notify)
	}
	if cfg.Store != StorePostgres || cfg.Worker.MaxRetries != 5 || cfg.Worker.MetricsPort != "9100" {
		t.Fatalf("unexpected store/worker config: store=%s worker=%+v", cfg.Store, cfg.Worker)
	}
	if cfg.IdempotencyTTL() != 24*time.Hour {
		t.Fatalf("unexpected idempotency ttl %v", cfg.IdempotencyTTL())
	}
}

func TestLoad_DefaultsFillMissingSections(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "base.yaml"), []byte("db:\n  name: pf\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("STORE", "")
	cfg, err := Load("test", dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "8080" || cfg.Workflow.UpcomingDays != 7 || cfg.Breaker.SuccessThreshold != 2 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "base.yaml"), []byte("server:\n  port: \"8080\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("STORE", "memory")
	cfg, err := Load("test", dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store != StoreMemory {
		t.Fatalf("STORE not applied: %s", cfg.Store)
	}
	if cfg.Server.Port != "9090" || cfg.LogLevel != "warn" {
		t.Fatalf("env overrides not applied: port=%s level=%s", cfg.Server.Port, cfg.LogLevel)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Notify.DefaultPosition = "middle"
	cfg.Workflow.UpcomingDays = -1
	cfg.Store = "sqlite"
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"default_position", "upcoming_days", "sqlite"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}
