package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8081" {
		t.Errorf("port: got %q, want 8081", cfg.Port)
	}
	if cfg.SplitSessionTTL != 30*time.Minute {
		t.Errorf("ttl: got %s, want 30m", cfg.SplitSessionTTL)
	}
	if cfg.MigrateOnStart {
		t.Error("migrations should be off by default")
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "http://localhost:3000" {
		t.Errorf("cors: got %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "9000")
	t.Setenv("MIGRATE_ON_START", "true")
	t.Setenv("SPLIT_SESSION_TTL", "5m")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9000" {
		t.Errorf("port: got %q, want 9000", cfg.Port)
	}
	if !cfg.MigrateOnStart {
		t.Error("MIGRATE_ON_START not applied")
	}
	if cfg.SplitSessionTTL != 5*time.Minute {
		t.Errorf("ttl: got %s, want 5m", cfg.SplitSessionTTL)
	}
	want := []string{"https://a.example", "https://b.example"}
	if len(cfg.CORSAllowedOrigins) != len(want) {
		t.Fatalf("cors: got %v, want %v", cfg.CORSAllowedOrigins, want)
	}
	for i := range want {
		if cfg.CORSAllowedOrigins[i] != want[i] {
			t.Errorf("cors[%d]: got %q, want %q", i, cfg.CORSAllowedOrigins[i], want[i])
		}
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pos.yaml")
	body := "PORT: \"7000\"\nLOG_LEVEL: debug\nSPLIT_SESSION_TTL: 10m\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "7000" || cfg.LogLevel != "debug" || cfg.SplitSessionTTL != 10*time.Minute {
		t.Errorf("file values not applied: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	t.Chdir(t.TempDir())

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("explicit missing file should fail")
	}

	t.Setenv("SPLIT_SESSION_TTL", "0s")
	if _, err := Load(""); err == nil {
		t.Error("zero ttl should fail")
	}
}
