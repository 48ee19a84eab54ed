package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ROADWATCH_JWT_SECRET", "s3cret")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":5000" {
		t.Fatalf("unexpected addr: %s", cfg.HTTPAddr)
	}
	if cfg.TokenTTL != 24*time.Hour {
		t.Fatalf("unexpected ttl: %s", cfg.TokenTTL)
	}
	if cfg.Development() {
		t.Fatal("default env must not be development")
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "ROADWATCH_JWT_SECRET=from-file\nROADWATCH_ENV=development\nROADWATCH_ALLOWED_ORIGINS=http://a.test,http://b.test\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	// godotenv never overrides variables that are already set
	for _, k := range []string{"ROADWATCH_JWT_SECRET", "ROADWATCH_ENV", "ROADWATCH_ALLOWED_ORIGINS"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.JWTSecret != "from-file" {
		t.Fatalf("unexpected secret: %q", cfg.JWTSecret)
	}
	if !cfg.Development() {
		t.Fatal("expected development mode")
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "http://b.test" {
		t.Fatalf("unexpected origins: %v", cfg.AllowedOrigins)
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("ROADWATCH_JWT_SECRET", "")
	if _, err := Load(filepath.Join(t.TempDir(), "none")); err == nil {
		t.Fatal("expected error without secret")
	}
}
