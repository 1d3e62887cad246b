package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sample = `
server:
  port: "9090"
auth:
  jwt_secret: from-file
  issuer: mathduel
match:
  duration: 45s
  questions: 10
leaderboard:
  refresh: "@every 30s"
`

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadParsesSections(t *testing.T) {
	cfg, err := Load(writeConfig(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Auth.Issuer != "mathduel" || cfg.Match.Questions != 10 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if got := TTLDuration(cfg.Match.Duration, time.Minute); got != 45*time.Second {
		t.Fatalf("expected 45s, got %s", got)
	}
	if cfg.Leaderboard.Refresh != "@every 30s" {
		t.Fatalf("unexpected refresh spec %q", cfg.Leaderboard.Refresh)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("MATCH_QUESTIONS", "7")

	cfg, err := Load(writeConfig(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Auth.JWTSecret != "from-env" {
		t.Fatalf("expected env secret, got %q", cfg.Auth.JWTSecret)
	}
	if cfg.Match.Questions != 7 {
		t.Fatalf("expected 7 questions, got %d", cfg.Match.Questions)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestFallbacks(t *testing.T) {
	if got := TTLDuration("bogus", time.Second); got != time.Second {
		t.Fatalf("expected fallback, got %s", got)
	}
	if got := TTLDuration("", time.Second); got != time.Second {
		t.Fatalf("expected fallback, got %s", got)
	}
	if got := IntOr(0, 20); got != 20 {
		t.Fatalf("expected 20, got %d", got)
	}
	if got := IntOr(5, 20); got != 5 {
		t.Fatalf("expected 5, got %d", got)
	}
}
