package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Setenv("RESULTS_BACKEND", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.Quiz.Weeks[12]; len(got) != 3 || got[2] != "inorganic" {
		t.Fatalf("unexpected week 12 topics: %v", got)
	}
	if cfg.Quiz.Mastery.Weeks[12]["inorganic"] != 4 {
		t.Fatalf("expected inorganic goal 4 in week 12, got %+v", cfg.Quiz.Mastery.Weeks)
	}
	if cfg.Quiz.Mastery.Default != 1 {
		t.Fatalf("expected default goal 1, got %d", cfg.Quiz.Mastery.Default)
	}
	if cfg.Results.Backend != "memory" {
		t.Fatalf("expected memory backend, got %q", cfg.Results.Backend)
	}
}

func TestLoadYAMLAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := `
server:
  port: "9000"
items:
  source: xlsx
  path: items.xlsx
quiz:
  weeks:
    3: [units]
  mastery:
    default: 2
    weeks: {}
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("PORT", "9100")
	t.Setenv("RESULTS_BACKEND", "redis")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9100" {
		t.Fatalf("expected env port override, got %q", cfg.Server.Port)
	}
	if cfg.Items.Source != "xlsx" || cfg.Items.Path != "items.xlsx" {
		t.Fatalf("unexpected items config: %+v", cfg.Items)
	}
	if cfg.Results.Backend != "redis" {
		t.Fatalf("expected redis backend, got %q", cfg.Results.Backend)
	}
	if len(cfg.Quiz.Weeks) != 1 || cfg.Quiz.Weeks[3][0] != "units" {
		t.Fatalf("expected yaml weeks to replace defaults, got %v", cfg.Quiz.Weeks)
	}
	if cfg.Quiz.Mastery.Default != 2 || len(cfg.Quiz.Mastery.Weeks) != 0 {
		t.Fatalf("unexpected mastery config: %+v", cfg.Quiz.Mastery)
	}
}

func TestTTLDuration(t *testing.T) {
	if got := TTLDuration("", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback, got %v", got)
	}
	if got := TTLDuration("30s", time.Minute); got != 30*time.Second {
		t.Fatalf("expected 30s, got %v", got)
	}
	if got := TTLDuration("bogus", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback on parse error, got %v", got)
	}
}
