package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.StoreDriver != StoreSQLite {
		t.Fatalf("expected default store %q, got %q", StoreSQLite, cfg.StoreDriver)
	}
	if cfg.TurnBudget != 5 {
		t.Fatalf("expected default turn budget 5, got %d", cfg.TurnBudget)
	}
	if cfg.EvalBatchSize != 10 {
		t.Fatalf("expected default batch size 10, got %d", cfg.EvalBatchSize)
	}
	if cfg.LinkCheckTimeout != 3*time.Second {
		t.Fatalf("expected default link timeout 3s, got %s", cfg.LinkCheckTimeout)
	}
}

func TestLoadRejectsUnknownStore(t *testing.T) {
	t.Setenv("HYOKA_STORE", "cassandra")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown store driver, got nil")
	}
}

func TestValidateRejectsZeroTurnBudget(t *testing.T) {
	t.Setenv("HYOKA_TURN_BUDGET", "0")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for zero turn budget, got nil")
	}
}

func TestLevelMapsLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for name, want := range cases {
		if got := (Config{LogLevel: name}).Level(); got != want {
			t.Fatalf("level %q: expected %v, got %v", name, want, got)
		}
	}
}

func TestLoadRejectsUnknownLogLevel(t *testing.T) {
	t.Setenv("HYOKA_LOG_LEVEL", "verbose")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown log level, got nil")
	}
}

func TestEnvIntFallbackOnGarbage(t *testing.T) {
	t.Setenv("TEST_INT_BAD", "abc")
	if v := envInt("TEST_INT_BAD", 7); v != 7 {
		t.Fatalf("expected fallback 7, got %d", v)
	}
}

func TestFirstEnvOrder(t *testing.T) {
	t.Setenv("TEST_FIRST_A", "")
	t.Setenv("TEST_FIRST_B", "b")
	if v := firstEnv("TEST_FIRST_A", "TEST_FIRST_B"); v != "b" {
		t.Fatalf("expected %q, got %q", "b", v)
	}
}
