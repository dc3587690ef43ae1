package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"SQLITE_DB_PATH", "AMQP_URL", "LIQUID_SAVINGS", "REEVAL_SCHEDULE"} {
		t.Setenv(key, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SQLiteDBPath != "./data/fintrack.db" {
		t.Fatalf("db path %q", cfg.SQLiteDBPath)
	}
	if cfg.HasLiquidSavings {
		t.Fatalf("liquid savings should be absent by default")
	}
	if cfg.ReevalSchedule != "0 6 * * *" {
		t.Fatalf("schedule %q", cfg.ReevalSchedule)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("http addr %q", cfg.HTTPAddr)
	}
}

func TestLoadLiquidSavings(t *testing.T) {
	t.Setenv("LIQUID_SAVINGS", "1234.56")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.HasLiquidSavings || cfg.LiquidSavings.Cents != 123456 {
		t.Fatalf("got %+v", cfg.LiquidSavings)
	}

	t.Setenv("LIQUID_SAVINGS", "not-a-number")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := &Config{
		SQLiteDBPath:   "x.db",
		AMQPURL:        "http://wrong",
		AMQPExchange:   "",
		FeedQueue:      "q",
		AlertQueue:     "q",
		ReevalSchedule: "whenever",
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected error")
	}
	for _, want := range []string{"scheme", "exchange", "must differ", "cron"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error missing %q:\n%v", want, err)
		}
	}
}

func TestDefaultPolicyValid(t *testing.T) {
	if err := DefaultPolicy().Validate(); err != nil {
		t.Fatalf("default policy invalid: %v", err)
	}
}

func TestLoadPolicyOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.toml")
	body := `
[health]
savings_weight = 0.4
adherence_weight = 0.3
goals_weight = 0.1
consistency_weight = 0.1
emergency_fund_weight = 0.1

[auto_adjust]
trailing_periods = 2
weights = [0.7, 0.3]
max_decrease_percent = 10
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	p, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("load policy: %v", err)
	}
	if p.Health.SavingsWeight != 0.4 || p.AutoAdjust.TrailingPeriods != 2 {
		t.Fatalf("overrides not applied: %+v", p)
	}
	// Untouched sections keep their defaults.
	if p.Alerts.DefaultThresholdPercent != 80 {
		t.Fatalf("default lost: %+v", p.Alerts)
	}
}

func TestLoadPolicyRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.toml")
	body := `
[auto_adjust]
trailing_periods = 3
weights = [1.0]
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadPolicy(path); err == nil {
		t.Fatalf("expected error for mismatched weights")
	}
}
