package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RequestTimeout.Std() != 15*time.Second || cfg.WeekStart != "monday" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("perm = %o, want 600", perm)
	}

	again, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if again.ReminderLead != cfg.ReminderLead || again.APIBaseURL != cfg.APIBaseURL {
		t.Errorf("reloaded config differs: %+v vs %+v", again, cfg)
	}
}

func TestLoadNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`api_base_url: "https://api.example.com/v1/"
request_timeout: 5s
reminder_lead: 30m
week_start: Sunday
timezone: Europe/Warsaw
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIBaseURL != "https://api.example.com/v1" {
		t.Errorf("APIBaseURL = %q", cfg.APIBaseURL)
	}
	if cfg.RequestTimeout.Std() != 5*time.Second || cfg.ReminderLead.Std() != 30*time.Minute {
		t.Errorf("durations = %s / %s", cfg.RequestTimeout.Std(), cfg.ReminderLead.Std())
	}
	if cfg.WeekStart != "sunday" {
		t.Errorf("WeekStart = %q", cfg.WeekStart)
	}
	if cfg.RefreshCron != "*/15 * * * *" || cfg.ColumnHeight != 960 || cfg.TokenEnv != "TUTORCAL_TOKEN" {
		t.Errorf("defaults not filled: %+v", cfg)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("request_timeout: soon\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestLocationFallback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timezone = "Nowhere/Special"
	loc, err := cfg.Location()
	if err == nil || loc != time.UTC {
		t.Errorf("Location() = %v, %v; want UTC with error", loc, err)
	}
}
