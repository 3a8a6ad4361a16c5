package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

// TestLoadMissingFileUsesDefaults tests that a missing file is not an error
func TestLoadMissingFileUsesDefaults(t *testing.T) {
	mgr, err := NewManager(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := mgr.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	cfg := mgr.Get()
	if cfg.Playback.OnMalformed != "skip" {
		t.Errorf("Expected on_malformed 'skip', got '%s'", cfg.Playback.OnMalformed)
	}
	if cfg.General.APIPort != 18181 {
		t.Errorf("Expected api_port 18181, got %d", cfg.General.APIPort)
	}
	if cfg.Playback.StopHotkey != "Ctrl+Alt+Esc" {
		t.Errorf("Expected stop hotkey 'Ctrl+Alt+Esc', got '%s'", cfg.Playback.StopHotkey)
	}
}

// TestLoadFileEnvAndFlags tests the override order file < env < flag
func TestLoadFileEnvAndFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{
		"playback": {"on_malformed": "abort", "start_delay_ms": 250},
		"general": {"api_port": 9000, "log_level": "debug"},
		"schedules": [{"name": "morning", "cron": "0 9 * * 1-5", "script": "login.txt"}]
	}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("AUTOKEY_GENERAL_API_PORT", "9100")
	t.Setenv("AUTOKEY_PLAYBACK_DRY_RUN", "true")

	mgr, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("start-delay", 0, "")
	if err := mgr.BindFlag("playback.start_delay_ms", flags.Lookup("start-delay")); err != nil {
		t.Fatalf("BindFlag: %v", err)
	}
	if err := flags.Parse([]string{"--start-delay=750"}); err != nil {
		t.Fatal(err)
	}

	if err := mgr.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg := mgr.Get()

	if cfg.Playback.OnMalformed != "abort" {
		t.Errorf("Expected on_malformed 'abort' from file, got '%s'", cfg.Playback.OnMalformed)
	}
	if cfg.General.LogLevel != "debug" {
		t.Errorf("Expected log_level 'debug' from file, got '%s'", cfg.General.LogLevel)
	}
	if cfg.General.APIPort != 9100 {
		t.Errorf("Expected api_port 9100 from env, got %d", cfg.General.APIPort)
	}
	if !cfg.Playback.DryRun {
		t.Error("Expected dry_run from env")
	}
	if cfg.Playback.StartDelayMs != 750 {
		t.Errorf("Expected start_delay_ms 750 from flag, got %d", cfg.Playback.StartDelayMs)
	}
	if len(cfg.Schedules) != 1 || cfg.Schedules[0].Cron != "0 9 * * 1-5" {
		t.Errorf("Unexpected schedules %+v", cfg.Schedules)
	}
	if s := mgr.GetSchedule("morning"); s == nil || s.Script != "login.txt" {
		t.Errorf("Expected schedule 'morning', got %+v", s)
	}
}

// TestSaveRoundTrip tests that saved config loads back
func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	mgr, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	cfg := DefaultConfig()
	cfg.Playback.StrictOrder = true
	mgr.Set(cfg)
	if err := mgr.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	other, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := other.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !other.Get().Playback.StrictOrder {
		t.Error("Expected strict_order to survive save and load")
	}
}

// TestChangeCallback tests that Set and Load report changes
func TestChangeCallback(t *testing.T) {
	mgr, err := NewManager(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	calls := 0
	mgr.RegisterChangeCallback(func() { calls++ })

	cfg := DefaultConfig()
	cfg.Playback.StopHotkey = "F12"
	mgr.Set(cfg)
	if calls != 1 {
		t.Errorf("Expected 1 call after Set, got %d", calls)
	}
	if err := mgr.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if calls != 2 {
		t.Errorf("Expected 2 calls after Load, got %d", calls)
	}
}
