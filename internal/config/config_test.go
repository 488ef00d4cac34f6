package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err == nil {
		t.Fatal("explicit missing path should fail")
	}

	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Relay.Listen != ":8080" {
		t.Errorf("listen = %q", cfg.Relay.Listen)
	}
	if cfg.Game.HomeURL == "" || cfg.Game.LoginURL == "" {
		t.Error("game URLs not defaulted")
	}
	if !cfg.Browser.Headless {
		t.Error("headless should default on")
	}
	if cfg.ETL.Schedule == "" || cfg.Realtime.PollInterval == "" {
		t.Error("schedule defaults missing")
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "battlemap.json")
	raw := `{"relay": {"listen": ":9999"}, "telegram": {"allowedChats": [42]}}`
	if err := os.WriteFile(path, []byte(raw), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Relay.Listen != ":9999" {
		t.Errorf("listen = %q", cfg.Relay.Listen)
	}
	if len(cfg.Telegram.AllowedChats) != 1 || cfg.Telegram.AllowedChats[0] != 42 {
		t.Errorf("allowedChats = %v", cfg.Telegram.AllowedChats)
	}
	// Untouched sections keep their defaults.
	if cfg.Game.HomeURL == "" {
		t.Error("file load clobbered game defaults")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "battlemap.json")
	if err := os.WriteFile(path, []byte(`{"game": {"email": "file@x.com"}}`), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GOOGLE_EMAIL", "env@x.com")
	t.Setenv("BM_LISTEN", ":7777")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Game.Email != "env@x.com" {
		t.Errorf("email = %q, want env value", cfg.Game.Email)
	}
	if cfg.Relay.Listen != ":7777" {
		t.Errorf("listen = %q", cfg.Relay.Listen)
	}
}

func TestDebugFlags(t *testing.T) {
	cfg := &Config{}
	if cfg.DebugEnabled() || cfg.Verbose() {
		t.Error("empty debug should disable diagnostics")
	}

	cfg.Debug = "debug"
	if !cfg.DebugEnabled() || cfg.Verbose() {
		t.Error("debug level misread")
	}

	cfg.Debug = "verbose"
	if !cfg.DebugEnabled() || !cfg.Verbose() {
		t.Error("verbose level misread")
	}
}
