// Package config loads the relay configuration.
// Values come from battlemap.json merged over defaults, with environment
// variables taking precedence over both. Loaded once at startup, never
// reloaded.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Config represents the merged relay configuration.
type Config struct {
	Debug    string         `json:"debug"` // "", "info" or "verbose"
	Game     GameConfig     `json:"game"`
	Browser  BrowserConfig  `json:"browser"`
	Relay    RelayConfig    `json:"relay"`
	Telegram TelegramConfig `json:"telegram"`
	Store    StoreConfig    `json:"store"`
	ETL      ETLConfig      `json:"etl"`
	Realtime RealtimeConfig `json:"realtime"`
}

// GameConfig describes the remote game and the Google account used to
// authenticate against it.
type GameConfig struct {
	HomeURL  string `json:"homeUrl"`
	LoginURL string `json:"loginUrl"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// BrowserConfig holds browser launch options.
type BrowserConfig struct {
	Headless   bool   `json:"headless"`
	NoSandbox  bool   `json:"noSandbox"`  // needed for Docker/root
	ProfileDir string `json:"profileDir"` // persistent user-data dir, empty = ~/.battlemap/profile
	DebugDir   string `json:"debugDir"`   // diagnostic screenshots, empty = ~/.battlemap/debug
}

type RelayConfig struct {
	Listen string `json:"listen"` // e.g. ":8080"
}

type TelegramConfig struct {
	BotToken     string  `json:"botToken"`
	AllowedChats []int64 `json:"allowedChats"` // empty = allow all
}

type StoreConfig struct {
	Path string `json:"path"` // sqlite file, empty = ~/.battlemap/mirror.db
}

type ETLConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule"` // robfig/cron spec, e.g. "@every 6h"
}

type RealtimeConfig struct {
	Enabled      bool   `json:"enabled"`
	PollInterval string `json:"pollInterval"` // battle list poll, e.g. "30s"
}

// Load reads configuration from battlemap.json (explicit path, cwd, or
// ~/.battlemap/), then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, found, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if found {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Game: GameConfig{
			HomeURL:  "https://battlemap.deltatgame.com/#home",
			LoginURL: "https://battlemap.deltatgame.com/login/google",
		},
		Browser: BrowserConfig{
			Headless: true,
		},
		Relay: RelayConfig{
			Listen: ":8080",
		},
		ETL: ETLConfig{
			Schedule: "@every 6h",
		},
		Realtime: RealtimeConfig{
			PollInterval: "30s",
		},
	}
}

func readFile(path string) ([]byte, bool, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, false, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		return data, true, nil
	}

	candidates := []string{"battlemap.json"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".battlemap", "battlemap.json"))
	}

	for _, p := range candidates {
		if data, err := os.ReadFile(p); err == nil {
			return data, true, nil
		}
	}
	return nil, false, nil
}

// applyEnv overrides file values with environment variables.
func (c *Config) applyEnv() {
	setString(&c.Game.Email, "GOOGLE_EMAIL")
	setString(&c.Game.Password, "GOOGLE_PASSWORD")
	setString(&c.Game.HomeURL, "BM_HOME_URL")
	setString(&c.Game.LoginURL, "BM_LOGIN_URL")
	setString(&c.Telegram.BotToken, "TELEGRAM_TOKEN")
	setString(&c.Relay.Listen, "BM_LISTEN")
	setString(&c.Debug, "BM_DEBUG")
	setString(&c.Store.Path, "BM_STORE_PATH")

	if v := os.Getenv("BM_HEADLESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Browser.Headless = b
		}
	}
	if v := os.Getenv("BM_NO_SANDBOX"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Browser.NoSandbox = b
		}
	}
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

// ResolveProfileDir returns the browser user-data directory.
func (c *Config) ResolveProfileDir() string {
	if c.Browser.ProfileDir != "" {
		return c.Browser.ProfileDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".battlemap/profile"
	}
	return filepath.Join(home, ".battlemap", "profile")
}

// ResolveDebugDir returns the diagnostic screenshot directory.
func (c *Config) ResolveDebugDir() string {
	if c.Browser.DebugDir != "" {
		return c.Browser.DebugDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".battlemap/debug"
	}
	return filepath.Join(home, ".battlemap", "debug")
}

// ResolveStorePath returns the sqlite mirror path.
func (c *Config) ResolveStorePath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".battlemap/mirror.db"
	}
	return filepath.Join(home, ".battlemap", "mirror.db")
}

// Verbose reports whether verbose diagnostics are enabled.
func (c *Config) Verbose() bool {
	return c.Debug == "verbose"
}

// DebugEnabled reports whether any debug diagnostics are enabled.
func (c *Config) DebugEnabled() bool {
	return c.Debug != ""
}
