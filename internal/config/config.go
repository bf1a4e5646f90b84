// Package config provides YAML-based configuration loading for the shop
// desk console.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// TokenEnvVar is the environment variable the bearer token is read from.
// The login command writes it to the .env file next to the config.
const TokenEnvVar = "SHOPDESK_TOKEN"

// Config is the top-level console configuration, loaded from config.yaml.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Socket  SocketConfig  `yaml:"socket"`
	Console ConsoleConfig `yaml:"console"`
	Chat    ChatConfig    `yaml:"chat"`
	Archive ArchiveConfig `yaml:"archive"`
	Notify  NotifyConfig  `yaml:"notify"`
}

// APIConfig holds connection settings for the shop REST backend.
type APIConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"-"` // from SHOPDESK_TOKEN, never from YAML
}

// SocketConfig holds settings for the push-event WebSocket.
type SocketConfig struct {
	URL string `yaml:"url"`
}

// ConsoleConfig holds the local dashboard server settings.
type ConsoleConfig struct {
	Port int `yaml:"port"`
}

// ChatConfig tunes the desk engine's timers. Zero values use the engine
// defaults.
type ChatConfig struct {
	PendingLifetime time.Duration `yaml:"pending_lifetime"`
	DedupeWindow    time.Duration `yaml:"dedupe_window"`
	TypingExpiry    time.Duration `yaml:"typing_expiry"`
	TypingIdle      time.Duration `yaml:"typing_idle"`
	ResyncCron      string        `yaml:"resync_cron"` // optional 5-field cron
}

// ArchiveConfig holds the local transcript archive settings.
type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// NotifyConfig holds the desktop notification commands. Both are shell
// commands; the notify command may use {{.Title}} and {{.Body}} slots.
type NotifyConfig struct {
	SoundCommand  string `yaml:"sound_command"`
	NotifyCommand string `yaml:"notify_command"`
}

// Load reads a YAML config file from path and returns a validated Config.
// A .env file in the working directory is loaded first so SHOPDESK_TOKEN
// set there is picked up.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // best-effort; the token may come from the shell

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.API.Token == "" {
		c.API.Token = os.Getenv(TokenEnvVar)
	}
	if c.Socket.URL == "" && c.API.BaseURL != "" {
		c.Socket.URL = deriveSocketURL(c.API.BaseURL)
	}
	if c.Console.Port == 0 {
		c.Console.Port = 8080
	}
	if c.Archive.Enabled && c.Archive.Path == "" {
		c.Archive.Path = "shopdesk.db"
	}
}

// deriveSocketURL turns an http(s) base URL into the matching ws(s)
// socket endpoint.
func deriveSocketURL(baseURL string) string {
	socket := baseURL
	switch {
	case strings.HasPrefix(socket, "https://"):
		socket = "wss://" + strings.TrimPrefix(socket, "https://")
	case strings.HasPrefix(socket, "http://"):
		socket = "ws://" + strings.TrimPrefix(socket, "http://")
	}
	return strings.TrimRight(socket, "/") + "/socket"
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.API.BaseURL == "" {
		errs = append(errs, "api.base_url is required")
	}
	if c.Console.Port < 0 || c.Console.Port > 65535 {
		errs = append(errs, fmt.Sprintf("console.port %d is out of range", c.Console.Port))
	}
	durations := []struct {
		name string
		d    time.Duration
	}{
		{"chat.pending_lifetime", c.Chat.PendingLifetime},
		{"chat.dedupe_window", c.Chat.DedupeWindow},
		{"chat.typing_expiry", c.Chat.TypingExpiry},
		{"chat.typing_idle", c.Chat.TypingIdle},
	}
	for _, d := range durations {
		if d.d < 0 {
			errs = append(errs, fmt.Sprintf("%s must not be negative", d.name))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
