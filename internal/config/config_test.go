package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const fullYAML = `
api:
  base_url: https://shop.example.com

socket:
  url: wss://push.example.com/socket

console:
  port: 9090

chat:
  pending_lifetime: 15s
  dedupe_window: 90s
  typing_expiry: 8s
  typing_idle: 4s
  resync_cron: "*/5 * * * *"

archive:
  enabled: true
  path: /var/lib/shopdesk/archive.db

notify:
  sound_command: "paplay /usr/share/sounds/ping.ogg"
  notify_command: "notify-send {{.Title}} {{.Body}}"
`

const minimalYAML = `
api:
  base_url: https://shop.example.com
`

func TestParse_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.API.BaseURL != "https://shop.example.com" {
		t.Errorf("API.BaseURL = %q, want %q", cfg.API.BaseURL, "https://shop.example.com")
	}
	if cfg.Socket.URL != "wss://push.example.com/socket" {
		t.Errorf("Socket.URL = %q, want %q", cfg.Socket.URL, "wss://push.example.com/socket")
	}
	if cfg.Console.Port != 9090 {
		t.Errorf("Console.Port = %d, want %d", cfg.Console.Port, 9090)
	}
	if cfg.Chat.PendingLifetime != 15*time.Second {
		t.Errorf("Chat.PendingLifetime = %v, want %v", cfg.Chat.PendingLifetime, 15*time.Second)
	}
	if cfg.Chat.DedupeWindow != 90*time.Second {
		t.Errorf("Chat.DedupeWindow = %v, want %v", cfg.Chat.DedupeWindow, 90*time.Second)
	}
	if cfg.Chat.TypingExpiry != 8*time.Second {
		t.Errorf("Chat.TypingExpiry = %v, want %v", cfg.Chat.TypingExpiry, 8*time.Second)
	}
	if cfg.Chat.TypingIdle != 4*time.Second {
		t.Errorf("Chat.TypingIdle = %v, want %v", cfg.Chat.TypingIdle, 4*time.Second)
	}
	if cfg.Chat.ResyncCron != "*/5 * * * *" {
		t.Errorf("Chat.ResyncCron = %q, want %q", cfg.Chat.ResyncCron, "*/5 * * * *")
	}
	if !cfg.Archive.Enabled {
		t.Error("Archive.Enabled = false, want true")
	}
	if cfg.Archive.Path != "/var/lib/shopdesk/archive.db" {
		t.Errorf("Archive.Path = %q, want %q", cfg.Archive.Path, "/var/lib/shopdesk/archive.db")
	}
	if cfg.Notify.SoundCommand != "paplay /usr/share/sounds/ping.ogg" {
		t.Errorf("Notify.SoundCommand = %q", cfg.Notify.SoundCommand)
	}
	if !strings.Contains(cfg.Notify.NotifyCommand, "{{.Title}}") {
		t.Errorf("Notify.NotifyCommand = %q, want template slots", cfg.Notify.NotifyCommand)
	}
}

func TestParse_MinimalConfig_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Socket.URL != "wss://shop.example.com/socket" {
		t.Errorf("Socket.URL = %q, want %q (derived from base URL)", cfg.Socket.URL, "wss://shop.example.com/socket")
	}
	if cfg.Console.Port != 8080 {
		t.Errorf("Console.Port = %d, want %d (default)", cfg.Console.Port, 8080)
	}
	if cfg.Archive.Enabled {
		t.Error("Archive.Enabled = true, want false (default)")
	}
	if cfg.Chat.PendingLifetime != 0 {
		t.Errorf("Chat.PendingLifetime = %v, want 0 (engine default)", cfg.Chat.PendingLifetime)
	}
}

func TestParse_DerivesSocketFromPlainHTTP(t *testing.T) {
	yaml := `
api:
  base_url: http://localhost:3000/
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Socket.URL != "ws://localhost:3000/socket" {
		t.Errorf("Socket.URL = %q, want %q", cfg.Socket.URL, "ws://localhost:3000/socket")
	}
}

func TestParse_ExplicitSocketURL_NotOverridden(t *testing.T) {
	yaml := `
api:
  base_url: https://shop.example.com
socket:
  url: wss://elsewhere.example.com/push
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Socket.URL != "wss://elsewhere.example.com/push" {
		t.Errorf("Socket.URL = %q, want %q (should not be overridden)", cfg.Socket.URL, "wss://elsewhere.example.com/push")
	}
}

func TestParse_ArchiveEnabledDefaultsPath(t *testing.T) {
	yaml := `
api:
  base_url: https://shop.example.com
archive:
  enabled: true
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Archive.Path != "shopdesk.db" {
		t.Errorf("Archive.Path = %q, want %q (default)", cfg.Archive.Path, "shopdesk.db")
	}
}

func TestParse_TokenFromEnvironment(t *testing.T) {
	t.Setenv(TokenEnvVar, "tok-env-1")

	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.API.Token != "tok-env-1" {
		t.Errorf("API.Token = %q, want %q", cfg.API.Token, "tok-env-1")
	}
}

func TestParse_MissingBaseURL(t *testing.T) {
	_, err := Parse([]byte(`console: {port: 8080}`))
	if err == nil {
		t.Fatal("expected error for missing base URL")
	}
	if !strings.Contains(err.Error(), "api.base_url is required") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "api.base_url is required")
	}
}

func TestParse_PortOutOfRange(t *testing.T) {
	yaml := `
api:
  base_url: https://shop.example.com
console:
  port: 70000
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("expected error for out-of-range port")
	}
	if !strings.Contains(err.Error(), "out of range") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "out of range")
	}
}

func TestParse_NegativeDuration(t *testing.T) {
	yaml := `
api:
  base_url: https://shop.example.com
chat:
  dedupe_window: -5s
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("expected error for negative duration")
	}
	if !strings.Contains(err.Error(), "chat.dedupe_window must not be negative") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "chat.dedupe_window must not be negative")
	}
}

func TestParse_MalformedYAML(t *testing.T) {
	_, err := Parse([]byte("api: [not: a: mapping"))
	if err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestLoad_ReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(fullYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Console.Port != 9090 {
		t.Errorf("Console.Port = %d, want %d", cfg.Console.Port, 9090)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
