package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLoad(t *testing.T) {
	dir := writeConfig(t, `
stream:
  url: "wss://example.test/socket"
  reconnect_attempts: 3
  reconnect_delay_ms: 2500
session:
  token: "abc"
redis:
  enabled: true
  addr: "redis:6379"
assets:
  - "EURUSD"
`)
	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Stream.URL != "wss://example.test/socket" {
		t.Fatalf("url %q", cfg.Stream.URL)
	}
	if cfg.Stream.ReconnectAttempts != 3 {
		t.Fatalf("attempts %d", cfg.Stream.ReconnectAttempts)
	}
	if got := cfg.Stream.ReconnectDelay(); got != 2500*time.Millisecond {
		t.Fatalf("delay %v", got)
	}
	if !cfg.Redis.Enabled || cfg.Redis.Addr != "redis:6379" {
		t.Fatalf("redis %+v", cfg.Redis)
	}
	if len(cfg.Assets) != 1 || cfg.Assets[0] != "EURUSD" {
		t.Fatalf("assets %v", cfg.Assets)
	}
}

func TestLoad_Defaults(t *testing.T) {
	dir := writeConfig(t, `
stream:
  url: "wss://example.test/socket"
`)
	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Stream.Reconnect {
		t.Fatal("reconnect should default on")
	}
	if cfg.Stream.ReconnectAttempts != 5 {
		t.Fatalf("attempts %d", cfg.Stream.ReconnectAttempts)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "console" {
		t.Fatalf("log defaults %+v", cfg.Log)
	}
	if cfg.Session.IsDemo != 1 {
		t.Fatalf("is_demo %d", cfg.Session.IsDemo)
	}
}

func TestLoad_MissingURL(t *testing.T) {
	dir := writeConfig(t, "log:\n  level: debug\n")
	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for missing stream.url")
	}
}
