package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	raw := []byte(`
server:
  http_address: ":9999"
auth:
  jwt_secret: "secret"
game:
  betting_seconds: 15
  race_tick_millis: 250
`)
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), raw, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.HTTPAddress != ":9999" {
		t.Fatalf("http address = %q", cfg.Server.HTTPAddress)
	}
	if cfg.Game.BettingSeconds != 15 {
		t.Fatalf("betting seconds = %d", cfg.Game.BettingSeconds)
	}
	if cfg.Game.RaceTick() != 250*time.Millisecond {
		t.Fatalf("race tick = %v", cfg.Game.RaceTick())
	}

	// unset keys fall back to defaults
	if cfg.Game.MaxSeats != 6 {
		t.Fatalf("max seats default = %d, want 6", cfg.Game.MaxSeats)
	}
	if cfg.Server.RPCAddress != ":8081" {
		t.Fatalf("rpc address default = %q", cfg.Server.RPCAddress)
	}
}

func TestLoadConfigMissingFileRunsOnDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig without a config file: %v", err)
	}
	if cfg.Server.HTTPAddress != ":8080" {
		t.Fatalf("http address default = %q, want :8080", cfg.Server.HTTPAddress)
	}
	if cfg.Game.MaxSeats != 6 {
		t.Fatalf("max seats default = %d, want 6", cfg.Game.MaxSeats)
	}
	if cfg.Game.RaceTick() != 500*time.Millisecond {
		t.Fatalf("race tick default = %v, want 500ms", cfg.Game.RaceTick())
	}
}

func TestLoadConfigMalformedFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(dir); err == nil {
		t.Fatal("expected error for malformed config file")
	}
}
