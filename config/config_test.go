package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("redis addr default = %q", cfg.Redis.Addr)
	}
	if len(cfg.Assets) == 0 {
		t.Error("default asset list empty")
	}
	if cfg.Schedule.AnalysisCron == "" || cfg.Analysis.Workers <= 0 {
		t.Errorf("schedule defaults missing: %+v", cfg.Schedule)
	}
}

func TestLoad_YAMLAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
assets: [bitcoin, ethereum]
favorites: [bitcoin]
categories:
  bitcoin: layer1
redis:
  addr: redis:6379
server:
  listen_addr: ":9000"
log_level: debug
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("REDIS_ADDR", "override:6379")
	t.Setenv("ASSETS", "solana, cardano")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	// Env beats YAML
	if cfg.Redis.Addr != "override:6379" {
		t.Errorf("redis addr = %q, want env override", cfg.Redis.Addr)
	}
	if len(cfg.Assets) != 2 || cfg.Assets[0] != "solana" || cfg.Assets[1] != "cardano" {
		t.Errorf("assets = %v, want env list", cfg.Assets)
	}

	// YAML survives where no env is set
	if cfg.Server.ListenAddr != ":9000" {
		t.Errorf("listen addr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Categories["bitcoin"] != "layer1" {
		t.Errorf("categories = %v", cfg.Categories)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q", cfg.LogLevel)
	}
}

func TestLoad_BadYAMLFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("assets: ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}
