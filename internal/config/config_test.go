package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.AppName != "tradehelm" {
		t.Errorf("AppName = %q, want tradehelm", cfg.AppName)
	}
	if cfg.Window != 60 {
		t.Errorf("Window = %d, want 60", cfg.Window)
	}
	if cfg.DefaultPortfolioValue != 100000 {
		t.Errorf("DefaultPortfolioValue = %v, want 100000", cfg.DefaultPortfolioValue)
	}
	if cfg.MaxRiskBps != 50 {
		t.Errorf("MaxRiskBps = %v, want 50", cfg.MaxRiskBps)
	}
	if cfg.HealthAddr != ":8090" {
		t.Errorf("HealthAddr = %q, want :8090", cfg.HealthAddr)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 5s", cfg.ShutdownTimeout)
	}
}

func TestLoadDerivedPaths(t *testing.T) {
	t.Setenv("TRADEHELM_DATA_DIR", "/tmp/helm-test-data")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	wantBias := filepath.Join("/tmp/helm-test-data", "bias", "bias_snapshots.json")
	if cfg.BiasCachePath != wantBias {
		t.Errorf("BiasCachePath = %q, want %q", cfg.BiasCachePath, wantBias)
	}
	wantAudit := filepath.Join("/tmp/helm-test-data", "decisions", "decisions.jsonl")
	if cfg.AuditLogPath != wantAudit {
		t.Errorf("AuditLogPath = %q, want %q", cfg.AuditLogPath, wantAudit)
	}
	if cfg.PriceDataDir() != filepath.Join("/tmp/helm-test-data", "market_data", "price_data") {
		t.Errorf("PriceDataDir = %q", cfg.PriceDataDir())
	}
}

func TestLoadFileThenEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tradehelm.yaml")
	content := []byte("model: gpt-4.1\nwindow: 30\nhealth_addr: \":9999\"\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("TRADEHELM_WINDOW", "45")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Model != "gpt-4.1" {
		t.Errorf("Model = %q, want file value gpt-4.1", cfg.Model)
	}
	if cfg.HealthAddr != ":9999" {
		t.Errorf("HealthAddr = %q, want file value :9999", cfg.HealthAddr)
	}
	if cfg.Window != 45 {
		t.Errorf("Window = %d, want env override 45", cfg.Window)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"offline defaults ok", func(c *Config) { c.Offline = true }, false},
		{"empty data dir", func(c *Config) { c.Offline = true; c.DataDir = "" }, true},
		{"empty audit path", func(c *Config) { c.Offline = true; c.AuditLogPath = "" }, true},
		{"empty app name", func(c *Config) { c.Offline = true; c.AppName = "" }, true},
		{"negative portfolio", func(c *Config) { c.Offline = true; c.DefaultPortfolioValue = -1 }, true},
		{"negative window", func(c *Config) { c.Offline = true; c.Window = -5 }, true},
		{"model mode without key", func(c *Config) { c.Offline = false; c.APIKey = "" }, true},
		{"model mode with key", func(c *Config) { c.Offline = false; c.APIKey = "sk-test" }, false},
		{"unknown provider", func(c *Config) { c.Offline = false; c.APIKey = "x"; c.LLMProvider = "other" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.fillDerived()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.fillDerived()

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	for _, d := range []string{
		cfg.PriceDataDir(),
		filepath.Dir(cfg.BiasCachePath),
		filepath.Dir(cfg.AuditLogPath),
	} {
		info, err := os.Stat(d)
		if err != nil || !info.IsDir() {
			t.Errorf("directory %s missing after EnsureDirectories", d)
		}
	}
}
