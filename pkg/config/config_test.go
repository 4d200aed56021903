package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Indexer.Profile != "simple" {
		t.Errorf("expected simple profile, got %q", cfg.Indexer.Profile)
	}
	if cfg.Search.MaxGap != 1 {
		t.Errorf("expected default max gap 1, got %d", cfg.Search.MaxGap)
	}
	if cfg.Indexer.StripLevelMarks {
		t.Error("level marks should be kept by default")
	}
	if cfg.Kafka.Topics.IndexComplete != "index.complete" {
		t.Errorf("unexpected index complete topic %q", cfg.Kafka.Topics.IndexComplete)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
indexer:
  profile: english
  preamble: true
  refreshInterval: 10m
search:
  maxGap: 3
source:
  kind: gdrive
  folderId: folder-1
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DS_SOURCE_CREDENTIALS_FILE", "/secrets/sa.json")
	t.Setenv("DS_SERVER_PORT", "9999")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Indexer.Profile != "english" || !cfg.Indexer.Preamble {
		t.Errorf("indexer config not applied: %+v", cfg.Indexer)
	}
	if cfg.Indexer.RefreshInterval != 10*time.Minute {
		t.Errorf("expected 10m refresh interval, got %v", cfg.Indexer.RefreshInterval)
	}
	if cfg.Search.MaxGap != 3 {
		t.Errorf("expected max gap 3, got %d", cfg.Search.MaxGap)
	}
	if cfg.Search.DefaultLimit != 20 {
		t.Errorf("unset fields should keep defaults, got limit %d", cfg.Search.DefaultLimit)
	}
	if cfg.Source.CredentialsFile != "/secrets/sa.json" {
		t.Errorf("env override not applied: %q", cfg.Source.CredentialsFile)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("expected port 9999, got %d", cfg.Server.Port)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"gdrive without folder", func(c *Config) { c.Source.Kind = "gdrive" }},
		{"filesystem without dir", func(c *Config) { c.Source.Dir = "" }},
		{"unknown source", func(c *Config) { c.Source.Kind = "ftp" }},
		{"zero gap", func(c *Config) { c.Search.MaxGap = 0 }},
		{"non-positive k", func(c *Config) { c.Search.LengthK = 0 }},
		{"limit above max", func(c *Config) { c.Search.DefaultLimit = c.Search.MaxResults + 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestDSN(t *testing.T) {
	dsn := defaultConfig().Postgres.DSN()
	want := "host=localhost port=5432 user=docsearch password=localdev dbname=docsearch sslmode=disable"
	if dsn != want {
		t.Errorf("DSN = %q, want %q", dsn, want)
	}
}
