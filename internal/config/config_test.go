package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Crawl.Concurrency != 4 || cfg.Crawl.Fanout != 10 {
		t.Fatalf("unexpected crawl defaults: %+v", cfg.Crawl)
	}
	if cfg.Storage.Backend != StorageNoop {
		t.Fatalf("expected noop storage, got %q", cfg.Storage.Backend)
	}
	if got := cfg.FetchCooldown(); got != 15*time.Second {
		t.Fatalf("expected 15s cooldown, got %v", got)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  enabled: true
  port: 9090
crawl:
  concurrency: 15
  fanout: 8
http:
  user_agent: archive-bot/1.0
  timeout_seconds: 45
  cooldown_seconds: 5
storage:
  backend: gcs
  gcs_bucket: bucket
  prefix: corpora
db:
  dsn: postgres://localhost/crawler
pubsub:
  project_id: proj
  topic_name: datasets
logging:
  development: false
  level: warn
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !cfg.Server.Enabled || cfg.Server.Port != 9090 {
		t.Fatalf("expected server overrides to apply: %+v", cfg.Server)
	}
	if cfg.Crawl.Concurrency != 15 || cfg.Crawl.Fanout != 8 {
		t.Fatalf("expected crawl overrides to apply: %+v", cfg.Crawl)
	}
	if cfg.Storage.Backend != StorageGCS || cfg.Storage.GCSBucket != "bucket" || cfg.Storage.Prefix != "corpora" {
		t.Fatalf("expected storage overrides to apply: %+v", cfg.Storage)
	}
	if cfg.Storage.ContentType != "text/csv; charset=utf-8" {
		t.Fatalf("expected default content type to survive, got %q", cfg.Storage.ContentType)
	}
	if cfg.PubSub.TopicName != "datasets" || cfg.DB.DSN == "" {
		t.Fatalf("expected notification settings to load")
	}
	if cfg.Logging.Development || cfg.Logging.Level != "warn" {
		t.Fatalf("expected logging overrides: %+v", cfg.Logging)
	}
	if got := cfg.FetchTimeout(); got != 45*time.Second {
		t.Fatalf("expected fetch timeout 45s, got %v", got)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CRAWLER_CRAWL_CONCURRENCY", "7")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Crawl.Concurrency != 7 {
		t.Fatalf("expected env override, got %d", cfg.Crawl.Concurrency)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server:  ServerConfig{Port: 8080},
		Crawl:   CrawlConfig{Concurrency: 1, Fanout: 1},
		HTTP:    HTTPConfig{TimeoutSeconds: 10},
		Storage: StorageConfig{Backend: StorageNoop},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config should be valid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{name: "invalid port", mutate: func(c *Config) { c.Server.Enabled = true; c.Server.Port = 0 }, want: "server.port"},
		{name: "invalid concurrency", mutate: func(c *Config) { c.Crawl.Concurrency = 0 }, want: "crawl.concurrency"},
		{name: "invalid fanout", mutate: func(c *Config) { c.Crawl.Fanout = 0 }, want: "crawl.fanout"},
		{name: "invalid timeout", mutate: func(c *Config) { c.HTTP.TimeoutSeconds = 0 }, want: "http.timeout_seconds"},
		{name: "negative cooldown", mutate: func(c *Config) { c.HTTP.CooldownSeconds = -1 }, want: "http.cooldown_seconds"},
		{name: "gcs without bucket", mutate: func(c *Config) { c.Storage.Backend = StorageGCS }, want: "storage.gcs_bucket"},
		{name: "local without dir", mutate: func(c *Config) { c.Storage.Backend = StorageLocal }, want: "storage.local_dir"},
		{name: "unknown backend", mutate: func(c *Config) { c.Storage.Backend = "s3" }, want: "storage.backend"},
		{name: "topic without project", mutate: func(c *Config) { c.PubSub.TopicName = "t" }, want: "pubsub.project_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
