package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the application's configuration model.
// It captures provider credentials, ingestion policy, retention, and the
// trigger surface.
type Config struct {
	Provider  ProviderConfig  `yaml:"provider"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Retention RetentionConfig `yaml:"retention"`
	Trigger   TriggerConfig   `yaml:"trigger"`
	Storage   StorageConfig   `yaml:"storage"`
	// MetricsAddr serves /metrics and /health when set, e.g. ":9090".
	MetricsAddr string `yaml:"metricsAddr"`
}

type ProviderConfig struct {
	// Name selects the adapter family: "xapi" or "syndication".
	Name string `yaml:"name"`
	// BaseURL overrides the adapter's default endpoint (tests, proxies).
	BaseURL string `yaml:"baseURL"`
	// Bearer token for the upstream API. If empty, read from env X_BEARER_TOKEN.
	BearerToken string `yaml:"bearerToken"`
}

type IngestConfig struct {
	// DailyBudget is the per-user cap on items requested across all
	// creators in one scheduling pass.
	DailyBudget int `yaml:"dailyBudget"`
	// StalenessHours is how old a creator's last successful fetch may be
	// before it is due again.
	StalenessHours int `yaml:"stalenessHours"`
	// PaceMillis is the minimum delay between successive upstream calls
	// within a run.
	PaceMillis int `yaml:"paceMillis"`
	// Quiet hours (UTC) during which scheduled runs are deferred.
	QuietHours []int `yaml:"quietHours"`
}

type RetentionConfig struct {
	// Days a fetched item may age past its publication time before the
	// cleanup sweep removes it.
	Days int `yaml:"days"`
}

type TriggerConfig struct {
	Addr string `yaml:"addr"`
	// Secret shared with the external scheduling trigger. If empty, read
	// from env TRIGGER_SECRET.
	Secret string `yaml:"secret"`
	// ManualPerHour caps on-demand refreshes per user per hour.
	ManualPerHour int `yaml:"manualPerHour"`
}

type StorageConfig struct {
	DBPath string `yaml:"dbPath"`
	// RedisAddr switches the request counter to a shared cache for
	// multi-instance deployments. Empty means in-memory.
	RedisAddr string `yaml:"redisAddr"`
}

// Default returns a sensible default configuration.
func Default() Config {
	return Config{
		Provider:  ProviderConfig{Name: "xapi"},
		Ingest:    IngestConfig{DailyBudget: 100, StalenessHours: 24, PaceMillis: 1000, QuietHours: nil},
		Retention: RetentionConfig{Days: 7},
		Trigger:   TriggerConfig{Addr: ":8085", ManualPerHour: 4},
		Storage:   StorageConfig{DBPath: "./creatorpulse.db"},
	}
}

// ResolveEnv fills in config fields from environment variables if not set.
func (c *Config) ResolveEnv() {
	if c.Provider.BearerToken == "" {
		c.Provider.BearerToken = os.Getenv("X_BEARER_TOKEN")
	}
	if c.Trigger.Secret == "" {
		c.Trigger.Secret = os.Getenv("TRIGGER_SECRET")
	}
	if c.Storage.RedisAddr == "" {
		c.Storage.RedisAddr = os.Getenv("REDIS_ADDR")
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = os.Getenv("METRICS_ADDR")
	}
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	cfg.ResolveEnv()
	return cfg, nil
}

// Save writes YAML config to path, creating directories as needed.
func Save(path string, cfg Config) error {
	if path == "" {
		return errors.New("empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
