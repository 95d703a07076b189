package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Backup frequencies
const (
	FrequencyHourly  = "hourly"
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
)

// Config is the process-wide configuration, loaded once at startup.
// Mutable knobs are swapped atomically via the Watcher; everything else
// requires a restart.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Backup    BackupConfig    `yaml:"backup"`
	Store     StoreConfig     `yaml:"store"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Objective ObjectiveConfig `yaml:"objectives"`
}

type ServerConfig struct {
	Port     int    `yaml:"port" default:"8080"`
	LogLevel string `yaml:"log_level" default:"info"`
}

// BackupConfig drives the orchestrator and retention manager.
type BackupConfig struct {
	Frequency   string        `yaml:"frequency" default:"daily"`
	Retention   RetentionCaps `yaml:"retention"`
	Encryption  bool          `yaml:"encryption"`
	Compression bool          `yaml:"compression"`
	Components  []string      `yaml:"components"`
}

// RetentionCaps is the per-tier maximum number of retained points.
type RetentionCaps struct {
	Hourly  int `yaml:"hourly" default:"24"`
	Daily   int `yaml:"daily" default:"7"`
	Weekly  int `yaml:"weekly" default:"4"`
	Monthly int `yaml:"monthly" default:"12"`
}

type StoreConfig struct {
	Mode      string `yaml:"mode" default:"local"` // "local" or "s3"
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix" default:"backups"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	LocalPath string `yaml:"local_path"` // optional mirror for fast restores
}

type CatalogConfig struct {
	DSN          string        `yaml:"dsn"` // empty = in-memory only
	StaleTimeout time.Duration `yaml:"stale_timeout" default:"1h"`
}

// ObjectiveConfig holds the contractual RPO/RTO ceilings.
type ObjectiveConfig struct {
	RPOMinutes      int   `yaml:"rpo_minutes" default:"1440"`
	RTOMinutes      int   `yaml:"rto_minutes" default:"60"`
	StorageMaxBytes int64 `yaml:"storage_max_bytes"`
}

// Default returns a config with the documented defaults filled in.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080, LogLevel: "info"},
		Backup: BackupConfig{
			Frequency: FrequencyDaily,
			Retention: RetentionCaps{Hourly: 24, Daily: 7, Weekly: 4, Monthly: 12},
		},
		Store:     StoreConfig{Mode: "local", Prefix: "backups"},
		Catalog:   CatalogConfig{StaleTimeout: time.Hour},
		Objective: ObjectiveConfig{RPOMinutes: 1440, RTOMinutes: 60},
	}
}

// Load reads a YAML config file on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path) // #nosec G304 - operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields other components rely on.
func (c *Config) Validate() error {
	switch c.Backup.Frequency {
	case FrequencyHourly, FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
	default:
		return fmt.Errorf("invalid backup frequency: %s", c.Backup.Frequency)
	}
	if c.Backup.Retention.Hourly < 0 || c.Backup.Retention.Daily < 0 ||
		c.Backup.Retention.Weekly < 0 || c.Backup.Retention.Monthly < 0 {
		return fmt.Errorf("retention caps must be non-negative")
	}
	if c.Objective.RPOMinutes <= 0 {
		return fmt.Errorf("rpo_minutes must be positive")
	}
	if c.Objective.RTOMinutes <= 0 {
		return fmt.Errorf("rto_minutes must be positive")
	}
	return nil
}

// Interval returns the scheduler interval for the configured frequency.
func (c *BackupConfig) Interval() time.Duration {
	switch c.Frequency {
	case FrequencyHourly:
		return time.Hour
	case FrequencyWeekly:
		return 7 * 24 * time.Hour
	case FrequencyMonthly:
		return 30 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Cap returns the retention cap for the named tier.
func (r RetentionCaps) Cap(tier string) int {
	switch tier {
	case FrequencyHourly:
		return r.Hourly
	case FrequencyDaily:
		return r.Daily
	case FrequencyWeekly:
		return r.Weekly
	case FrequencyMonthly:
		return r.Monthly
	default:
		return 0
	}
}
