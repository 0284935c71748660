// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type FetchConfig struct {
	Timeout time.Duration `yaml:"timeout"` // per-slot fetch deadline
}

type ArchiveConfig struct {
	OutputDirectory string `yaml:"output_directory"` // local staging root
	FileFormat      string `yaml:"file_format"`      // jsonl|csv
}

type LocalStorageConfig struct {
	Root string `yaml:"root"`
}

type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"` // optional, for S3-compatible stores
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type GCSConfig struct {
	Bucket          string `yaml:"bucket"`
	CredentialsFile string `yaml:"credentials_file"`
}

type StorageConfig struct {
	Backend       string             `yaml:"backend"`    // local|s3|gcs
	KeyPrefix     string             `yaml:"key_prefix"` // namespace shared storage roots
	UploadTimeout time.Duration      `yaml:"upload_timeout"`
	Local         LocalStorageConfig `yaml:"local"`
	S3            S3Config           `yaml:"s3"`
	GCS           GCSConfig          `yaml:"gcs"`
}

type SchedulerConfig struct {
	Timezone      string `yaml:"timezone"` // hour-boundary computation
	DailyCron     string `yaml:"daily_cron"`
	HourlyCron    string `yaml:"hourly_cron"`
	RetryCron     string `yaml:"retry_cron"`
	RetentionCron string `yaml:"retention_cron"`
}

type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Concurrency int           `yaml:"concurrency"` // bounded retry fan-out
	StaleAfter  time.Duration `yaml:"stale_after"` // reclaim threshold for stuck processing slots
}

type RetentionConfig struct {
	DBRetentionDays      int  `yaml:"db_retention_days"`
	StorageRetentionDays int  `yaml:"storage_retention_days"`
	DryRun               bool `yaml:"dry_run"` // report instead of delete
}

type WebConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"` // bearer key for mutating routes
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Storage   StorageConfig   `yaml:"storage"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Retry     RetryConfig     `yaml:"retry"`
	Retention RetentionConfig `yaml:"retention"`
	Web       WebConfig       `yaml:"web"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file, applies defaults, and validates. Any
// error returned here is fatal at startup; invalid configuration is
// never retried.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = 2 * time.Minute
	}
	if c.Archive.OutputDirectory == "" {
		c.Archive.OutputDirectory = "archives"
	}
	if c.Archive.FileFormat == "" {
		c.Archive.FileFormat = "jsonl"
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "local"
	}
	if c.Storage.UploadTimeout <= 0 {
		c.Storage.UploadTimeout = 5 * time.Minute
	}
	if c.Scheduler.Timezone == "" {
		c.Scheduler.Timezone = "UTC"
	}
	// A few minutes past the boundary so late writers for the closed
	// hour have landed before it is archived.
	if c.Scheduler.DailyCron == "" {
		c.Scheduler.DailyCron = "1 0 * * *"
	}
	if c.Scheduler.HourlyCron == "" {
		c.Scheduler.HourlyCron = "5 * * * *"
	}
	if c.Scheduler.RetryCron == "" {
		c.Scheduler.RetryCron = "*/10 * * * *"
	}
	if c.Scheduler.RetentionCron == "" {
		c.Scheduler.RetentionCron = "30 3 * * *"
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.Concurrency <= 0 {
		c.Retry.Concurrency = 4
	}
	if c.Retry.StaleAfter <= 0 {
		c.Retry.StaleAfter = 30 * time.Minute
	}
	if c.Retention.DBRetentionDays <= 0 {
		c.Retention.DBRetentionDays = 30
	}
	if c.Retention.StorageRetentionDays <= 0 {
		c.Retention.StorageRetentionDays = 180
	}
	if c.Web.Port == 0 {
		c.Web.Port = 8080
	}
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	switch c.Archive.FileFormat {
	case "jsonl", "csv":
	default:
		return fmt.Errorf("archive.file_format %q: want jsonl or csv", c.Archive.FileFormat)
	}
	switch c.Storage.Backend {
	case "local":
		if c.Storage.Local.Root == "" {
			return errors.New("storage.local.root is required for the local backend")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return errors.New("storage.s3.bucket is required for the s3 backend")
		}
	case "gcs":
		if c.Storage.GCS.Bucket == "" {
			return errors.New("storage.gcs.bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend %q: want local, s3 or gcs", c.Storage.Backend)
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("scheduler.timezone %q: %w", c.Scheduler.Timezone, err)
	}
	return nil
}

// Location resolves the configured timezone. Validation already proved it
// loads.
func (c *SchedulerConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
