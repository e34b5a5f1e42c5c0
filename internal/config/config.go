// Package config loads the archiver configuration from a YAML file with
// environment-variable overrides for deployment-time settings.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/takefinance/payslip-archiver/internal/logging"
	"github.com/takefinance/payslip-archiver/internal/metrics"
	"github.com/takefinance/payslip-archiver/internal/render"
	"github.com/takefinance/payslip-archiver/internal/source"
	"github.com/takefinance/payslip-archiver/internal/storage"
	"github.com/takefinance/payslip-archiver/internal/tracker"
)

// Config is the full archiver configuration.
type Config struct {
	Logging    logging.Config      `yaml:"logging"`
	Metrics    metrics.Config      `yaml:"metrics"`
	Source     source.Config       `yaml:"source"`
	Storage    storage.Config      `yaml:"storage"`
	Ledger     tracker.StoreConfig `yaml:"ledger"`
	Render     render.Config       `yaml:"render"`
	Processing ProcessingConfig    `yaml:"processing"`
	Watch      WatchConfig         `yaml:"watch"`
}

// ProcessingConfig holds batch-run settings.
type ProcessingConfig struct {
	ForceRecreate       bool `yaml:"force_recreate"`
	WriteReport         bool `yaml:"write_report"`
	CleanupSessionsDays int  `yaml:"cleanup_sessions_days"`
}

// WatchConfig configures the inbox watcher mode.
type WatchConfig struct {
	Dir           string `yaml:"dir"`
	SettleSeconds int    `yaml:"settle_seconds"` // wait for file size to stabilize
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Logging: logging.Config{Format: "text", Level: "info"},
		Metrics: metrics.Config{Enabled: false, Address: ":9090"},
		Source:  source.Config{Mode: "local"},
		Storage: storage.Config{Backend: "local", LocalDir: "./data", Prefix: "payslips/"},
		Ledger:  tracker.StoreConfig{Backend: "file", Path: "processing_status.json"},
		Render:  render.Config{Currency: "USD"},
		Processing: ProcessingConfig{
			WriteReport:         true,
			CleanupSessionsDays: 30,
		},
		Watch: WatchConfig{SettleSeconds: 2},
	}
}

// Load reads the YAML file (if path is non-empty) over the defaults, then
// applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv overrides settings commonly set per deployment.
func applyEnv(cfg *Config) {
	setStr(&cfg.Logging.Level, "LOG_LEVEL")
	setStr(&cfg.Logging.Format, "LOG_FORMAT")
	setStr(&cfg.Metrics.Address, "METRICS_ADDR")
	setBool(&cfg.Metrics.Enabled, "METRICS_ENABLED")
	setStr(&cfg.Source.Mode, "SOURCE_MODE")
	setStr(&cfg.Source.LocalDir, "SOURCE_DIR")
	setStr(&cfg.Source.BucketURL, "SOURCE_BUCKET_URL")
	setStr(&cfg.Source.Sheet, "SOURCE_SHEET")
	setStr(&cfg.Storage.Backend, "STORAGE_BACKEND")
	setStr(&cfg.Storage.LocalDir, "STORAGE_DIR")
	setStr(&cfg.Storage.GCSBucket, "STORAGE_GCS_BUCKET")
	setStr(&cfg.Storage.S3Bucket, "STORAGE_S3_BUCKET")
	setStr(&cfg.Storage.S3Endpoint, "STORAGE_S3_ENDPOINT")
	setStr(&cfg.Storage.S3Region, "STORAGE_S3_REGION")
	setStr(&cfg.Storage.Prefix, "STORAGE_PREFIX")
	setStr(&cfg.Ledger.Backend, "LEDGER_BACKEND")
	setStr(&cfg.Ledger.Path, "LEDGER_PATH")
	setBool(&cfg.Processing.ForceRecreate, "FORCE_RECREATE")
	setInt(&cfg.Processing.CleanupSessionsDays, "CLEANUP_SESSIONS_DAYS")
	setStr(&cfg.Watch.Dir, "WATCH_DIR")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "true" || v == "1"
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}
