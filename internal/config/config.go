// Package config loads labcore runtime configuration from an optional YAML file
// and LABCORE_* environment variables. Environment values win over the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Storage selects the persistent store backend.
type Storage struct {
	Driver      string `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// Blob selects the blob store used for provenance exports.
type Blob struct {
	Driver      string `yaml:"driver"`
	FSRoot      string `yaml:"fs_root"`
	S3Bucket    string `yaml:"s3_bucket"`
	S3Region    string `yaml:"s3_region"`
	S3Endpoint  string `yaml:"s3_endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// Log configures the zap logger.
type Log struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Metrics selects the metrics recorder and where to serve it.
type Metrics struct {
	Driver string `yaml:"driver"`
	Listen string `yaml:"listen"`
}

// Tracing selects the span exporter.
type Tracing struct {
	Driver string `yaml:"driver"`
}

// Config is the full runtime configuration.
type Config struct {
	Storage Storage `yaml:"storage"`
	Blob    Blob    `yaml:"blob"`
	Log     Log     `yaml:"log"`
	Metrics Metrics `yaml:"metrics"`
	Tracing Tracing `yaml:"tracing"`
}

// Default returns the configuration used when nothing is supplied.
func Default() Config {
	return Config{
		Storage: Storage{Driver: "sqlite", SQLitePath: "labcore.db"},
		Blob:    Blob{Driver: "fs", FSRoot: "./blobdata", S3Region: "us-east-1"},
		Log:     Log{Level: "info"},
		Metrics: Metrics{Driver: "expvar", Listen: "127.0.0.1:9464"},
		Tracing: Tracing{Driver: "none"},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when path
// is empty) and the process environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		var loaded Config
		if err := yaml.Unmarshal(data, &loaded); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
		cfg.Merge(loaded)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Merge copies non-zero values from source into c.
func (c *Config) Merge(source Config) {
	setString(&c.Storage.Driver, source.Storage.Driver)
	setString(&c.Storage.SQLitePath, source.Storage.SQLitePath)
	setString(&c.Storage.PostgresDSN, source.Storage.PostgresDSN)
	setString(&c.Blob.Driver, source.Blob.Driver)
	setString(&c.Blob.FSRoot, source.Blob.FSRoot)
	setString(&c.Blob.S3Bucket, source.Blob.S3Bucket)
	setString(&c.Blob.S3Region, source.Blob.S3Region)
	setString(&c.Blob.S3Endpoint, source.Blob.S3Endpoint)
	c.Blob.S3PathStyle = c.Blob.S3PathStyle || source.Blob.S3PathStyle
	setString(&c.Log.Level, source.Log.Level)
	c.Log.Development = c.Log.Development || source.Log.Development
	setString(&c.Metrics.Driver, source.Metrics.Driver)
	setString(&c.Metrics.Listen, source.Metrics.Listen)
	setString(&c.Tracing.Driver, source.Tracing.Driver)
}

// ApplyEnv overrides fields from environment variables:
//
//	LABCORE_STORAGE_DRIVER: memory|sqlite|postgres
//	LABCORE_SQLITE_PATH, LABCORE_POSTGRES_DSN
//	LABCORE_BLOB_DRIVER: fs|s3|memory
//	LABCORE_BLOB_FS_ROOT, LABCORE_BLOB_S3_BUCKET, LABCORE_BLOB_S3_REGION,
//	LABCORE_BLOB_S3_ENDPOINT, LABCORE_BLOB_S3_PATH_STYLE
//	LABCORE_LOG_LEVEL, LABCORE_LOG_DEVELOPMENT
//	LABCORE_METRICS_DRIVER: expvar|prometheus|none, LABCORE_METRICS_LISTEN
//	LABCORE_TRACING_DRIVER: none|json|otel
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"LABCORE_STORAGE_DRIVER":   &c.Storage.Driver,
		"LABCORE_SQLITE_PATH":      &c.Storage.SQLitePath,
		"LABCORE_POSTGRES_DSN":     &c.Storage.PostgresDSN,
		"LABCORE_BLOB_DRIVER":      &c.Blob.Driver,
		"LABCORE_BLOB_FS_ROOT":     &c.Blob.FSRoot,
		"LABCORE_BLOB_S3_BUCKET":   &c.Blob.S3Bucket,
		"LABCORE_BLOB_S3_REGION":   &c.Blob.S3Region,
		"LABCORE_BLOB_S3_ENDPOINT": &c.Blob.S3Endpoint,
		"LABCORE_LOG_LEVEL":        &c.Log.Level,
		"LABCORE_METRICS_DRIVER":   &c.Metrics.Driver,
		"LABCORE_METRICS_LISTEN":   &c.Metrics.Listen,
		"LABCORE_TRACING_DRIVER":   &c.Tracing.Driver,
	}
	for key, target := range strs {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*target = strings.TrimSpace(v)
		}
	}
	bools := map[string]*bool{
		"LABCORE_BLOB_S3_PATH_STYLE": &c.Blob.S3PathStyle,
		"LABCORE_LOG_DEVELOPMENT":    &c.Log.Development,
	}
	for key, target := range bools {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("parse %s: %w", key, err)
		}
		*target = b
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
