// Package config loads service configuration from defaults, an optional YAML
// file and MEDCONNECT_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultMaxDocumentBytes is the largest accepted upload (10 MiB).
const DefaultMaxDocumentBytes int64 = 10 * 1024 * 1024

// Config is the root service configuration.
type Config struct {
	ServiceName string    `yaml:"service_name"`
	Log         Log       `yaml:"log"`
	Storage     Storage   `yaml:"storage"`
	Blob        Blob      `yaml:"blob"`
	Notify      Notify    `yaml:"notify"`
	Documents   Documents `yaml:"documents"`
	Matching    Matching  `yaml:"matching"`
	Metrics     Metrics   `yaml:"metrics"`
}

// Log configures the zap logger.
type Log struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // json|console
}

// Storage selects the entity store backend.
type Storage struct {
	Driver      string `yaml:"driver"` // memory|sqlite|postgres
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// Blob selects the document blob backend.
type Blob struct {
	Driver string `yaml:"driver"` // memory|fs|s3
	FSRoot string `yaml:"fs_root"`
	S3     S3     `yaml:"s3"`
}

// S3 configures the S3 blob driver. Credentials come from the default AWS chain.
type S3 struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

// Notify selects the notification transport.
type Notify struct {
	Driver        string `yaml:"driver"` // memory|redis|none
	Redis         Redis  `yaml:"redis"`
	ChannelPrefix string `yaml:"channel_prefix"`
}

// Redis holds connection settings for the Redis notifier.
type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Documents configures upload validation.
type Documents struct {
	MaxBytes int64 `yaml:"max_bytes"`
}

// Matching configures the matching engine.
type Matching struct {
	Threshold int `yaml:"threshold"`
}

// Metrics configures the Prometheus operation metrics.
type Metrics struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ServiceName: "medconnect",
		Log:         Log{Level: "info", Format: "json"},
		Storage:     Storage{Driver: "memory", SQLitePath: "medconnect.db"},
		Blob:        Blob{Driver: "memory", FSRoot: "./blobdata", S3: S3{Region: "us-east-1"}},
		Notify:      Notify{Driver: "memory", Redis: Redis{Addr: "localhost:6379"}, ChannelPrefix: "medconnect:notify"},
		Documents:   Documents{MaxBytes: DefaultMaxDocumentBytes},
		Matching:    Matching{Threshold: 60},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// empty) and the environment, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	integer := func(name string, set func(int64)) {
		v, ok := lookup(name)
		if !ok || v == "" {
			return
		}
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		set(n)
	}
	boolean := func(name string, dst *bool) {
		v, ok := lookup(name)
		if !ok || v == "" {
			return
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		*dst = b
	}

	str("MEDCONNECT_SERVICE_NAME", &c.ServiceName)
	str("MEDCONNECT_LOG_LEVEL", &c.Log.Level)
	str("MEDCONNECT_LOG_FORMAT", &c.Log.Format)
	str("MEDCONNECT_STORAGE_DRIVER", &c.Storage.Driver)
	str("MEDCONNECT_SQLITE_PATH", &c.Storage.SQLitePath)
	str("MEDCONNECT_POSTGRES_DSN", &c.Storage.PostgresDSN)
	str("MEDCONNECT_BLOB_DRIVER", &c.Blob.Driver)
	str("MEDCONNECT_BLOB_FS_ROOT", &c.Blob.FSRoot)
	str("MEDCONNECT_BLOB_S3_BUCKET", &c.Blob.S3.Bucket)
	str("MEDCONNECT_BLOB_S3_REGION", &c.Blob.S3.Region)
	str("MEDCONNECT_BLOB_S3_ENDPOINT", &c.Blob.S3.Endpoint)
	boolean("MEDCONNECT_BLOB_S3_PATH_STYLE", &c.Blob.S3.PathStyle)
	str("MEDCONNECT_NOTIFY_DRIVER", &c.Notify.Driver)
	str("MEDCONNECT_NOTIFY_CHANNEL_PREFIX", &c.Notify.ChannelPrefix)
	str("MEDCONNECT_REDIS_ADDR", &c.Notify.Redis.Addr)
	str("MEDCONNECT_REDIS_PASSWORD", &c.Notify.Redis.Password)
	integer("MEDCONNECT_REDIS_DB", func(n int64) { c.Notify.Redis.DB = int(n) })
	integer("MEDCONNECT_DOCUMENTS_MAX_BYTES", func(n int64) { c.Documents.MaxBytes = n })
	integer("MEDCONNECT_MATCHING_THRESHOLD", func(n int64) { c.Matching.Threshold = int(n) })
	boolean("MEDCONNECT_METRICS_ENABLED", &c.Metrics.Enabled)
	return errors.Join(errs...)
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	oneOf := func(field, value string, allowed ...string) {
		for _, a := range allowed {
			if value == a {
				return
			}
		}
		errs = append(errs, fmt.Errorf("%s: unsupported value %q (want one of %s)", field, value, strings.Join(allowed, "|")))
	}
	oneOf("storage.driver", c.Storage.Driver, "memory", "sqlite", "postgres")
	oneOf("blob.driver", c.Blob.Driver, "memory", "fs", "s3")
	oneOf("notify.driver", c.Notify.Driver, "memory", "redis", "none")
	oneOf("log.format", c.Log.Format, "json", "console")
	if c.Blob.Driver == "s3" && c.Blob.S3.Bucket == "" {
		errs = append(errs, errors.New("blob.s3.bucket: required for s3 driver"))
	}
	if c.Notify.Driver == "redis" && c.Notify.Redis.Addr == "" {
		errs = append(errs, errors.New("notify.redis.addr: required for redis driver"))
	}
	if c.Documents.MaxBytes <= 0 {
		errs = append(errs, fmt.Errorf("documents.max_bytes: must be positive, got %d", c.Documents.MaxBytes))
	}
	if c.Matching.Threshold < 1 || c.Matching.Threshold > 100 {
		errs = append(errs, fmt.Errorf("matching.threshold: must be within 1..100, got %d", c.Matching.Threshold))
	}
	return errors.Join(errs...)
}
