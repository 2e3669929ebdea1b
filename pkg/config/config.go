// Package config loads and validates loader configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Sink, Loader, Enrich, Postgres, Kafka, Redis, Logging, Metrics).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level loader configuration.
type Config struct {
	Sink     SinkConfig     `yaml:"sink"`
	Loader   LoaderConfig   `yaml:"loader"`
	Enrich   EnrichConfig   `yaml:"enrich"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// SinkConfig names the target index and bounds calls to the document store.
// The endpoint itself comes from the command line.
type SinkConfig struct {
	Index string `yaml:"index"`
	// Timeout bounds a single chunk submission. Zero leaves the bound to the
	// sink's own I/O.
	Timeout       time.Duration `yaml:"timeout"`
	ProbeOnStart  bool          `yaml:"probeOnStart"`
	ProbeAttempts int           `yaml:"probeAttempts"`
	ProbeTimeout  time.Duration `yaml:"probeTimeout"`
}

// LoaderConfig controls how input lines are grouped into bulk requests.
type LoaderConfig struct {
	ChunkSize int `yaml:"chunkSize"`
}

// EnrichConfig controls campaign-tag extraction from the query-string field.
type EnrichConfig struct {
	Enabled        bool     `yaml:"enabled"`
	SourceField    string   `yaml:"sourceField"`
	Keys           []string `yaml:"keys"`
	TargetField    string   `yaml:"targetField"`
	Pipeline       string   `yaml:"pipeline"`
	OnMissingField string   `yaml:"onMissingField"`
}

// PostgresConfig holds pool settings for the postgres:// sink.
type PostgresConfig struct {
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// KafkaConfig holds producer settings for the kafka:// sink.
type KafkaConfig struct {
	BatchTimeout time.Duration `yaml:"batchTimeout"`
	MaxAttempts  int           `yaml:"maxAttempts"`
}

// RedisConfig holds pool and expiry settings for the redis:// sink.
type RedisConfig struct {
	PoolSize int           `yaml:"poolSize"`
	KeyTTL   time.Duration `yaml:"keyTTL"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with defaults for any missing
// values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Default returns the compiled-in configuration without consulting the
// environment.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		Sink: SinkConfig{
			Index:         "access-logs",
			ProbeOnStart:  true,
			ProbeAttempts: 3,
			ProbeTimeout:  5 * time.Second,
		},
		Loader: LoaderConfig{
			ChunkSize: 100,
		},
		Enrich: EnrichConfig{
			Enabled:        false,
			SourceField:    "cs-uri-query",
			Keys:           []string{"pk_campaign"},
			TargetField:    "campaign",
			Pipeline:       "accesslog-campaign",
			OnMissingField: "fail",
		},
		Postgres: PostgresConfig{
			MaxOpenConns:    4,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			BatchTimeout: 10 * time.Millisecond,
			MaxAttempts:  1,
		},
		Redis: RedisConfig{
			PoolSize: 4,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads LOADER_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOADER_SINK_INDEX"); v != "" {
		cfg.Sink.Index = v
	}
	if v := os.Getenv("LOADER_SINK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Sink.Timeout = d
		}
	}
	if v := os.Getenv("LOADER_SINK_PROBE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Sink.ProbeOnStart = b
		}
	}
	if v := os.Getenv("LOADER_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Loader.ChunkSize = n
		}
	}
	if v := os.Getenv("LOADER_ENRICH_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Enrich.Enabled = b
		}
	}
	if v := os.Getenv("LOADER_ENRICH_SOURCE_FIELD"); v != "" {
		cfg.Enrich.SourceField = v
	}
	if v := os.Getenv("LOADER_ENRICH_KEYS"); v != "" {
		cfg.Enrich.Keys = strings.Split(v, ",")
	}
	if v := os.Getenv("LOADER_ENRICH_TARGET_FIELD"); v != "" {
		cfg.Enrich.TargetField = v
	}
	if v := os.Getenv("LOADER_ENRICH_PIPELINE"); v != "" {
		cfg.Enrich.Pipeline = v
	}
	if v := os.Getenv("LOADER_ENRICH_ON_MISSING"); v != "" {
		cfg.Enrich.OnMissingField = v
	}
	if v := os.Getenv("LOADER_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOADER_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("LOADER_METRICS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Metrics.Enabled = b
		}
	}
	if v := os.Getenv("LOADER_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}
