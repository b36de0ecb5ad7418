// Package config holds the engine's static configuration: queue and
// worker-pool sizing, observability settings, and the optional
// introspection gRPC listener. The C-ABI library loads it once when the
// library initialises and never mutates it afterward.
package config

import (
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DispatchConfig controls the command dispatcher and callback pool.
type DispatchConfig struct {
	QueueCapacity      int `yaml:"queue_capacity"`       // bounded command channel size
	CallbackWorkers    int `yaml:"callback_workers"`     // blocking-capable pool size for host callbacks
	SetupRetryAttempts int `yaml:"setup_retry_attempts"` // bounded implicit-setup retry
}

// TracingConfig holds OpenTelemetry tracing settings for per-command spans.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`     // OTLP/HTTP collector endpoint
	ServiceName string  `yaml:"service_name"`
	SampleRate  float64 `yaml:"sample_rate"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
	ListenAddr string `yaml:"listen_addr"` // /metrics listen address; loaded but no listener is started from it
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// IntrospectionConfig holds the optional read-only gRPC admin service.
type IntrospectionConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"` // default 127.0.0.1:9090, same-host only
}

// Config is the engine's central configuration.
type Config struct {
	Dispatch      DispatchConfig      `yaml:"dispatch"`
	Tracing       TracingConfig       `yaml:"tracing"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Logging       LoggingConfig       `yaml:"logging"`
	Introspection IntrospectionConfig `yaml:"introspection"`
}

// DefaultConfig returns a Config with the engine's baseline defaults.
func DefaultConfig() *Config {
	return &Config{
		Dispatch: DispatchConfig{
			QueueCapacity:      100,
			CallbackWorkers:    16,
			SetupRetryAttempts: 10,
		},
		Tracing: TracingConfig{
			Enabled:     false,
			Endpoint:    "localhost:4318",
			ServiceName: "lancebridge",
			SampleRate:  1.0,
		},
		Metrics: MetricsConfig{
			Enabled:    true,
			Namespace:  "lancebridge",
			ListenAddr: "",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Introspection: IntrospectionConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9090",
		},
	}
}

// LoadFromFile loads configuration from a YAML file, starting from defaults
// so a partial file only overrides the fields it sets.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromEnv applies LANCEBRIDGE_* environment variable overrides in place.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("LANCEBRIDGE_QUEUE_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Dispatch.QueueCapacity = n
		}
	}
	if v := os.Getenv("LANCEBRIDGE_CALLBACK_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Dispatch.CallbackWorkers = n
		}
	}
	if v := os.Getenv("LANCEBRIDGE_SETUP_RETRY_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Dispatch.SetupRetryAttempts = n
		}
	}
	if v := os.Getenv("LANCEBRIDGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LANCEBRIDGE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("LANCEBRIDGE_TRACING_ENABLED"); v != "" {
		cfg.Tracing.Enabled = parseBool(v)
	}
	if v := os.Getenv("LANCEBRIDGE_TRACING_ENDPOINT"); v != "" {
		cfg.Tracing.Endpoint = v
	}
	if v := os.Getenv("LANCEBRIDGE_TRACING_SAMPLE_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Tracing.SampleRate = f
		}
	}
	if v := os.Getenv("LANCEBRIDGE_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("LANCEBRIDGE_METRICS_LISTEN_ADDR"); v != "" {
		cfg.Metrics.ListenAddr = v
	}
	if v := os.Getenv("LANCEBRIDGE_INTROSPECTION_ENABLED"); v != "" {
		cfg.Introspection.Enabled = parseBool(v)
	}
	if v := os.Getenv("LANCEBRIDGE_INTROSPECTION_ADDR"); v != "" {
		cfg.Introspection.Addr = v
	}
}

func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes"
}
