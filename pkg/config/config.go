// Package config loads ingest settings from a YAML file and INGEST_*
// environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds process-wide settings. Command-line flags override it.
type Config struct {
	LogLevel    string   `yaml:"log_level"`
	LogFormat   string   `yaml:"log_format"`
	BundleRoot  string   `yaml:"bundle_root"`
	HTTPTimeout Duration `yaml:"http_timeout"`
	MaxSize     int64    `yaml:"max_size"`
	Concurrency int      `yaml:"concurrency"`
	Recipes     []string `yaml:"recipes"`
	Metrics     bool     `yaml:"metrics"`
}

// Duration is a time.Duration that unmarshals from YAML strings (e.g. "30s").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the standard time.Duration.
func (d Duration) Duration() time.Duration { return time.Duration(d) }

// Default returns the built-in settings.
func Default() Config {
	return Config{
		LogLevel:    "info",
		LogFormat:   "text",
		HTTPTimeout: Duration(30 * time.Second),
		MaxSize:     256 << 20,
		Concurrency: 4,
	}
}

// Load returns Default overlaid with the YAML file at path. An empty path
// skips the file. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := Parse(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config %q: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML into cfg, leaving absent keys untouched.
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overlays INGEST_* variables read through getenv, usually
// os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	c.LogLevel = getEnv(getenv, "INGEST_LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv(getenv, "INGEST_LOG_FORMAT", c.LogFormat)
	c.BundleRoot = getEnv(getenv, "INGEST_BUNDLE_ROOT", c.BundleRoot)

	if v := getenv("INGEST_HTTP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("INGEST_HTTP_TIMEOUT: %w", err)
		}
		c.HTTPTimeout = Duration(d)
	}
	if v := getenv("INGEST_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("INGEST_CONCURRENCY: %w", err)
		}
		c.Concurrency = n
	}
	if v := getenv("INGEST_MAX_SIZE"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("INGEST_MAX_SIZE: %w", err)
		}
		c.MaxSize = n
	}
	if v := getenv("INGEST_METRICS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("INGEST_METRICS: %w", err)
		}
		c.Metrics = b
	}
	return nil
}

func getEnv(getenv func(string) string, key, defaultValue string) string {
	if value := getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q (want debug|info|warn|error)", c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q (want text|json)", c.LogFormat)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http_timeout must be positive, got %s", c.HTTPTimeout.Duration())
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.MaxSize < 0 {
		return fmt.Errorf("max_size must not be negative, got %d", c.MaxSize)
	}
	return nil
}
