package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ravi-parthasarathy/ingest/pkg/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ingest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `
log_level: debug
log_format: json
bundle_root: /srv/bundle
http_timeout: 5s
concurrency: 8
recipes:
  - recipes/tiff.dot
metrics: true
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "/srv/bundle", cfg.BundleRoot)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout.Duration())
	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, []string{"recipes/tiff.dot"}, cfg.Recipes)
	assert.True(t, cfg.Metrics)
	// Absent keys keep their defaults.
	assert.Equal(t, config.Default().MaxSize, cfg.MaxSize)
}

func TestLoadEmptyFile(t *testing.T) {
	t.Parallel()
	cfg, err := config.Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"unknown key":  "log_levle: debug\n",
		"bad duration": "http_timeout: soon\n",
		"bad yaml":     "log_level: [unterminated\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := config.Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}

	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()
	env := map[string]string{
		"INGEST_LOG_LEVEL":    "warn",
		"INGEST_HTTP_TIMEOUT": "2m",
		"INGEST_CONCURRENCY":  "16",
		"INGEST_METRICS":      "true",
		"INGEST_MAX_SIZE":     "1024",
	}
	cfg := config.Default()
	cfg.LogFormat = "json"
	require.NoError(t, cfg.ApplyEnv(func(k string) string { return env[k] }))

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat, "unset variables keep the file value")
	assert.Equal(t, 2*time.Minute, cfg.HTTPTimeout.Duration())
	assert.Equal(t, 16, cfg.Concurrency)
	assert.Equal(t, int64(1024), cfg.MaxSize)
	assert.True(t, cfg.Metrics)
}

func TestApplyEnvRejectsBadValues(t *testing.T) {
	t.Parallel()
	for key, value := range map[string]string{
		"INGEST_HTTP_TIMEOUT": "forever",
		"INGEST_CONCURRENCY":  "many",
		"INGEST_METRICS":      "perhaps",
		"INGEST_MAX_SIZE":     "big",
	} {
		cfg := config.Default()
		err := cfg.ApplyEnv(func(k string) string {
			if k == key {
				return value
			}
			return ""
		})
		assert.Error(t, err, key)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	cases := map[string]func(*config.Config){
		"log level":   func(c *config.Config) { c.LogLevel = "verbose" },
		"log format":  func(c *config.Config) { c.LogFormat = "xml" },
		"timeout":     func(c *config.Config) { c.HTTPTimeout = 0 },
		"concurrency": func(c *config.Config) { c.Concurrency = 0 },
		"max size":    func(c *config.Config) { c.MaxSize = -1 },
	}
	for name, mutate := range cases {
		cfg := config.Default()
		mutate(&cfg)
		assert.Error(t, cfg.Validate(), name)
	}
}
