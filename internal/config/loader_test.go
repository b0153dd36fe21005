// SPDX-License-Identifier: MIT
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := NewLoader("", "test").Load()
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.ImageFallback)
	assert.Equal(t, 5*time.Minute, cfg.SafetyCeiling)
	assert.Equal(t, 15*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.EmbedPoll)
	assert.Equal(t, "test", cfg.Version)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("imageFallback: 7s\nlistenAddr: \":9999\"\n"), 0o600))

	cfg, err := NewLoader(path, "test").Load()
	require.NoError(t, err)

	assert.Equal(t, 7*time.Second, cfg.ImageFallback)
	assert.Equal(t, ":9999", cfg.ListenAddr)
	// untouched fields keep defaults
	assert.Equal(t, 5*time.Minute, cfg.SafetyCeiling)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("imageFallback: 7s\n"), 0o600))
	t.Setenv("TOTEM_IMAGE_FALLBACK", "3s")

	cfg, err := NewLoader(path, "test").Load()
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.ImageFallback)
}

func TestLoadRejectsUnknownFileKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("imageFallbck: 7s\n"), 0o600))

	_, err := NewLoader(path, "test").Load()
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := NewLoader("/nonexistent/config.yaml", "test").Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"empty data dir", func(c *AppConfig) { c.DataDir = "" }},
		{"empty redis addr", func(c *AppConfig) { c.RedisAddr = "" }},
		{"sub-second heartbeat", func(c *AppConfig) { c.HeartbeatInterval = 100 * time.Millisecond }},
		{"zero image fallback", func(c *AppConfig) { c.ImageFallback = 0 }},
		{"tiny safety ceiling", func(c *AppConfig) { c.SafetyCeiling = time.Second }},
		{"embed poll too fast", func(c *AppConfig) { c.EmbedPoll = time.Millisecond }},
		{"cache concurrency out of range", func(c *AppConfig) { c.CacheConcurrency = 64 }},
		{"bad exporter", func(c *AppConfig) { c.OTELExporter = "udp" }},
		{"enabled otel without endpoint", func(c *AppConfig) { c.OTELEnabled = true; c.OTELExporter = "grpc" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			assert.ErrorIs(t, Validate(cfg), ErrInvalidConfig)
		})
	}

	assert.NoError(t, Validate(Defaults()))
}

func TestEnvParsersFallBackOnGarbage(t *testing.T) {
	t.Setenv("TOTEM_TEST_INT", "not-a-number")
	assert.Equal(t, 42, ParseInt("TOTEM_TEST_INT", 42))

	t.Setenv("TOTEM_TEST_DUR", "eleven")
	assert.Equal(t, time.Minute, ParseDuration("TOTEM_TEST_DUR", time.Minute))

	t.Setenv("TOTEM_TEST_BOOL", "maybe")
	assert.True(t, ParseBool("TOTEM_TEST_BOOL", true))

	t.Setenv("TOTEM_TEST_BOOL2", "yes")
	assert.True(t, ParseBool("TOTEM_TEST_BOOL2", false))
}
