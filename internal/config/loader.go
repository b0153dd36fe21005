// SPDX-License-Identifier: MIT

package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence ENV > file > defaults.
type Loader struct {
	configPath string
	version    string
}

// NewLoader creates a new configuration loader.
func NewLoader(configPath, version string) *Loader {
	return &Loader{configPath: configPath, version: version}
}

// Load loads configuration in strict order: defaults, then file, then
// environment overrides, then validation.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.mergeFile(&cfg, l.configPath); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnv(&cfg)
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (l *Loader) mergeFile(cfg *AppConfig, path string) error {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from operator flag
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	return nil
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.DataDir = ParseString("TOTEM_DATA", cfg.DataDir)
	cfg.ScreenName = ParseString("TOTEM_SCREEN_NAME", cfg.ScreenName)
	cfg.LogLevel = ParseString("TOTEM_LOG_LEVEL", cfg.LogLevel)
	cfg.LogService = ParseString("TOTEM_LOG_SERVICE", cfg.LogService)
	cfg.RedisAddr = ParseString("TOTEM_REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = ParseString("TOTEM_REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = ParseInt("TOTEM_REDIS_DB", cfg.RedisDB)
	cfg.SyncPollInterval = ParseDuration("TOTEM_SYNC_POLL", cfg.SyncPollInterval)
	cfg.HeartbeatInterval = ParseDuration("TOTEM_HEARTBEAT", cfg.HeartbeatInterval)
	cfg.ImageFallback = ParseDuration("TOTEM_IMAGE_FALLBACK", cfg.ImageFallback)
	cfg.SafetyCeiling = ParseDuration("TOTEM_SAFETY_CEILING", cfg.SafetyCeiling)
	cfg.EmbedPoll = ParseDuration("TOTEM_EMBED_POLL", cfg.EmbedPoll)
	cfg.CacheEnabled = ParseBool("TOTEM_CACHE_ENABLED", cfg.CacheEnabled)
	cfg.CacheConcurrency = ParseInt("TOTEM_CACHE_CONCURRENCY", cfg.CacheConcurrency)
	cfg.CacheFetchLimit = ParseDuration("TOTEM_CACHE_FETCH_LIMIT", cfg.CacheFetchLimit)
	cfg.CacheRatePerSec = ParseFloat("TOTEM_CACHE_RATE", cfg.CacheRatePerSec)
	cfg.ListenAddr = ParseString("TOTEM_LISTEN", cfg.ListenAddr)
	cfg.PlayerBin = ParseString("TOTEM_PLAYER_BIN", cfg.PlayerBin)
	cfg.OTELEnabled = ParseBool("TOTEM_OTEL_ENABLED", cfg.OTELEnabled)
	cfg.OTELExporter = ParseString("TOTEM_OTEL_EXPORTER", cfg.OTELExporter)
	cfg.OTELEndpoint = ParseString("TOTEM_OTEL_ENDPOINT", cfg.OTELEndpoint)
	cfg.OTELSampleRate = ParseFloat("TOTEM_OTEL_SAMPLE_RATE", cfg.OTELSampleRate)
	cfg.Environment = ParseString("TOTEM_ENVIRONMENT", cfg.Environment)
}
