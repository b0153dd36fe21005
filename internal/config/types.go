// SPDX-License-Identifier: MIT

// Package config loads and validates the daemon configuration with the
// precedence ENV > file > defaults.
package config

import "time"

// AppConfig is the full daemon configuration.
type AppConfig struct {
	// Identity / data
	DataDir    string `yaml:"dataDir"`    // state store, media cache, identity file
	ScreenName string `yaml:"screenName"` // human-facing name used at registration

	// Logging
	LogLevel   string `yaml:"logLevel"`
	LogService string `yaml:"logService"`

	// Sync channel (Redis)
	RedisAddr        string        `yaml:"redisAddr"`
	RedisPassword    string        `yaml:"redisPassword"`
	RedisDB          int           `yaml:"redisDB"`
	SyncPollInterval time.Duration `yaml:"syncPollInterval"` // fallback poll when pub/sub is quiet

	// Heartbeat
	HeartbeatInterval time.Duration `yaml:"heartbeatInterval"`

	// Playback tunables
	ImageFallback time.Duration `yaml:"imageFallback"` // images with duration 0
	SafetyCeiling time.Duration `yaml:"safetyCeiling"` // videos/embeds with duration 0
	EmbedPoll     time.Duration `yaml:"embedPoll"`     // embed control readiness poll

	// Offline media cache
	CacheEnabled     bool          `yaml:"cacheEnabled"`
	CacheConcurrency int           `yaml:"cacheConcurrency"`
	CacheFetchLimit  time.Duration `yaml:"cacheFetchLimit"` // per-fetch timeout
	CacheRatePerSec  float64       `yaml:"cacheRatePerSec"` // warm-up fetch rate limit

	// Local API
	ListenAddr string `yaml:"listenAddr"`

	// Renderer
	PlayerBin string `yaml:"playerBin"` // external media player binary

	// Telemetry
	OTELEnabled    bool    `yaml:"otelEnabled"`
	OTELExporter   string  `yaml:"otelExporter"` // grpc|http|noop
	OTELEndpoint   string  `yaml:"otelEndpoint"`
	OTELSampleRate float64 `yaml:"otelSampleRate"`
	Environment    string  `yaml:"environment"`

	// Version is injected at build time, not read from file or env.
	Version string `yaml:"-"`
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		DataDir:           "/var/lib/totem",
		LogLevel:          "info",
		LogService:        "totemd",
		RedisAddr:         "localhost:6379",
		SyncPollInterval:  60 * time.Second,
		HeartbeatInterval: 15 * time.Second,
		ImageFallback:     10 * time.Second,
		SafetyCeiling:     5 * time.Minute,
		EmbedPoll:         500 * time.Millisecond,
		CacheEnabled:      true,
		CacheConcurrency:  4,
		CacheFetchLimit:   30 * time.Second,
		CacheRatePerSec:   2,
		ListenAddr:        ":8090",
		PlayerBin:         "mpv",
		OTELExporter:      "noop",
		OTELSampleRate:    0.1,
		Environment:       "production",
	}
}
