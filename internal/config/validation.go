// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidConfig wraps every validation failure.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Validate rejects configurations the daemon cannot run with. It fails
// fast at startup rather than misbehaving hours into unattended operation.
func Validate(cfg AppConfig) error {
	if cfg.DataDir == "" {
		return fmt.Errorf("%w: dataDir is required", ErrInvalidConfig)
	}
	if cfg.RedisAddr == "" {
		return fmt.Errorf("%w: redisAddr is required", ErrInvalidConfig)
	}
	if cfg.HeartbeatInterval < time.Second {
		return fmt.Errorf("%w: heartbeatInterval %s below 1s", ErrInvalidConfig, cfg.HeartbeatInterval)
	}
	if cfg.ImageFallback <= 0 {
		return fmt.Errorf("%w: imageFallback must be positive", ErrInvalidConfig)
	}
	if cfg.SafetyCeiling < 10*time.Second {
		// A tiny ceiling would cut healthy videos short; the ceiling is a
		// stall backstop, not a normal advance path.
		return fmt.Errorf("%w: safetyCeiling %s below 10s", ErrInvalidConfig, cfg.SafetyCeiling)
	}
	if cfg.EmbedPoll < 100*time.Millisecond {
		return fmt.Errorf("%w: embedPoll %s below 100ms", ErrInvalidConfig, cfg.EmbedPoll)
	}
	if cfg.CacheConcurrency < 1 || cfg.CacheConcurrency > 16 {
		return fmt.Errorf("%w: cacheConcurrency %d outside [1,16]", ErrInvalidConfig, cfg.CacheConcurrency)
	}
	if cfg.CacheRatePerSec <= 0 {
		return fmt.Errorf("%w: cacheRatePerSec must be positive", ErrInvalidConfig)
	}
	switch cfg.OTELExporter {
	case "grpc", "http", "noop", "":
	default:
		return fmt.Errorf("%w: otelExporter %q not one of grpc|http|noop", ErrInvalidConfig, cfg.OTELExporter)
	}
	if cfg.OTELEnabled && cfg.OTELExporter != "noop" && cfg.OTELEndpoint == "" {
		return fmt.Errorf("%w: otelEndpoint required when telemetry is enabled", ErrInvalidConfig)
	}
	return nil
}
