// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the daemon.
const (
	// Playback attributes
	PlaybackItemIDKey    = "playback.item_id"
	PlaybackMediaTypeKey = "playback.media_type"
	PlaybackPositionKey  = "playback.position"
	PlaybackTriggerKey   = "playback.trigger"

	// Sync channel attributes
	SyncScreenIDKey = "sync.screen_id"
	SyncOutcomeKey  = "sync.outcome"

	// Cache attributes
	CacheURLKey     = "cache.url"
	CacheOutcomeKey = "cache.outcome"
	CacheBytesKey   = "cache.bytes"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// PlaybackAttributes creates playback span attributes.
func PlaybackAttributes(itemID, mediaType string, position int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(PlaybackItemIDKey, itemID),
		attribute.String(PlaybackMediaTypeKey, mediaType),
		attribute.Int(PlaybackPositionKey, position),
	}
}

// SyncAttributes creates sync channel span attributes.
func SyncAttributes(screenID, outcome string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if screenID != "" {
		attrs = append(attrs, attribute.String(SyncScreenIDKey, screenID))
	}
	if outcome != "" {
		attrs = append(attrs, attribute.String(SyncOutcomeKey, outcome))
	}
	return attrs
}

// CacheAttributes creates cache warm-up span attributes.
func CacheAttributes(url, outcome string, bytes int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(CacheURLKey, url),
		attribute.String(CacheOutcomeKey, outcome),
		attribute.Int64(CacheBytesKey, bytes),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
