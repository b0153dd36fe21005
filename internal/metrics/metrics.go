// SPDX-License-Identifier: MIT
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Playback metrics
	advancesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "totem_advances_total",
		Help: "Playback advances by trigger",
	}, []string{"trigger"}) // trigger=timer|media_end|media_error|safety

	staleTriggersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "totem_stale_triggers_total",
		Help: "Advance triggers ignored by the per-showing latch",
	})

	mediaErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "totem_media_errors_total",
		Help: "Media load/playback failures by type",
	}, []string{"type"}) // type=image|video|embed

	playlistItems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "totem_playlist_items",
		Help: "Items in the active playlist snapshot",
	})

	renderPanicsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "totem_render_panics_total",
		Help: "Panics recovered by the render fault barrier",
	})

	// Sync metrics
	syncUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "totem_sync_updates_total",
		Help: "Sync channel document deliveries by outcome",
	}, []string{"outcome"}) // outcome=applied|malformed

	syncReconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "totem_sync_reconnects_total",
		Help: "Sync channel reconnect attempts",
	})

	heartbeatFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "totem_heartbeat_failures_total",
		Help: "Heartbeat writes that failed",
	})

	reloadCommandsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "totem_reload_commands_total",
		Help: "Remote RELOAD commands applied",
	})

	// Offline cache metrics
	cacheWarmTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "totem_cache_warm_total",
		Help: "Cache warm-up attempts by outcome",
	}, []string{"outcome"}) // outcome=hit|stored|failed|skipped
)

// RecordAdvance counts one playback advance by trigger kind.
func RecordAdvance(trigger string) { advancesTotal.WithLabelValues(trigger).Inc() }

// RecordStaleTrigger counts an advance trigger suppressed by the latch.
func RecordStaleTrigger() { staleTriggersTotal.Inc() }

// RecordMediaError counts a media failure for the given media type.
func RecordMediaError(mediaType string) { mediaErrorsTotal.WithLabelValues(mediaType).Inc() }

// SetPlaylistItems records the size of the active playlist snapshot.
func SetPlaylistItems(n int) { playlistItems.Set(float64(n)) }

// RecordRenderPanic counts a panic recovered by the fault barrier.
func RecordRenderPanic() { renderPanicsTotal.Inc() }

// RecordSyncUpdate counts one document delivery by outcome.
func RecordSyncUpdate(outcome string) { syncUpdatesTotal.WithLabelValues(outcome).Inc() }

// RecordSyncReconnect counts a sync channel reconnect attempt.
func RecordSyncReconnect() { syncReconnectsTotal.Inc() }

// RecordHeartbeatFailure counts a failed heartbeat write.
func RecordHeartbeatFailure() { heartbeatFailuresTotal.Inc() }

// RecordReloadCommand counts an applied remote RELOAD.
func RecordReloadCommand() { reloadCommandsTotal.Inc() }

// RecordCacheWarm counts one cache warm-up attempt by outcome.
func RecordCacheWarm(outcome string) { cacheWarmTotal.WithLabelValues(outcome).Inc() }
