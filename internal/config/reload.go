// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/totemview/totem/internal/log"
)

// Holder holds configuration with atomic reloading. It provides
// thread-safe access and supports hot reloading from file changes so
// playback tunables can be adjusted without restarting the device.
type Holder struct {
	mu         sync.RWMutex
	current    AppConfig
	loader     *Loader
	configPath string
	logger     zerolog.Logger

	reloadMu        sync.RWMutex
	reloadListeners []chan<- AppConfig
}

// NewHolder creates a configuration holder with the initial config.
func NewHolder(initial AppConfig, loader *Loader, configPath string) *Holder {
	return &Holder{
		current:    initial,
		loader:     loader,
		configPath: configPath,
		logger:     log.WithComponent("config"),
	}
}

// Get returns the current configuration (thread-safe read).
func (h *Holder) Get() AppConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Subscribe registers a channel that receives the new configuration after
// every successful reload. The send is non-blocking; a slow listener
// misses intermediate snapshots, never stalls the reloader.
func (h *Holder) Subscribe(ch chan<- AppConfig) {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()
	h.reloadListeners = append(h.reloadListeners, ch)
}

// Reload reloads configuration from file and validates it. If anything
// fails the old configuration is kept and an error is returned, so the
// swap is all-or-nothing.
func (h *Holder) Reload(_ context.Context) error {
	h.logger.Info().Str("event", "config.reload_start").Msg("reloading configuration")

	newCfg, err := h.loader.Load()
	if err != nil {
		h.logger.Error().Err(err).Str("event", "config.reload_failed").Msg("failed to load new configuration")
		return fmt.Errorf("reload config: %w", err)
	}

	h.mu.Lock()
	h.current = newCfg
	h.mu.Unlock()

	h.logger.Info().
		Str("event", "config.reloaded").
		Str(log.FieldPath, h.configPath).
		Msg("configuration reloaded")

	h.reloadMu.RLock()
	defer h.reloadMu.RUnlock()
	for _, ch := range h.reloadListeners {
		select {
		case ch <- newCfg:
		default:
		}
	}
	return nil
}

// Watch starts an fsnotify watcher on the config file and reloads on
// writes. Editors replace files by rename, so a short debounce absorbs
// the burst of events one save produces. Blocks until ctx is done.
func (h *Holder) Watch(ctx context.Context) error {
	if h.configPath == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			h.logger.Debug().Err(err).Msg("close watcher")
		}
	}()

	if err := watcher.Add(h.configPath); err != nil {
		return fmt.Errorf("watch %s: %w", h.configPath, err)
	}

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(250*time.Millisecond, func() {
				if err := h.Reload(ctx); err != nil {
					h.logger.Warn().Err(err).Str("event", "config.reload_failed").Msg("keeping previous configuration")
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			h.logger.Warn().Err(err).Msg("config watcher error")
		}
	}
}
