// SPDX-License-Identifier: MIT

// Package daemon wires the subsystems into one process: state store,
// identity, playback engine, renderer, sync channel, heartbeat, media cache,
// and the local API.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/totemview/totem/internal/api"
	"github.com/totemview/totem/internal/config"
	"github.com/totemview/totem/internal/display"
	"github.com/totemview/totem/internal/health"
	"github.com/totemview/totem/internal/identity"
	"github.com/totemview/totem/internal/log"
	"github.com/totemview/totem/internal/mediacache"
	"github.com/totemview/totem/internal/player"
	"github.com/totemview/totem/internal/playlist"
	"github.com/totemview/totem/internal/render/mpv"
	"github.com/totemview/totem/internal/state"
	"github.com/totemview/totem/internal/supervisor"
	"github.com/totemview/totem/internal/syncchan"
)

// playback is the slice of the engine the daemon drives.
type playback interface {
	Run(ctx context.Context) error
	Status() player.Status
	SetPlaylist(items []playlist.Item)
	SetOrientation(o display.Orientation)
	SetTunables(t player.Tunables)
}

// ErrRestartRequested tells main to exit with the restart code instead of a
// plain shutdown.
var ErrRestartRequested = errors.New("restart requested")

// Manager owns the subsystem lifecycles.
type Manager struct {
	cfg    config.AppConfig
	holder *config.Holder
	logger zerolog.Logger

	store    *state.Store
	ident    *identity.Manager
	engine   playback
	renderer *mpv.Renderer
	cache    *mediacache.Store
	warmer   *mediacache.Warmer
	gate     *syncchan.CommandGate
	sup      *supervisor.Supervisor
	healthM  *health.Manager
	apiSrv   *api.Server

	mu       sync.RWMutex
	screenID string
	pairCode string
	sync     *syncchan.Client
	paired   chan struct{}
}

// New builds the daemon. The sync store connection is deliberately not
// established here: a device that boots offline still plays from cache, so
// connecting is the sync loop's problem.
func New(ctx context.Context, cfg config.AppConfig, holder *config.Holder, sup *supervisor.Supervisor) (*Manager, error) {
	m := &Manager{
		cfg:    cfg,
		holder: holder,
		logger: log.WithComponent("daemon"),
		sup:    sup,
		paired: make(chan struct{}),
	}

	store, err := state.Open(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	m.store = store
	m.ident = identity.NewManager(store, cfg.DataDir)
	m.gate = syncchan.NewCommandGate(store)

	screenID, err := m.ident.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load identity: %w", err)
	}
	if screenID != "" {
		m.screenID = screenID
		close(m.paired)
	} else {
		m.pairCode = identity.NewPairingCode()
		m.logger.Info().
			Str("event", "daemon.unpaired").
			Str("pairing_code", m.pairCode).
			Msg("device is unpaired, register it with this code")
	}

	if cfg.CacheEnabled {
		cache, err := mediacache.OpenStore(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("open media cache: %w", err)
		}
		m.cache = cache
		m.warmer = mediacache.NewWarmer(cache, cfg.CacheConcurrency, cfg.CacheFetchLimit, cfg.CacheRatePerSec)
	}

	var source mpv.Source
	if m.cache != nil {
		source = cacheSource{store: m.cache}
	}
	renderer, err := mpv.New(mpv.Config{
		Bin:       cfg.PlayerBin,
		SocketDir: filepath.Join(cfg.DataDir, "sockets"),
	}, source)
	if err != nil {
		return nil, fmt.Errorf("renderer: %w", err)
	}
	m.renderer = renderer

	m.engine = player.New(renderer, player.NewClock(), player.Tunables{
		ImageFallback: cfg.ImageFallback,
		SafetyCeiling: cfg.SafetyCeiling,
		EmbedPoll:     cfg.EmbedPoll,
	})

	m.healthM = health.NewManager(cfg.Version)
	m.healthM.RegisterChecker(health.NewIdentityChecker(m.ScreenID))
	m.healthM.RegisterChecker(health.NewSyncChecker(m.syncConnected))
	m.healthM.RegisterChecker(health.NewStateChecker(store.Ping))
	m.healthM.RegisterChecker(health.NewPlaybackChecker(func() bool {
		return m.engine.Status().Playing
	}))

	m.apiSrv = api.New(
		api.Config{ListenAddr: cfg.ListenAddr, Version: cfg.Version},
		m.engine, m, m, m.healthM, m.ScreenID, m.PairingCode,
	)
	return m, nil
}

// Run starts all subsystems and blocks until ctx is canceled, a subsystem
// fails, or a restart is requested.
func (m *Manager) Run(ctx context.Context) error {
	defer m.close()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return m.sup.Guard("engine", func() error { return m.engine.Run(ctx) })
	})
	g.Go(func() error {
		return m.sup.Guard("api", func() error { return m.apiSrv.Run(ctx) })
	})
	g.Go(func() error {
		return m.sup.Guard("sync", func() error { return m.runSync(ctx) })
	})
	g.Go(func() error { return m.watchConfig(ctx) })
	g.Go(func() error {
		select {
		case <-ctx.Done():
			return nil
		case reason := <-m.sup.RestartRequested():
			return fmt.Errorf("%w: %s", ErrRestartRequested, reason)
		}
	})

	m.logger.Info().
		Str("event", "daemon.started").
		Str(log.FieldScreenID, m.ScreenID()).
		Msg("daemon running")
	return g.Wait()
}

// ScreenID returns the paired identity, or "".
func (m *Manager) ScreenID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.screenID
}

// PairingCode returns the code an operator uses to register this device,
// or "" once it is paired.
func (m *Manager) PairingCode() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pairCode
}

func (m *Manager) syncClient() *syncchan.Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sync
}

func (m *Manager) syncConnected() bool {
	if c := m.syncClient(); c != nil {
		return c.Connected()
	}
	return false
}

// watchConfig runs file watching and forwards reloaded tunables.
func (m *Manager) watchConfig(ctx context.Context) error {
	if m.holder == nil {
		return nil
	}

	updates := make(chan config.AppConfig, 1)
	m.holder.Subscribe(updates)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case next := <-updates:
				m.engine.SetTunables(player.Tunables{
					ImageFallback: next.ImageFallback,
					SafetyCeiling: next.SafetyCeiling,
					EmbedPoll:     next.EmbedPoll,
				})
				m.logger.Info().
					Str("event", "daemon.tunables_reloaded").
					Dur("image_fallback", next.ImageFallback).
					Dur("safety_ceiling", next.SafetyCeiling).
					Msg("playback tunables reloaded")
			}
		}
	}()

	return m.holder.Watch(ctx)
}

func (m *Manager) close() {
	if c := m.syncClient(); c != nil {
		_ = c.Close()
	}
	if m.cache != nil {
		_ = m.cache.Close()
	}
	if m.store != nil {
		_ = m.store.Close()
	}
}

// cacheSource prefers spooled cache content over streaming.
type cacheSource struct {
	store *mediacache.Store
}

func (s cacheSource) Playable(url string) string {
	if path, ok := s.store.Materialize(url); ok {
		return path
	}
	return url
}
