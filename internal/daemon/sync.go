// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"errors"
	"time"

	"github.com/totemview/totem/internal/display"
	"github.com/totemview/totem/internal/playlist"
	"github.com/totemview/totem/internal/supervisor"
	"github.com/totemview/totem/internal/syncchan"
	"github.com/totemview/totem/internal/telemetry"
)

const syncConnectRetry = 10 * time.Second

// runSync waits for pairing, connects to the sync store, and applies every
// delivered document until ctx is canceled. The heartbeat reporter shares
// the connection's lifetime.
func (m *Manager) runSync(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	case <-m.paired:
	}
	screenID := m.ScreenID()

	client, err := m.connectSync(ctx)
	if err != nil {
		return nil // ctx canceled while connecting
	}
	if err := client.Register(ctx, screenID, m.cfg.ScreenName); err != nil {
		m.logger.Warn().Err(err).Msg("directory registration failed")
	}

	reporter := syncchan.NewReporter(client, screenID, m.cfg.HeartbeatInterval)
	go func() {
		_ = m.sup.Guard("heartbeat", func() error { return reporter.Run(ctx) })
	}()

	for doc := range client.Subscribe(ctx, screenID) {
		m.applyDocument(ctx, doc)
	}
	return nil
}

// connectSync retries until the sync store answers. A device that boots
// offline keeps playing from cache while this spins.
func (m *Manager) connectSync(ctx context.Context) (*syncchan.Client, error) {
	for {
		client, err := syncchan.New(syncchan.Config{
			Addr:         m.cfg.RedisAddr,
			Password:     m.cfg.RedisPassword,
			DB:           m.cfg.RedisDB,
			PollInterval: m.cfg.SyncPollInterval,
		})
		if err == nil {
			m.mu.Lock()
			m.sync = client
			m.mu.Unlock()
			return client, nil
		}

		m.logger.Warn().Err(err).
			Dur("retry_in", syncConnectRetry).
			Msg("sync store unreachable")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(syncConnectRetry):
		}
	}
}

// applyDocument forwards a snapshot's fields to the subsystems. Absent
// fields mean unchanged and touch nothing.
func (m *Manager) applyDocument(ctx context.Context, doc playlist.Document) {
	tracer := telemetry.Tracer("syncchan")
	ctx, span := tracer.Start(ctx, "sync.apply")
	defer span.End()
	span.SetAttributes(telemetry.SyncAttributes(m.ScreenID(), "applied")...)

	if doc.Playlist != nil {
		// The document's list position is authoritative; the order field is
		// advisory console metadata and must not reshuffle the snapshot.
		items := append([]playlist.Item(nil), *doc.Playlist...)
		m.engine.SetPlaylist(items)

		if m.warmer != nil {
			go func() {
				_ = m.sup.Guard("cache_warm", func() error {
					m.warmer.Warm(ctx, items)
					return nil
				})
			}()
		}
	}

	if doc.Orientation != nil {
		m.engine.SetOrientation(display.ParseOrientation(*doc.Orientation))
	}

	if doc.Command != nil {
		m.applyCommand(ctx, *doc.Command)
	}
}

func (m *Manager) applyCommand(ctx context.Context, cmd playlist.Command) {
	ok, err := m.gate.Admit(ctx, cmd)
	if err != nil {
		m.logger.Error().Err(err).Msg("command gate failed")
		return
	}
	if !ok {
		return
	}

	switch cmd.Type {
	case playlist.CommandReload:
		m.sup.RequestRestart("remote reload command")
	default:
		m.logger.Warn().
			Str("type", cmd.Type).
			Msg("unknown remote command ignored")
	}
}

// RestartExitCode maps a Run error to the process exit code the launcher
// honors.
func RestartExitCode(err error) (int, bool) {
	if errors.Is(err, ErrRestartRequested) {
		return supervisor.ExitRestart, true
	}
	return 0, false
}
