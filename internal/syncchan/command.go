// SPDX-License-Identifier: MIT

package syncchan

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/totemview/totem/internal/log"
	"github.com/totemview/totem/internal/metrics"
	"github.com/totemview/totem/internal/playlist"
)

// CommandStore persists the timestamp of the last applied remote command
// across process restarts.
type CommandStore interface {
	LastCommandTimestamp(ctx context.Context) (int64, error)
	SetLastCommandTimestamp(ctx context.Context, ts int64) error
}

// CommandGate decides whether a delivered command is new. Commands sit in
// the synchronized document, so every snapshot redelivers the most recent
// one; the gate admits a given timestamp exactly once, surviving restarts.
type CommandGate struct {
	store  CommandStore
	logger zerolog.Logger
}

func NewCommandGate(store CommandStore) *CommandGate {
	return &CommandGate{store: store, logger: log.WithComponent("command")}
}

// Admit reports whether cmd should be executed and, if so, records its
// timestamp first so a crash mid-execution cannot replay it.
func (g *CommandGate) Admit(ctx context.Context, cmd playlist.Command) (bool, error) {
	last, err := g.store.LastCommandTimestamp(ctx)
	if err != nil {
		return false, fmt.Errorf("read last command timestamp: %w", err)
	}
	if cmd.Timestamp <= last {
		g.logger.Debug().
			Str("type", cmd.Type).
			Int64("timestamp", cmd.Timestamp).
			Int64("last_applied", last).
			Msg("ignoring already applied command")
		return false, nil
	}
	if err := g.store.SetLastCommandTimestamp(ctx, cmd.Timestamp); err != nil {
		return false, fmt.Errorf("persist command timestamp: %w", err)
	}
	if cmd.Type == playlist.CommandReload {
		metrics.RecordReloadCommand()
	}
	g.logger.Info().
		Str("event", "command.admitted").
		Str("type", cmd.Type).
		Int64("timestamp", cmd.Timestamp).
		Msg("admitting remote command")
	return true, nil
}
