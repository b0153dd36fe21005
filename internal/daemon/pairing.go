// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"fmt"

	"github.com/totemview/totem/internal/identity"
	"github.com/totemview/totem/internal/log"
	"github.com/totemview/totem/internal/syncchan"
)

// Pair binds the device to a screen identity, generating one when the
// request does not bring its own. Pairing is one-shot and single-winner:
// concurrent requests race for the lock, the first persists its identity,
// and every loser returns the winner's identity unchanged.
func (m *Manager) Pair(ctx context.Context, screenID, name string) (string, error) {
	if screenID == "" {
		screenID = identity.NewScreenID()
	}
	if name == "" {
		name = m.cfg.ScreenName
	}

	// The check, the persist, and the publish must be one critical section:
	// otherwise two requests can both pass the unpaired check, write
	// different identities, and close the paired channel twice.
	m.mu.Lock()
	if m.screenID != "" {
		existing := m.screenID
		m.mu.Unlock()
		return existing, nil
	}
	if err := m.ident.Pair(ctx, screenID); err != nil {
		m.mu.Unlock()
		return "", fmt.Errorf("persist identity: %w", err)
	}
	m.screenID = screenID
	m.pairCode = ""
	close(m.paired)
	m.mu.Unlock()

	if client := m.syncClient(); client != nil {
		if err := client.Register(ctx, screenID, name); err != nil {
			m.logger.Warn().Err(err).Msg("directory registration failed")
		}
	}

	m.logger.Info().
		Str("event", "daemon.paired").
		Str(log.FieldScreenID, screenID).
		Str("name", name).
		Msg("device paired")
	return screenID, nil
}

// ListScreens exposes the directory to the local API.
func (m *Manager) ListScreens(ctx context.Context) ([]syncchan.ScreenInfo, error) {
	client := m.syncClient()
	if client == nil {
		return nil, fmt.Errorf("sync store not connected")
	}
	return client.ListScreens(ctx)
}
