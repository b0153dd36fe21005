// SPDX-License-Identifier: MIT

// Package identity establishes the screen's durable identity. The screen ID
// is the only external input key of the playback engine; it is read once at
// startup and written exactly when pairing happens.
package identity

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"

	"github.com/totemview/totem/internal/state"
)

// bootstrapFile is a plain-text copy of the screen ID kept next to the
// state database so provisioning tooling can pre-seed or read it.
const bootstrapFile = "screen-id"

// Manager resolves and persists the screen identity.
type Manager struct {
	store   *state.Store
	dataDir string
}

// NewManager creates an identity manager backed by the given state store.
func NewManager(store *state.Store, dataDir string) *Manager {
	return &Manager{store: store, dataDir: dataDir}
}

// Load returns the paired screen ID, or "" when the device is unpaired.
// A bootstrap file left by provisioning is imported into the state store
// on first sight.
func (m *Manager) Load(ctx context.Context) (string, error) {
	id, err := m.store.ScreenID(ctx)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, state.ErrNotFound) {
		return "", err
	}

	data, err := os.ReadFile(filepath.Join(m.dataDir, bootstrapFile))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("identity: read bootstrap file: %w", err)
	}
	id = strings.TrimSpace(string(data))
	if id == "" {
		return "", nil
	}
	if err := m.store.SetScreenID(ctx, id); err != nil {
		return "", err
	}
	return id, nil
}

// Pair persists the screen ID in the state store and mirrors it into the
// bootstrap file with an atomic write.
func (m *Manager) Pair(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("identity: empty screen id")
	}
	if err := m.store.SetScreenID(ctx, id); err != nil {
		return err
	}
	path := filepath.Join(m.dataDir, bootstrapFile)
	if err := renameio.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return fmt.Errorf("identity: write bootstrap file: %w", err)
	}
	return nil
}

// NewPairingCode returns a 6-digit code shown on the unpaired screen for an
// operator to register.
func NewPairingCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		// crypto/rand failing means the platform is broken; fall back to a
		// UUID-derived code rather than crash an unattended device.
		return uuid.NewString()[:6]
	}
	return fmt.Sprintf("%06d", n.Int64()+100000)
}

// NewScreenID returns a fresh opaque screen identifier.
func NewScreenID() string {
	return uuid.NewString()
}
