// SPDX-License-Identifier: MIT

// Package mediacache keeps a best-effort local copy of playlist media so a
// screen can ride out transient connectivity loss. It is a resilience
// optimization only: playback never depends on it and nothing on the render
// path ever waits for it.
package mediacache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/renameio/v2"
)

// Store is a byte cache keyed by resolved media URL.
type Store struct {
	db       *badger.DB
	spoolDir string
}

// OpenStore opens (or creates) the cache database under dataDir.
func OpenStore(dataDir string) (*Store, error) {
	spoolDir := filepath.Join(dataDir, "media-spool")
	if err := os.MkdirAll(spoolDir, 0o755); err != nil {
		return nil, fmt.Errorf("mediacache: spool dir: %w", err)
	}
	opts := badger.DefaultOptions(filepath.Join(dataDir, "media-cache")).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("mediacache: open: %w", err)
	}
	return &Store{db: db, spoolDir: spoolDir}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Has reports whether bytes for the URL are already cached.
func (s *Store) Has(url string) bool {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(url))
		return err
	})
	return err == nil
}

// Put stores the bytes for a URL. Concurrent redundant writes for the same
// URL are harmless: last writer wins and both wrote identical content.
func (s *Store) Put(url string, data []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(url), data)
	})
	if err != nil {
		return fmt.Errorf("mediacache: put %s: %w", url, err)
	}
	return nil
}

// Get returns the cached bytes for a URL, or (nil, false).
func (s *Store) Get(url string) ([]byte, bool) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(url))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, false
	}
	return out, true
}

// Materialize writes the cached bytes for a URL to a spool file an external
// player can open, returning its path. The spool file is content-addressed
// by URL hash, so repeated calls reuse it.
func (s *Store) Materialize(url string) (string, bool) {
	sum := sha256.Sum256([]byte(url))
	path := filepath.Join(s.spoolDir, hex.EncodeToString(sum[:]))
	if _, err := os.Stat(path); err == nil {
		return path, true
	}

	data, ok := s.Get(url)
	if !ok {
		return "", false
	}
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return "", false
	}
	return path, true
}
