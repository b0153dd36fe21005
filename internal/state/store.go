// SPDX-License-Identifier: MIT

// Package state persists the small amount of device-local state a screen
// carries across restarts: its identity and the last applied remote
// command timestamp.
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure Go driver
)

// ErrNotFound is returned when a key has never been written.
var ErrNotFound = errors.New("state: not found")

const schema = `
CREATE TABLE IF NOT EXISTS device_state (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

const (
	keyScreenID    = "screen_id"
	keyLastCommand = "last_command_ts"
)

// Store is a sqlite-backed key/value store for device state.
type Store struct {
	db *sql.DB
}

// Open creates or opens the state database under dataDir. WAL mode and a
// busy timeout are set in the DSN so they apply to every pooled connection.
func Open(dataDir string) (*Store, error) {
	path := filepath.Join(dataDir, "totem.db")
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		path, (5 * time.Second).Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("state: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("state: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database still answers.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) get(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM device_state WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("state: get %s: %w", key, err)
	}
	return v, nil
}

func (s *Store) put(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO device_state (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("state: put %s: %w", key, err)
	}
	return nil
}

// ScreenID returns the paired screen identity, or ErrNotFound before the
// first pairing.
func (s *Store) ScreenID(ctx context.Context) (string, error) {
	return s.get(ctx, keyScreenID)
}

// SetScreenID persists the paired screen identity.
func (s *Store) SetScreenID(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("state: empty screen id")
	}
	return s.put(ctx, keyScreenID, id)
}

// LastCommandTimestamp returns the timestamp of the last applied remote
// command, or zero if none was ever applied.
func (s *Store) LastCommandTimestamp(ctx context.Context) (int64, error) {
	v, err := s.get(ctx, keyLastCommand)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var ts int64
	if _, err := fmt.Sscanf(v, "%d", &ts); err != nil {
		return 0, fmt.Errorf("state: parse command timestamp %q: %w", v, err)
	}
	return ts, nil
}

// SetLastCommandTimestamp records the timestamp of an applied command so
// redeliveries of the same document are no-ops.
func (s *Store) SetLastCommandTimestamp(ctx context.Context, ts int64) error {
	return s.put(ctx, keyLastCommand, fmt.Sprintf("%d", ts))
}
