// SPDX-License-Identifier: MIT

// Package syncchan is the device side of the synchronization channel: each
// screen has a Redis hash `screen:<id>` holding its document, and a pub/sub
// channel `screen:<id>:events` notifying about changes. A slow poll backs up
// the pub/sub path so a missed publish cannot strand a device.
package syncchan

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/totemview/totem/internal/log"
	"github.com/totemview/totem/internal/playlist"
)

const (
	keyPrefix = "screen:"

	fieldDoc      = "doc"
	fieldName     = "name"
	fieldLastSeen = "lastSeen"

	opTimeout      = 3 * time.Second
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// ErrNoDocument means the screen hash exists without a document, or not at all.
var ErrNoDocument = errors.New("syncchan: no document for screen")

func screenKey(id string) string     { return keyPrefix + id }
func eventsChannel(id string) string { return keyPrefix + id + ":events" }

// Config holds the sync channel connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	// PollInterval is the fallback refresh period while subscribed.
	PollInterval time.Duration
}

// Client talks to the sync store. Safe for concurrent use.
type Client struct {
	rdb       *redis.Client
	logger    zerolog.Logger
	poll      time.Duration
	connected atomic.Bool
}

// New connects to the sync store and verifies the connection.
func New(cfg Config) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("sync store connection failed: %w", err)
	}

	logger := log.WithComponent("syncchan")
	logger.Info().
		Str("event", "syncchan.connected").
		Str("addr", cfg.Addr).
		Int("db", cfg.DB).
		Msg("connected to sync store")

	return &Client{rdb: rdb, logger: logger, poll: cfg.PollInterval}, nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error { return c.rdb.Close() }

// Connected reports whether the change subscription is currently up. The
// heartbeat reporter pauses while it is not.
func (c *Client) Connected() bool { return c.connected.Load() }

// FetchDocument loads and decodes the screen's current document. Items that
// fail validation are dropped and logged, never delivered.
func (c *Client) FetchDocument(ctx context.Context, screenID string) (playlist.Document, error) {
	raw, err := c.rdb.HGet(ctx, screenKey(screenID), fieldDoc).Bytes()
	if err == redis.Nil {
		return playlist.Document{}, ErrNoDocument
	}
	if err != nil {
		return playlist.Document{}, fmt.Errorf("fetch document: %w", err)
	}

	doc, dropped := playlist.ParseDocument(raw)
	for _, derr := range dropped {
		c.logger.Warn().Err(derr).
			Str(log.FieldScreenID, screenID).
			Msg("dropping malformed playlist item")
	}
	return doc, nil
}

// PublishDocument stores a document and notifies subscribers. Used by the
// pairing path and by tooling; the player itself only reads.
func (c *Client) PublishDocument(ctx context.Context, screenID string, raw []byte) error {
	key := screenKey(screenID)
	if err := c.rdb.HSet(ctx, key, fieldDoc, raw).Err(); err != nil {
		return fmt.Errorf("store document: %w", err)
	}
	if err := c.rdb.Publish(ctx, eventsChannel(screenID), "update").Err(); err != nil {
		return fmt.Errorf("notify subscribers: %w", err)
	}
	return nil
}
