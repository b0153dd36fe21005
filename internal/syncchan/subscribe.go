// SPDX-License-Identifier: MIT

package syncchan

import (
	"context"
	"errors"
	"time"

	"github.com/totemview/totem/internal/log"
	"github.com/totemview/totem/internal/metrics"
	"github.com/totemview/totem/internal/playlist"
)

// Subscribe yields document snapshots for the screen until ctx is canceled.
// The channel carries the latest snapshot only: if the consumer lags, stale
// snapshots are replaced, never queued. Disconnects are not surfaced as
// errors; the subscriber reconnects with backoff while the consumer keeps
// playing whatever it last received.
func (c *Client) Subscribe(ctx context.Context, screenID string) <-chan playlist.Document {
	out := make(chan playlist.Document, 1)
	go c.subscribeLoop(ctx, screenID, out)
	return out
}

func (c *Client) subscribeLoop(ctx context.Context, screenID string, out chan playlist.Document) {
	defer close(out)
	defer c.connected.Store(false)

	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	backoff := initialBackoff
	for ctx.Err() == nil {
		pubsub := c.rdb.Subscribe(ctx, eventsChannel(screenID))
		if _, err := pubsub.Receive(ctx); err != nil {
			_ = pubsub.Close()
			if ctx.Err() != nil {
				return
			}
			metrics.RecordSyncReconnect()
			c.logger.Warn().Err(err).
				Str(log.FieldScreenID, screenID).
				Dur("backoff", backoff).
				Msg("sync subscribe failed, retrying")
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff *= 2; backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		c.connected.Store(true)
		backoff = initialBackoff
		c.logger.Info().
			Str("event", "syncchan.subscribed").
			Str(log.FieldScreenID, screenID).
			Msg("subscribed to screen events")

		// A publish may have slipped by between connect attempts.
		c.refresh(ctx, screenID, out)

		msgs := pubsub.Channel()
	receive:
		for {
			select {
			case <-ctx.Done():
				_ = pubsub.Close()
				return
			case _, ok := <-msgs:
				if !ok {
					break receive
				}
				c.refresh(ctx, screenID, out)
			case <-ticker.C:
				c.refresh(ctx, screenID, out)
			}
		}

		_ = pubsub.Close()
		c.connected.Store(false)
		metrics.RecordSyncReconnect()
		c.logger.Warn().
			Str(log.FieldScreenID, screenID).
			Msg("sync subscription lost, reconnecting")
	}
}

// refresh fetches the current document and hands it to the consumer,
// replacing an undelivered older snapshot if one is still buffered.
func (c *Client) refresh(ctx context.Context, screenID string, out chan playlist.Document) {
	fetchCtx, cancel := context.WithTimeout(ctx, opTimeout)
	doc, err := c.FetchDocument(fetchCtx, screenID)
	cancel()
	if errors.Is(err, ErrNoDocument) {
		return
	}
	if err != nil {
		metrics.RecordSyncUpdate("malformed")
		c.logger.Warn().Err(err).
			Str(log.FieldScreenID, screenID).
			Msg("document refresh failed")
		return
	}
	metrics.RecordSyncUpdate("applied")

	select {
	case out <- doc:
	default:
		select {
		case <-out:
		default:
		}
		select {
		case out <- doc:
		default:
		}
	}
}
