// SPDX-License-Identifier: MIT

package syncchan

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/totemview/totem/internal/log"
	"github.com/totemview/totem/internal/metrics"
)

// OnlineWindow is how recent a lastSeen write must be for the directory to
// consider a screen online.
const OnlineWindow = 40 * time.Second

// IsOnline reports whether a screen with the given lastSeen counts as online.
func IsOnline(lastSeen, now time.Time) bool {
	return !lastSeen.IsZero() && now.Sub(lastSeen) < OnlineWindow
}

// Beat writes the screen's lastSeen timestamp.
func (c *Client) Beat(ctx context.Context, screenID string, now time.Time) error {
	err := c.rdb.HSet(ctx, screenKey(screenID), fieldLastSeen, now.UnixMilli()).Err()
	if err != nil {
		return fmt.Errorf("heartbeat write: %w", err)
	}
	return nil
}

// LastSeen reads a screen's last heartbeat; zero when it never reported.
func (c *Client) LastSeen(ctx context.Context, screenID string) (time.Time, error) {
	raw, err := c.rdb.HGet(ctx, screenKey(screenID), fieldLastSeen).Result()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read lastSeen: %w", err)
	}
	millis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse lastSeen %q: %w", raw, err)
	}
	return time.UnixMilli(millis), nil
}

// Reporter periodically writes the screen's heartbeat while the sync
// subscription is up. An offline device stays quiet so the directory's
// online window reflects actual reachability, not local uptime.
type Reporter struct {
	client   *Client
	screenID string
	interval time.Duration
	logger   zerolog.Logger
}

// NewReporter builds a heartbeat reporter for a paired screen.
func NewReporter(client *Client, screenID string, interval time.Duration) *Reporter {
	return &Reporter{
		client:   client,
		screenID: screenID,
		interval: interval,
		logger:   log.WithComponent("heartbeat"),
	}
}

// Run beats until ctx is canceled. Failures are counted and logged, never
// fatal: the next tick tries again.
func (r *Reporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !r.client.Connected() {
				r.logger.Debug().
					Str(log.FieldScreenID, r.screenID).
					Msg("sync channel down, skipping heartbeat")
				continue
			}
			beatCtx, cancel := context.WithTimeout(ctx, opTimeout)
			err := r.client.Beat(beatCtx, r.screenID, time.Now())
			cancel()
			if err != nil {
				metrics.RecordHeartbeatFailure()
				r.logger.Warn().Err(err).
					Str(log.FieldScreenID, r.screenID).
					Msg("heartbeat failed")
			}
		}
	}
}
