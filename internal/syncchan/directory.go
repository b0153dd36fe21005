// SPDX-License-Identifier: MIT

package syncchan

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ScreenInfo is one directory entry.
type ScreenInfo struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	LastSeen time.Time `json:"lastSeen"`
	Online   bool      `json:"online"`
}

// Register creates the screen's directory entry if it does not exist yet.
// An operator-assigned name is never overwritten.
func (c *Client) Register(ctx context.Context, screenID, name string) error {
	if err := c.rdb.HSetNX(ctx, screenKey(screenID), fieldName, name).Err(); err != nil {
		return fmt.Errorf("register screen: %w", err)
	}
	return nil
}

// ListScreens enumerates all registered screens with their online state.
func (c *Client) ListScreens(ctx context.Context) ([]ScreenInfo, error) {
	now := time.Now()
	var infos []ScreenInfo

	iter := c.rdb.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		vals, err := c.rdb.HMGet(ctx, key, fieldName, fieldLastSeen).Result()
		if err != nil {
			return nil, fmt.Errorf("read screen %s: %w", key, err)
		}

		info := ScreenInfo{ID: strings.TrimPrefix(key, keyPrefix)}
		if name, ok := vals[0].(string); ok {
			info.Name = name
		}
		if raw, ok := vals[1].(string); ok {
			if millis, err := strconv.ParseInt(raw, 10, 64); err == nil {
				info.LastSeen = time.UnixMilli(millis)
			}
		}
		info.Online = IsOnline(info.LastSeen, now)
		infos = append(infos, info)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan screens: %w", err)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos, nil
}
