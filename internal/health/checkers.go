// SPDX-License-Identifier: MIT

package health

import (
	"context"
)

// FuncChecker adapts a closure into a Checker.
type FuncChecker struct {
	name  string
	check func(ctx context.Context) CheckResult
}

func NewFuncChecker(name string, check func(ctx context.Context) CheckResult) *FuncChecker {
	return &FuncChecker{name: name, check: check}
}

func (c *FuncChecker) Name() string                          { return c.name }
func (c *FuncChecker) Check(ctx context.Context) CheckResult { return c.check(ctx) }

// NewIdentityChecker reports whether the device has a screen identity yet.
// An unpaired device is degraded, not unhealthy: the pairing endpoint works
// and the placeholder is showing.
func NewIdentityChecker(screenID func() string) *FuncChecker {
	return NewFuncChecker("identity", func(context.Context) CheckResult {
		if screenID() == "" {
			return CheckResult{Status: StatusDegraded, Message: "not paired"}
		}
		return CheckResult{Status: StatusHealthy, Message: "paired"}
	})
}

// NewSyncChecker reports the sync channel subscription state. Down is only
// degraded: the last playlist snapshot keeps playing offline.
func NewSyncChecker(connected func() bool) *FuncChecker {
	return NewFuncChecker("sync_channel", func(context.Context) CheckResult {
		if !connected() {
			return CheckResult{Status: StatusDegraded, Message: "disconnected, playing last snapshot"}
		}
		return CheckResult{Status: StatusHealthy, Message: "subscribed"}
	})
}

// NewStateChecker verifies the local state store answers.
func NewStateChecker(ping func(ctx context.Context) error) *FuncChecker {
	return NewFuncChecker("state_store", func(ctx context.Context) CheckResult {
		if err := ping(ctx); err != nil {
			return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
		}
		return CheckResult{Status: StatusHealthy}
	})
}

// NewPlaybackChecker reports whether the engine is showing content.
func NewPlaybackChecker(playing func() bool) *FuncChecker {
	return NewFuncChecker("playback", func(context.Context) CheckResult {
		if !playing() {
			return CheckResult{Status: StatusDegraded, Message: "no playlist, showing placeholder"}
		}
		return CheckResult{Status: StatusHealthy, Message: "playing"}
	})
}
