// SPDX-License-Identifier: MIT

package player

import "time"

// Clock abstracts wall-clock timers so tests can fire them deterministically.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancelable pending callback.
type Timer interface {
	Stop() bool
}

// realClock implements Clock with the system timer.
type realClock struct{}

// NewClock returns the system clock.
func NewClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
