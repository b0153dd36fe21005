// SPDX-License-Identifier: MIT

// Package supervisor coordinates process-level recovery: remote RELOAD
// commands and repeated subsystem panics both funnel into a single restart
// request that the main goroutine turns into a dedicated exit code.
package supervisor

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/totemview/totem/internal/log"
)

// ExitRestart is the exit code signalling the launcher to relaunch the
// process instead of treating the exit as terminal.
const ExitRestart = 42

// panicThreshold escalates to a restart when a guarded subsystem panics
// this many times within panicWindow.
const (
	panicThreshold = 3
	panicWindow    = time.Minute
)

// Supervisor collects restart requests. The first request wins; the reason
// of later ones is only logged.
type Supervisor struct {
	logger zerolog.Logger

	once    sync.Once
	restart chan string

	mu     sync.Mutex
	panics []time.Time
}

func New() *Supervisor {
	return &Supervisor{
		logger:  log.WithComponent("supervisor"),
		restart: make(chan string, 1),
	}
}

// RequestRestart asks for a full process restart. Safe to call from any
// goroutine and any number of times.
func (s *Supervisor) RequestRestart(reason string) {
	requested := false
	s.once.Do(func() {
		s.restart <- reason
		requested = true
	})
	if requested {
		s.logger.Warn().
			Str("event", "supervisor.restart").
			Str("reason", reason).
			Msg("restart requested")
		return
	}
	s.logger.Debug().Str("reason", reason).Msg("restart already pending")
}

// RestartRequested yields the reason once a restart has been requested.
func (s *Supervisor) RestartRequested() <-chan string { return s.restart }

// Guard runs fn with a panic barrier. A single panic is contained and
// returned as an error; repeated panics in a short window mean the process
// is wedged and escalate to a restart request.
func (s *Supervisor) Guard(component string, fn func() error) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		err = fmt.Errorf("%s panicked: %v", component, r)
		s.logger.Error().
			Str(log.FieldComponent, component).
			Interface("panic", r).
			Msg("recovered subsystem panic")
		if s.notePanic() {
			s.RequestRestart(fmt.Sprintf("repeated panics in %s", component))
		}
	}()
	return fn()
}

// notePanic records a panic and reports whether the threshold was crossed.
func (s *Supervisor) notePanic() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-panicWindow)
	recent := s.panics[:0]
	for _, t := range s.panics {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	s.panics = append(recent, time.Now())
	return len(s.panics) >= panicThreshold
}
