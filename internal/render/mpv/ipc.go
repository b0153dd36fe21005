// SPDX-License-Identifier: MIT

package mpv

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/totemview/totem/internal/player"
)

const ipcDialTimeout = 200 * time.Millisecond

// command sends one fire-and-forget IPC command to the process. Fails until
// the process has created its socket.
func (s *session) command(args ...any) error {
	conn, err := net.DialTimeout("unix", s.socket, ipcDialTimeout)
	if err != nil {
		return fmt.Errorf("ipc dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	payload, err := json.Marshal(map[string]any{"command": args})
	if err != nil {
		return err
	}
	if _, err := conn.Write(append(payload, '\n')); err != nil {
		return fmt.Errorf("ipc write: %w", err)
	}
	return nil
}

// embedHandle is the engine's grip on an embedded-video process. The control
// becomes available once mpv has created its IPC socket, which can be well
// after the process start while the stream resolver runs.
type embedHandle struct {
	sess *session

	mu   sync.Mutex
	ctrl *embedControl
}

func newEmbedHandle(sess *session) *embedHandle {
	return &embedHandle{sess: sess}
}

// Control attempts to attach to the IPC event stream. Not ready is not an
// error; the engine just polls again.
func (h *embedHandle) Control() (player.EmbedControl, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ctrl != nil {
		return h.ctrl, true
	}

	conn, err := net.DialTimeout("unix", h.sess.socket, ipcDialTimeout)
	if err != nil {
		return nil, false
	}
	h.ctrl = newEmbedControl(conn)
	return h.ctrl, true
}

// Release detaches from the event stream. The process itself is stopped by
// the next showing, not here.
func (h *embedHandle) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ctrl != nil {
		h.ctrl.close()
		h.ctrl = nil
	}
}

// embedControl reads mpv IPC events and maps end-file to media signals.
type embedControl struct {
	conn   net.Conn
	events chan player.Signal
}

// ipcEvent is the subset of mpv's event envelope the control cares about.
type ipcEvent struct {
	Event  string `json:"event"`
	Reason string `json:"reason"`
}

func newEmbedControl(conn net.Conn) *embedControl {
	c := &embedControl{conn: conn, events: make(chan player.Signal, 4)}
	go c.read()
	return c
}

func (c *embedControl) Events() <-chan player.Signal { return c.events }

func (c *embedControl) close() { _ = c.conn.Close() }

func (c *embedControl) read() {
	defer close(c.events)
	scanner := bufio.NewScanner(c.conn)
	for scanner.Scan() {
		var ev ipcEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			continue
		}
		if ev.Event != "end-file" {
			continue
		}
		sig := player.SignalEnded
		if ev.Reason == "error" {
			sig = player.SignalError
		}
		select {
		case c.events <- sig:
		default:
		}
	}
}
