// SPDX-License-Identifier: MIT

// Package procgroup isolates the external media player in its own process
// group so stopping an item reliably takes down any children it spawned.
package procgroup

import (
	"errors"
	"os/exec"
	"syscall"
	"time"
)

var ErrKillFailed = errors.New("kill operation failed")

// Set configures the command to start as a process group leader. Required
// for Terminate to reap the whole tree.
func Set(cmd *exec.Cmd) {
	set(cmd)
}

// Terminate stops a process group: SIGTERM, wait up to grace, then SIGKILL.
// waitCh must carry the result of cmd.Wait; its error is returned. Safe on
// nil commands and already exited processes.
func Terminate(cmd *exec.Cmd, waitCh <-chan error, grace time.Duration) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	_ = kill(cmd, syscall.SIGTERM)

	select {
	case err := <-waitCh:
		return err
	case <-time.After(grace):
	}

	_ = kill(cmd, syscall.SIGKILL)
	return <-waitCh
}
