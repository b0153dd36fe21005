// SPDX-License-Identifier: MIT

//go:build windows

package procgroup

import (
	"os/exec"
	"syscall"
)

func set(cmd *exec.Cmd) {
	// No process groups on Windows in this context.
}

// kill maps SIGKILL to Process.Kill; graceful termination via SIGTERM is
// not reliable on Windows, so it is a no-op and Terminate's SIGKILL path
// does the work.
func kill(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	if sig == syscall.SIGKILL {
		return cmd.Process.Kill()
	}
	return nil
}
