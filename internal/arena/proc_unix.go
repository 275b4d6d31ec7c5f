//go:build !windows

package arena

import (
	"os/exec"
	"syscall"
)

// setupProcessGroup puts the worker in its own process group so the
// whole tree can be killed as one unit.
func setupProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcessGroup sends SIGKILL to the worker's process group, taking
// down any children it spawned. Falls back to killing the lead process
// when the group lookup fails.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err == nil {
		if killErr := syscall.Kill(-pgid, syscall.SIGKILL); killErr == nil {
			return nil
		}
	}
	return cmd.Process.Kill()
}
