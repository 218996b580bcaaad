//go:build linux

package procgroup

import (
	"os/exec"
	"syscall"
)

// Configure sets up cmd to run in its own process group so Terminate/Kill
// can reach the whole subtree the third-party engine spawns, not just the
// immediate child.
func Configure(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// Terminate sends SIGTERM to the process group.
func Terminate(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
}

// Kill sends SIGKILL to the process group.
func Kill(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}
