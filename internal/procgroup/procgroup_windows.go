//go:build windows

package procgroup

import "os/exec"

// Configure is a no-op on Windows to keep builds portable; Windows has no
// POSIX process-group equivalent and needs job objects for true tree kill.
func Configure(cmd *exec.Cmd) {}

// Terminate asks the process to exit. Windows has no portable SIGTERM
// equivalent for an arbitrary child, so this escalates straight to Kill.
func Terminate(cmd *exec.Cmd) error {
	return Kill(cmd)
}

// Kill kills the process directly; child processes it spawned may be left
// behind without job-object based tree tracking.
func Kill(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
