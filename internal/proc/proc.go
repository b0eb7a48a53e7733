// Package proc checks process liveness and terminates processes
// gracefully, then forcefully. It is the single place that touches
// OS process APIs so the lock and runner packages stay testable.
package proc

import (
	"log/slog"
	"os/exec"
	"time"
)

// Monitor is the capability the lock manager and runner need from the OS:
// an is-this-alive probe and a graceful-then-forced terminate.
type Monitor interface {
	Alive(pid int) bool
	// Terminate sends a polite termination signal to pid's process group,
	// waits up to grace for exit, then force-kills. Returns true once the
	// process is confirmed gone.
	Terminate(pid int, grace time.Duration) bool
}

// OSMonitor implements Monitor against the real OS.
type OSMonitor struct{}

func (OSMonitor) Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return processAlive(pid)
}

func (OSMonitor) Terminate(pid int, grace time.Duration) bool {
	if pid <= 0 || !processAlive(pid) {
		return true
	}

	if err := killProcessGroup(pid, sigTERM); err != nil {
		// Not a group leader (e.g. an adopted process); signal it directly.
		if err := killProcess(pid, sigTERM); err != nil {
			slog.Warn("failed to send SIGTERM", "pid", pid, "err", err)
		}
	}
	if WaitForExit(pid, grace) {
		return true
	}

	if err := killProcessGroup(pid, sigKILL); err != nil {
		if err := killProcess(pid, sigKILL); err != nil {
			slog.Warn("failed to send SIGKILL", "pid", pid, "err", err)
		}
	}
	return WaitForExit(pid, 2*time.Second)
}

// SetGroup puts cmd's child in its own process group so signals to the
// supervising process don't reach it, and group kills reach its children.
func SetGroup(cmd *exec.Cmd) {
	setProcGroup(cmd)
}

// WaitForExit polls until pid is gone or the timeout elapses.
func WaitForExit(pid int, timeout time.Duration) bool {
	if pid <= 0 {
		return true
	}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			return true
		}
		time.Sleep(150 * time.Millisecond)
	}
	return !processAlive(pid)
}
