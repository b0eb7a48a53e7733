// Package runner drives one automation task end to end: acquire the lock,
// spawn the consumer under a watchdog deadline, and release the lock on
// every exit path.
package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/pinchtab/pinchlock/internal/errclass"
	"github.com/pinchtab/pinchlock/internal/lock"
	"github.com/pinchtab/pinchlock/internal/proc"
)

// ExitTimeout mirrors GNU timeout's exit code for a killed consumer.
const ExitTimeout = 124

// Phase is the orchestrator's position in the run lifecycle.
type Phase string

const (
	PhaseIdle       Phase = "IDLE"
	PhaseAcquiring  Phase = "ACQUIRING"
	PhaseRunning    Phase = "RUNNING"
	PhaseCompleted  Phase = "COMPLETED"
	PhaseTimedOut   Phase = "TIMED_OUT"
	PhaseLockDenied Phase = "LOCK_DENIED"
	PhaseReleasing  Phase = "RELEASING"
	PhaseDone       Phase = "DONE"
)

type Runner struct {
	locks *lock.Manager
	mon   proc.Monitor
	grace time.Duration
	env   []string // extra environment for the consumer

	Stdout io.Writer
	Stderr io.Writer
}

func New(locks *lock.Manager, mon proc.Monitor, grace time.Duration, env []string) *Runner {
	return &Runner{
		locks:  locks,
		mon:    mon,
		grace:  grace,
		env:    env,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Run executes one consumer under the lock. The consumer's own exit code is
// returned verbatim; a watchdog timeout returns ExitTimeout and ErrRunTimeout.
// Acquire failures propagate with no cleanup needed; everything after a
// successful acquire releases unconditionally.
func (r *Runner) Run(ctx context.Context, command string, args []string, timeout time.Duration) (int, error) {
	r.phase(PhaseAcquiring)
	if _, err := r.locks.Acquire(ctx); err != nil {
		if errors.Is(err, errclass.ErrLockHeld) {
			r.phase(PhaseLockDenied)
		}
		return 0, err
	}
	defer func() {
		r.phase(PhaseReleasing)
		// Release must run even when ctx is already cancelled.
		_ = r.locks.Release(context.Background())
		r.phase(PhaseDone)
	}()

	cmd := exec.Command(command, args...)
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	cmd.Stdin = os.Stdin
	cmd.Env = append(os.Environ(), r.env...)
	proc.SetGroup(cmd)

	if err := cmd.Start(); err != nil {
		return 0, errclass.ErrChromeUnavailable.WithMessagef("start consumer %s: %v", command, err)
	}
	pid := cmd.Process.Pid
	if err := r.locks.Bind(pid); err != nil {
		slog.Warn("cannot bind lock to consumer", "pid", pid, "err", err)
	}
	r.phase(PhaseRunning)
	slog.Info("consumer started", "command", command, "pid", pid, "timeout", timeout)

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	watchdog := time.NewTimer(timeout)
	defer watchdog.Stop()

	select {
	case err := <-waitCh:
		r.phase(PhaseCompleted)
		return exitCodeFrom(err), nil

	case <-watchdog.C:
		r.phase(PhaseTimedOut)
		slog.Warn("watchdog fired, terminating consumer", "pid", pid, "timeout", timeout)
		r.mon.Terminate(pid, r.grace)
		<-waitCh // reap
		return ExitTimeout, errclass.ErrRunTimeout.WithMessagef("consumer exceeded %s", timeout)

	case <-ctx.Done():
		r.phase(PhaseTimedOut)
		slog.Warn("run cancelled, terminating consumer", "pid", pid)
		r.mon.Terminate(pid, r.grace)
		<-waitCh
		return ExitTimeout, ctx.Err()
	}
}

func (r *Runner) phase(p Phase) {
	slog.Debug("run phase", "phase", p)
}

func exitCodeFrom(err error) int {
	if err == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		if code := ee.ExitCode(); code >= 0 {
			return code
		}
		// Killed by signal.
		return 1
	}
	return 1
}
