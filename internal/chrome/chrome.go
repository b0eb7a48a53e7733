// Package chrome supervises the shared remote-debuggable Chrome instance:
// adopt it if it already answers on the control port, launch it otherwise,
// and tear it down without leaving orphans bound to the port.
package chrome

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pinchtab/pinchlock/internal/config"
	"github.com/pinchtab/pinchlock/internal/errclass"
	"github.com/pinchtab/pinchlock/internal/proc"
)

const (
	healthPollInterval = 500 * time.Millisecond
	healthPollAttempts = 30
	healthProbeTimeout = time.Second
	pidFileName        = "chrome.pid"
)

type Supervisor struct {
	cfg    *config.RuntimeConfig
	mon    proc.Monitor
	client *http.Client
}

func NewSupervisor(cfg *config.RuntimeConfig, mon proc.Monitor) *Supervisor {
	return &Supervisor{
		cfg:    cfg,
		mon:    mon,
		client: &http.Client{Timeout: healthProbeTimeout},
	}
}

// VersionInfo is the interesting subset of Chrome's /json/version payload.
type VersionInfo struct {
	Browser         string `json:"Browser"`
	ProtocolVersion string `json:"Protocol-Version"`
	WebSocketURL    string `json:"webSocketDebuggerUrl"`
}

// Healthy probes the control endpoint. The probe ceiling is one second so
// status and acquire calls stay responsive.
func (s *Supervisor) Healthy(ctx context.Context) bool {
	_, err := s.Version(ctx)
	return err == nil
}

// Version fetches and parses /json/version from the control endpoint.
func (s *Supervisor) Version(ctx context.Context) (*VersionInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.DebugURL()+"/json/version", nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("control endpoint returned HTTP %d", resp.StatusCode)
	}
	var v VersionInfo
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return nil, fmt.Errorf("parse /json/version: %w", err)
	}
	return &v, nil
}

// EnsureRunning returns the pid of a healthy Chrome bound to the configured
// port, adopting an already-running instance rather than spawning a duplicate.
// The returned pid is 0 when an adopted instance's pid cannot be discovered.
func (s *Supervisor) EnsureRunning(ctx context.Context) (int, error) {
	if s.Healthy(ctx) {
		pid := s.DiscoverPID()
		slog.Info("adopting running Chrome", "port", s.cfg.Port, "pid", pid)
		return pid, nil
	}

	bin, err := s.binary()
	if err != nil {
		return 0, errclass.ErrChromeUnavailable.WithMessage(err.Error())
	}

	headless := ResolveHeadless(s.cfg.Headless, os.Getenv, osGOOS)
	if err := os.MkdirAll(s.cfg.ProfileDir, 0755); err != nil {
		return 0, fmt.Errorf("create profile dir: %w", err)
	}

	slog.Info("launching Chrome", "binary", bin, "port", s.cfg.Port, "profile", s.cfg.ProfileDir, "headless", headless)

	logBuf := newRingBuffer(32 * 1024)
	cmd := exec.Command(bin, launchArgs(s.cfg, headless)...)
	cmd.Stdout = logBuf
	cmd.Stderr = logBuf
	proc.SetGroup(cmd)

	if err := cmd.Start(); err != nil {
		return 0, errclass.ErrLaunchFailed.WithMessagef("start %s: %v", bin, err)
	}
	pid := cmd.Process.Pid
	s.writePIDFile(pid)
	go func() { _ = cmd.Wait() }()

	for i := 0; i < healthPollAttempts; i++ {
		select {
		case <-ctx.Done():
			s.Stop(context.Background(), pid)
			return 0, ctx.Err()
		case <-time.After(healthPollInterval):
		}
		if s.Healthy(ctx) {
			slog.Info("Chrome ready", "pid", pid, "port", s.cfg.Port)
			return pid, nil
		}
		if !s.mon.Alive(pid) {
			break
		}
	}

	s.Stop(ctx, pid)
	budget := time.Duration(healthPollAttempts) * healthPollInterval
	msg := fmt.Sprintf("chrome did not become healthy within %s", budget)
	if tail := tailLogLine(logBuf.String()); tail != "" {
		msg += " | " + tail
	}
	return 0, errclass.ErrLaunchFailed.WithMessage(msg)
}

// Stop terminates the tracked pid gracefully then forcefully, and sweeps
// for any other process still listening on the control port so a diverged
// pid never leaves an orphaned Chrome behind.
func (s *Supervisor) Stop(ctx context.Context, pid int) {
	if pid > 0 && s.mon.Alive(pid) {
		slog.Info("stopping Chrome", "pid", pid)
		if !s.mon.Terminate(pid, s.cfg.GracePeriod) {
			slog.Warn("Chrome did not exit after SIGKILL", "pid", pid)
		}
	}

	for _, p := range listenersOnPort(ctx, s.cfg.Port) {
		if p == pid || p == os.Getpid() {
			continue
		}
		slog.Warn("killing orphaned listener on control port", "pid", p, "port", s.cfg.Port)
		s.mon.Terminate(p, s.cfg.GracePeriod)
	}

	_ = os.Remove(s.pidFilePath())
}

// DiscoverPID finds the pid of the resource this supervisor tracks: the
// pidfile if it names a live process, otherwise whatever is listening on
// the control port. Returns 0 when nothing can be discovered.
func (s *Supervisor) DiscoverPID() int {
	if data, err := os.ReadFile(s.pidFilePath()); err == nil {
		if pid, err := strconv.Atoi(strings.TrimSpace(string(data))); err == nil && s.mon.Alive(pid) {
			return pid
		}
	}
	if pids := listenersOnPort(context.Background(), s.cfg.Port); len(pids) > 0 {
		return pids[0]
	}
	return 0
}

func (s *Supervisor) pidFilePath() string {
	return filepath.Join(s.cfg.StateDir, pidFileName)
}

func (s *Supervisor) writePIDFile(pid int) {
	if err := os.MkdirAll(s.cfg.StateDir, 0755); err != nil {
		slog.Warn("cannot create state dir for pidfile", "err", err)
		return
	}
	if err := os.WriteFile(s.pidFilePath(), []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		slog.Warn("cannot write pidfile", "err", err)
	}
}

// listenersOnPort returns pids of processes listening on the TCP port.
// Best-effort: returns nil wherever lsof is unavailable.
func listenersOnPort(ctx context.Context, port string) []int {
	out, err := exec.CommandContext(ctx, "lsof", "-t", "-iTCP:"+port, "-sTCP:LISTEN").Output()
	if err != nil {
		return nil
	}
	var pids []int
	for _, line := range strings.Fields(string(out)) {
		if pid, err := strconv.Atoi(line); err == nil && pid > 0 {
			pids = append(pids, pid)
		}
	}
	return pids
}

func tailLogLine(logs string) string {
	if logs == "" {
		return ""
	}
	lines := strings.Split(strings.TrimSpace(logs), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		const max = 220
		if len(line) > max {
			return line[len(line)-max:]
		}
		return line
	}
	return ""
}
