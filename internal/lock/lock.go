// Package lock owns the single persisted record that reserves the shared
// Chrome for one holder at a time. A record is live while its holder or
// its Chrome pid names a running process, stale when both are gone, and
// expired once its age exceeds the configured timeout regardless of
// liveness. Stale and expired records are recovered automatically on the
// next acquire, which is what makes the system self-healing without an
// external reaper.
package lock

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/pinchtab/pinchlock/internal/errclass"
	"github.com/pinchtab/pinchlock/internal/fsutil"
	"github.com/pinchtab/pinchlock/internal/proc"
)

const (
	recordFile = "pinchlock.json"
	guardFile  = "pinchlock.flock"

	// StateReserved marks the provisional record written by Acquire.
	StateReserved = "reserved"
	// StateBound marks the refined record pointing at the live consumer.
	StateBound = "bound"
)

// Record is the sole persisted entity. Its presence means "Chrome reserved".
type Record struct {
	HolderPID  int    `json:"holderPid"`
	ChromePID  int    `json:"chromePid,omitempty"`
	AcquiredAt int64  `json:"acquiredAt"` // unix seconds
	State      string `json:"state"`
}

// Supervisor is what the lock manager needs from the resource side.
type Supervisor interface {
	EnsureRunning(ctx context.Context) (int, error)
	Stop(ctx context.Context, pid int)
	Healthy(ctx context.Context) bool
}

type Manager struct {
	dir     string
	timeout time.Duration
	mon     proc.Monitor
	sup     Supervisor
	now     func() time.Time
}

func NewManager(dir string, timeout time.Duration, mon proc.Monitor, sup Supervisor) *Manager {
	return &Manager{
		dir:     dir,
		timeout: timeout,
		mon:     mon,
		sup:     sup,
		now:     time.Now,
	}
}

type classification int

const (
	lockLive classification = iota
	lockStale
	lockExpired
)

// Acquire reserves the shared Chrome. An existing record is classified
// first: live and unexpired fails with ErrLockHeld; stale is recovered
// silently; expired forces release of the old resource with a warning.
// On the clear path Chrome is started (or adopted) and a provisional
// record is written with O_EXCL, under an advisory flock that serializes
// concurrent acquire attempts on this host.
func (m *Manager) Acquire(ctx context.Context) (*Record, error) {
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	guard := flock.New(m.guardPath())
	if err := guard.Lock(); err != nil {
		return nil, fmt.Errorf("acquire guard: %w", err)
	}
	defer func() { _ = guard.Unlock() }()

	rec, err := m.read()
	if err != nil {
		slog.Warn("unreadable lock record, recovering", "err", err)
		m.remove()
	}
	if rec != nil {
		switch m.classify(rec) {
		case lockLive:
			return nil, errclass.ErrLockHeld.WithMessagef(
				"held by pid %d for %s", rec.HolderPID, m.age(rec).Round(time.Second))
		case lockExpired:
			slog.Warn("lock expired, forcing release",
				"holderPid", rec.HolderPID, "chromePid", rec.ChromePID, "age", m.age(rec).Round(time.Second))
			m.sup.Stop(ctx, rec.ChromePID)
			m.remove()
		case lockStale:
			slog.Info("recovering stale lock", "holderPid", rec.HolderPID, "chromePid", rec.ChromePID)
			m.remove()
		}
	}

	chromePID, err := m.sup.EnsureRunning(ctx)
	if err != nil {
		return nil, err
	}

	newRec := &Record{
		HolderPID:  os.Getpid(),
		ChromePID:  chromePID,
		AcquiredAt: m.now().Unix(),
		State:      StateReserved,
	}
	if err := m.create(newRec); err != nil {
		if os.IsExist(err) {
			return nil, errclass.ErrLockHeld.WithMessage("lock record appeared during acquire")
		}
		return nil, fmt.Errorf("write lock record: %w", err)
	}
	slog.Info("lock acquired", "holderPid", newRec.HolderPID, "chromePid", newRec.ChromePID)
	return newRec, nil
}

// Release is the all-exit-paths cleanup primitive: always attempts to stop
// Chrome (even with no record, covering a diverged pidfile or an orphaned
// port listener) and always removes the record. Idempotent.
func (m *Manager) Release(ctx context.Context) error {
	pid := 0
	if rec, err := m.read(); err == nil && rec != nil {
		pid = rec.ChromePID
	}
	m.sup.Stop(ctx, pid)
	m.remove()
	slog.Info("lock released")
	return nil
}

// Bind rewrites the record in place once the real consumer pid is known:
// the consumer inherits ownership so the lock stays live for as long as
// it runs, even after the original holder process exits.
func (m *Manager) Bind(consumerPID int) error {
	rec, err := m.read()
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("no lock record to bind")
	}
	rec.HolderPID = consumerPID
	rec.State = StateBound
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal lock record: %w", err)
	}
	return fsutil.AtomicWrite(m.recordPath(), data, 0644)
}

// Status describes the lock and resource state without mutating anything.
type Status struct {
	Locked          bool   `json:"locked"`
	Stale           bool   `json:"stale,omitempty"`
	Expired         bool   `json:"expired,omitempty"`
	HolderPID       int    `json:"holderPid,omitempty"`
	ChromePID       int    `json:"chromePid,omitempty"`
	State           string `json:"state,omitempty"`
	AgeSeconds      int64  `json:"ageSeconds,omitempty"`
	ResourceHealthy bool   `json:"resourceHealthy"`
}

// Status reports the current lock and resource state. Read-only; staleness
// is reported explicitly rather than silently hidden.
func (m *Manager) Status(ctx context.Context) (*Status, error) {
	st := &Status{ResourceHealthy: m.sup.Healthy(ctx)}

	rec, err := m.read()
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return st, nil
	}

	st.HolderPID = rec.HolderPID
	st.ChromePID = rec.ChromePID
	st.State = rec.State
	st.AgeSeconds = int64(m.age(rec).Seconds())

	switch m.classify(rec) {
	case lockLive:
		st.Locked = true
	case lockExpired:
		st.Locked = true
		st.Expired = true
	case lockStale:
		// A stale record counts as absent for any reader.
		st.Stale = true
	}
	return st, nil
}

// classify checks expiry before liveness: a hung consumer that never
// signals completion must be recoverable even while its pids are alive.
func (m *Manager) classify(rec *Record) classification {
	if m.age(rec) > m.timeout {
		return lockExpired
	}
	if m.mon.Alive(rec.HolderPID) || m.mon.Alive(rec.ChromePID) {
		return lockLive
	}
	return lockStale
}

func (m *Manager) age(rec *Record) time.Duration {
	return m.now().Sub(time.Unix(rec.AcquiredAt, 0))
}

func (m *Manager) recordPath() string {
	return filepath.Join(m.dir, recordFile)
}

func (m *Manager) guardPath() string {
	return filepath.Join(m.dir, guardFile)
}

// read returns (nil, nil) when no record exists.
func (m *Manager) read() (*Record, error) {
	data, err := os.ReadFile(m.recordPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read lock record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse lock record: %w", err)
	}
	return &rec, nil
}

// create writes the record with O_EXCL so two acquirers can never both
// believe they won.
func (m *Manager) create(rec *Record) error {
	file, err := os.OpenFile(m.recordPath(), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal lock record: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		os.Remove(m.recordPath())
		return fmt.Errorf("write lock record: %w", err)
	}
	return file.Sync()
}

func (m *Manager) remove() {
	if err := os.Remove(m.recordPath()); err != nil && !os.IsNotExist(err) {
		slog.Warn("cannot remove lock record", "err", err)
	}
}
