package lock

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pinchtab/pinchlock/internal/errclass"
)

type fakeSupervisor struct {
	mu      sync.Mutex
	pid     int
	err     error
	healthy bool
	stopped []int
	starts  int
}

func (f *fakeSupervisor) EnsureRunning(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	return f.pid, f.err
}

func (f *fakeSupervisor) Stop(ctx context.Context, pid int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, pid)
}

func (f *fakeSupervisor) Healthy(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.healthy
}

type fakeMonitor struct {
	mu    sync.Mutex
	alive map[int]bool
}

func (f *fakeMonitor) Alive(pid int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive[pid]
}

func (f *fakeMonitor) Terminate(pid int, grace time.Duration) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.alive, pid)
	return true
}

func newTestManager(t *testing.T) (*Manager, *fakeSupervisor, *fakeMonitor) {
	t.Helper()
	sup := &fakeSupervisor{pid: 7777}
	mon := &fakeMonitor{alive: map[int]bool{}}
	m := NewManager(t.TempDir(), 5*time.Minute, mon, sup)
	return m, sup, mon
}

func TestAcquireWritesReservedRecord(t *testing.T) {
	m, sup, _ := newTestManager(t)

	rec, err := m.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), rec.HolderPID)
	assert.Equal(t, 7777, rec.ChromePID)
	assert.Equal(t, StateReserved, rec.State)
	assert.Equal(t, 1, sup.starts)

	onDisk, err := m.read()
	require.NoError(t, err)
	require.NotNil(t, onDisk)
	assert.Equal(t, *rec, *onDisk)
}

func TestAcquireFailsWhileHeld(t *testing.T) {
	m, _, mon := newTestManager(t)
	mon.alive[os.Getpid()] = true

	_, err := m.Acquire(context.Background())
	require.NoError(t, err)

	_, err = m.Acquire(context.Background())
	require.ErrorIs(t, err, errclass.ErrLockHeld)
}

func TestAcquireHeldByChromeOnly(t *testing.T) {
	// The original holder shell has exited but Chrome is still running;
	// the lock stays held because the resource pid is alive.
	m, _, mon := newTestManager(t)
	mon.alive[7777] = true

	_, err := m.Acquire(context.Background())
	require.NoError(t, err)

	_, err = m.Acquire(context.Background())
	require.ErrorIs(t, err, errclass.ErrLockHeld)
}

func TestAcquireRecoversStaleLock(t *testing.T) {
	m, sup, _ := newTestManager(t)

	_, err := m.Acquire(context.Background())
	require.NoError(t, err)

	// Neither pid alive in the fake monitor: the record is stale.
	rec, err := m.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateReserved, rec.State)
	assert.Equal(t, 2, sup.starts)
}

func TestAcquireForcesExpiredLock(t *testing.T) {
	m, sup, mon := newTestManager(t)
	mon.alive[os.Getpid()] = true
	mon.alive[7777] = true

	_, err := m.Acquire(context.Background())
	require.NoError(t, err)

	// Both pids still alive, but the record is past its timeout.
	m.now = func() time.Time { return time.Now().Add(6 * time.Minute) }

	rec, err := m.Acquire(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Contains(t, sup.stopped, 7777, "expired holder's Chrome must be force-stopped")
}

func TestAcquirePropagatesLaunchFailure(t *testing.T) {
	m, sup, _ := newTestManager(t)
	sup.err = errclass.ErrLaunchFailed.WithMessage("chrome did not become healthy within 15s")

	_, err := m.Acquire(context.Background())
	require.ErrorIs(t, err, errclass.ErrLaunchFailed)

	onDisk, readErr := m.read()
	require.NoError(t, readErr)
	assert.Nil(t, onDisk, "no record may be left behind on a failed acquire")
}

func TestAcquireRecoversCorruptRecord(t *testing.T) {
	m, _, _ := newTestManager(t)
	require.NoError(t, os.MkdirAll(m.dir, 0755))
	require.NoError(t, os.WriteFile(m.recordPath(), []byte("{not json"), 0644))

	_, err := m.Acquire(context.Background())
	require.NoError(t, err)
}

func TestReleaseIdempotent(t *testing.T) {
	m, sup, _ := newTestManager(t)

	require.NoError(t, m.Release(context.Background()))
	require.NoError(t, m.Release(context.Background()))
	assert.Len(t, sup.stopped, 2, "release always attempts to stop the resource")
}

func TestReleaseStopsRecordedChrome(t *testing.T) {
	m, sup, _ := newTestManager(t)

	_, err := m.Acquire(context.Background())
	require.NoError(t, err)

	require.NoError(t, m.Release(context.Background()))
	assert.Contains(t, sup.stopped, 7777)

	onDisk, err := m.read()
	require.NoError(t, err)
	assert.Nil(t, onDisk)
}

func TestBindRefinesRecord(t *testing.T) {
	m, _, _ := newTestManager(t)

	_, err := m.Acquire(context.Background())
	require.NoError(t, err)

	require.NoError(t, m.Bind(4242))

	data, err := os.ReadFile(m.recordPath())
	require.NoError(t, err)
	var rec Record
	require.NoError(t, json.Unmarshal(data, &rec))
	assert.Equal(t, 4242, rec.HolderPID)
	assert.Equal(t, 7777, rec.ChromePID)
	assert.Equal(t, StateBound, rec.State)
}

func TestBindWithoutRecord(t *testing.T) {
	m, _, _ := newTestManager(t)
	require.Error(t, m.Bind(4242))
}

func TestStatusUnlocked(t *testing.T) {
	m, sup, _ := newTestManager(t)
	sup.healthy = true

	st, err := m.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, st.Locked)
	assert.False(t, st.Stale)
	assert.True(t, st.ResourceHealthy)
}

func TestStatusLocked(t *testing.T) {
	m, _, mon := newTestManager(t)
	mon.alive[os.Getpid()] = true

	_, err := m.Acquire(context.Background())
	require.NoError(t, err)

	st, err := m.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, st.Locked)
	assert.Equal(t, os.Getpid(), st.HolderPID)
	assert.Equal(t, 7777, st.ChromePID)
	assert.Equal(t, StateReserved, st.State)
}

func TestStatusReportsStaleness(t *testing.T) {
	m, _, _ := newTestManager(t)

	_, err := m.Acquire(context.Background())
	require.NoError(t, err)

	st, err := m.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, st.Locked, "a stale record counts as absent")
	assert.True(t, st.Stale, "but staleness is reported, not hidden")
}

func TestStatusReportsExpiry(t *testing.T) {
	m, _, mon := newTestManager(t)
	mon.alive[os.Getpid()] = true

	_, err := m.Acquire(context.Background())
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(6 * time.Minute) }

	st, err := m.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, st.Locked)
	assert.True(t, st.Expired)
}

func TestStatusDoesNotMutate(t *testing.T) {
	m, _, _ := newTestManager(t)

	_, err := m.Acquire(context.Background())
	require.NoError(t, err)

	// Stale record: status must report it but leave it on disk.
	_, err = m.Status(context.Background())
	require.NoError(t, err)

	onDisk, err := m.read()
	require.NoError(t, err)
	assert.NotNil(t, onDisk)
}

func TestMutualExclusionConcurrent(t *testing.T) {
	m, _, mon := newTestManager(t)
	mon.mu.Lock()
	mon.alive[os.Getpid()] = true
	mon.mu.Unlock()

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Acquire(context.Background())
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	won, denied := 0, 0
	for err := range results {
		switch {
		case err == nil:
			won++
		case assert.ErrorIs(t, err, errclass.ErrLockHeld):
			denied++
		}
	}
	assert.Equal(t, 1, won, "exactly one concurrent acquire may win")
	assert.Equal(t, workers-1, denied)
}
