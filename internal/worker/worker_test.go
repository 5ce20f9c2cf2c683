package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ignite/aicmo-cam/internal/contracts"
	"github.com/ignite/aicmo-cam/internal/domain"
	"github.com/ignite/aicmo-cam/internal/pkg/distlock"
	"github.com/ignite/aicmo-cam/internal/ports"
	"github.com/ignite/aicmo-cam/internal/registry"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type countingRunner struct {
	mu     sync.Mutex
	cycles int
	states []registry.HealthState
	ran    chan struct{}
}

func newCountingRunner() *countingRunner {
	return &countingRunner{ran: make(chan struct{}, 16)}
}

func (r *countingRunner) RunCycle(_ context.Context, state registry.HealthState) contracts.CycleResult {
	r.mu.Lock()
	r.cycles++
	r.states = append(r.states, state)
	n := r.cycles
	r.mu.Unlock()
	select {
	case r.ran <- struct{}{}:
	default:
	}
	return contracts.CycleResult{CycleNumber: int64(n), Success: true}
}

func (r *countingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cycles
}

type scriptedLock struct {
	mu         sync.Mutex
	acquire    contracts.LockResult
	refreshErr string
	refreshes  int
	released   bool
}

func (l *scriptedLock) Acquire(context.Context, string, time.Duration) contracts.LockResult {
	return l.acquire
}

func (l *scriptedLock) Refresh(context.Context, string) contracts.LockResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refreshes++
	if l.refreshErr != "" {
		return contracts.LockResult{Error: l.refreshErr}
	}
	return contracts.LockResult{Success: true, Held: true}
}

func (l *scriptedLock) Release(context.Context, string) contracts.LockResult {
	l.mu.Lock()
	l.released = true
	l.mu.Unlock()
	return contracts.LockResult{Success: true}
}

func (l *scriptedLock) IsHeld(context.Context, string) contracts.LockResult {
	return contracts.LockResult{Success: true, Held: true}
}

type gauge struct {
	mu     sync.Mutex
	health map[string]bool
}

func (g *gauge) SetModuleHealth(module string, healthy bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.health == nil {
		g.health = map[string]bool{}
	}
	g.health[module] = healthy
}

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New([]string{ports.CapEmailSend})
	require.NoError(t, reg.Register("email", []string{ports.CapEmailSend}, true))
	require.NoError(t, reg.SetHealth("email", false, "not configured"))
	return reg
}

func TestRunOnceAcquiresAndReleases(t *testing.T) {
	mem := distlock.NewMemoryLock()
	runner := newCountingRunner()
	g := &gauge{}
	w := New(Config{ID: "w1", Enabled: true, Interval: time.Hour, Once: true},
		distlock.NewPort(mem), newRegistry(t), runner, WithHealthGauge(g))

	require.NoError(t, w.Run(context.Background()))

	assert.Equal(t, 1, runner.count())
	assert.Equal(t, domain.HeartbeatStopped, mem.Status("w1"))
	assert.Equal(t, map[string]bool{"email": false}, g.health)
}

func TestRunStartsDegraded(t *testing.T) {
	runner := newCountingRunner()
	w := New(Config{ID: "w1", Enabled: true, Once: true},
		distlock.NewPort(distlock.NewMemoryLock()), newRegistry(t), runner)

	require.NoError(t, w.Run(context.Background()))

	require.Len(t, runner.states, 1)
	ok, reason := runner.states[0].CanStartWorker()
	assert.False(t, ok)
	assert.Contains(t, reason, ports.CapEmailSend)
}

func TestRunFailsWhenLockHeld(t *testing.T) {
	mem := distlock.NewMemoryLock()
	require.NoError(t, mem.Acquire(context.Background(), "w0", time.Hour))
	runner := newCountingRunner()
	w := New(Config{ID: "w1", Enabled: true, Interval: time.Hour, LockTTL: time.Hour},
		distlock.NewPort(mem), newRegistry(t), runner)

	err := w.Run(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, distlock.ErrLockHeld))
	assert.Contains(t, err.Error(), "w0")
	assert.Zero(t, runner.count())
	assert.Equal(t, domain.HeartbeatRunning, mem.Status("w0"))
}

func TestRunDisabledDoesNothing(t *testing.T) {
	lock := &scriptedLock{}
	runner := newCountingRunner()
	w := New(Config{ID: "w1", Enabled: false}, lock, newRegistry(t), runner)

	require.NoError(t, w.Run(context.Background()))
	assert.Zero(t, runner.count())
	assert.False(t, lock.released)
}

func TestRunStopsPromptlyOnCancel(t *testing.T) {
	mem := distlock.NewMemoryLock()
	runner := newCountingRunner()
	w := New(Config{ID: "w1", Enabled: true, Interval: time.Hour},
		distlock.NewPort(mem), newRegistry(t), runner)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	<-runner.ran
	start := time.Now()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, runner.count())
	assert.Equal(t, domain.HeartbeatStopped, mem.Status("w1"))
}

func TestRunRefreshesBetweenCycles(t *testing.T) {
	lock := &scriptedLock{acquire: contracts.LockResult{Success: true, Held: true}}
	runner := newCountingRunner()
	w := New(Config{ID: "w1", Enabled: true, Interval: 5 * time.Millisecond},
		lock, newRegistry(t), runner)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	for i := 0; i < 3; i++ {
		<-runner.ran
	}
	cancel()
	require.NoError(t, <-done)

	lock.mu.Lock()
	defer lock.mu.Unlock()
	assert.GreaterOrEqual(t, lock.refreshes, 2)
	assert.True(t, lock.released)
}

func TestRunStopsWhenLockLost(t *testing.T) {
	lock := &scriptedLock{
		acquire:    contracts.LockResult{Success: true, Held: true},
		refreshErr: distlock.ErrNotHeld.Error(),
	}
	runner := newCountingRunner()
	w := New(Config{ID: "w1", Enabled: true, Interval: time.Millisecond},
		lock, newRegistry(t), runner)

	err := w.Run(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLockLost))
	assert.Equal(t, 1, runner.count())
	assert.True(t, lock.released)
}
