package distlock

import (
	"context"
	"sync"
	"time"

	"github.com/ignite/aicmo-cam/internal/domain"
)

// MemoryLock is an in-process heartbeat table. It only excludes workers in
// the same process and is meant for local runs without a database.
type MemoryLock struct {
	mu       sync.Mutex
	rows     map[string]*domain.WorkerHeartbeat
	ttl      time.Duration
	now      func() time.Time
	hostname string
}

// NewMemoryLock creates an empty in-process lock.
func NewMemoryLock() *MemoryLock {
	return &MemoryLock{rows: map[string]*domain.WorkerHeartbeat{}, now: time.Now, hostname: hostname()}
}

func (l *MemoryLock) Backend() string { return "memory" }

// Acquire implements Heartbeat.
func (l *MemoryLock) Acquire(_ context.Context, workerID string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for id, hb := range l.rows {
		if hb.Status != domain.HeartbeatRunning {
			continue
		}
		if hb.IsFresh(now, ttl) {
			return &HeldError{Holder: id, LastSeen: hb.LastSeenAt}
		}
		hb.Status = domain.HeartbeatDead
	}
	l.rows[workerID] = &domain.WorkerHeartbeat{
		WorkerID: workerID, Hostname: l.hostname, Status: domain.HeartbeatRunning, StartedAt: now, LastSeenAt: now,
	}
	l.ttl = ttl
	return nil
}

// Refresh implements Heartbeat.
func (l *MemoryLock) Refresh(_ context.Context, workerID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	hb, ok := l.rows[workerID]
	if !ok || hb.Status != domain.HeartbeatRunning {
		return ErrNotHeld
	}
	hb.LastSeenAt = l.now()
	return nil
}

// Release implements Heartbeat.
func (l *MemoryLock) Release(_ context.Context, workerID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if hb, ok := l.rows[workerID]; ok && hb.Status == domain.HeartbeatRunning {
		hb.Status = domain.HeartbeatStopped
		hb.LastSeenAt = l.now()
	}
	return nil
}

// IsHeld implements Heartbeat.
func (l *MemoryLock) IsHeld(_ context.Context, workerID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	hb, ok := l.rows[workerID]
	return ok && hb.IsFresh(l.now(), l.ttl), nil
}

// Status returns the recorded status of a worker.
func (l *MemoryLock) Status(workerID string) domain.HeartbeatStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	if hb, ok := l.rows[workerID]; ok {
		return hb.Status
	}
	return ""
}

func (l *MemoryLock) Ping(context.Context) error { return nil }
