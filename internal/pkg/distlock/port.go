package distlock

import (
	"context"
	"errors"
	"time"

	"github.com/ignite/aicmo-cam/internal/contracts"
)

// Port adapts a Heartbeat to ports.Lock.
type Port struct {
	lock Heartbeat
}

// NewPort wraps lock.
func NewPort(lock Heartbeat) *Port { return &Port{lock: lock} }

func (p *Port) Acquire(ctx context.Context, workerID string, ttl time.Duration) contracts.LockResult {
	err := p.lock.Acquire(ctx, workerID, ttl)
	var held *HeldError
	switch {
	case err == nil:
		log.Info("worker lock acquired", "worker_id", workerID, "backend", p.lock.Backend(), "ttl", ttl.String())
		return contracts.LockResult{Success: true, Held: true, Holder: workerID}
	case errors.As(err, &held):
		return contracts.LockResult{Error: err.Error(), Holder: held.Holder}
	default:
		return contracts.LockResult{Error: err.Error()}
	}
}

func (p *Port) Refresh(ctx context.Context, workerID string) contracts.LockResult {
	if err := p.lock.Refresh(ctx, workerID); err != nil {
		return contracts.LockResult{Error: err.Error()}
	}
	return contracts.LockResult{Success: true, Held: true, Holder: workerID}
}

func (p *Port) Release(ctx context.Context, workerID string) contracts.LockResult {
	if err := p.lock.Release(ctx, workerID); err != nil {
		return contracts.LockResult{Error: err.Error()}
	}
	log.Info("worker lock released", "worker_id", workerID)
	return contracts.LockResult{Success: true}
}

func (p *Port) IsHeld(ctx context.Context, workerID string) contracts.LockResult {
	held, err := p.lock.IsHeld(ctx, workerID)
	if err != nil {
		return contracts.LockResult{Error: err.Error()}
	}
	return contracts.LockResult{Success: true, Held: held}
}

func (p *Port) ModuleName() string { return "lock" }

func (p *Port) IsConfigured() bool { return p.lock != nil }

func (p *Port) Health(ctx context.Context) contracts.ModuleHealth {
	h := contracts.ModuleHealth{ModuleName: p.ModuleName(), Status: contracts.HealthHealthy, Message: p.lock.Backend(), CheckedAt: time.Now()}
	if err := p.lock.Ping(ctx); err != nil {
		h.Status = contracts.HealthUnhealthy
		h.Message = err.Error()
	}
	return h
}
