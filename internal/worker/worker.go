// Package worker runs the outreach cycle on a timer while holding the
// single-active-worker lock.
//
// Lifecycle: acquire the lock (fatal on failure), probe module health and
// log a degraded start when a critical capability is down, then loop:
// refresh the heartbeat, run one cycle, wait on a cancellable timer. The
// lock is released on every exit path.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/aicmo-cam/internal/contracts"
	"github.com/ignite/aicmo-cam/internal/pkg/distlock"
	"github.com/ignite/aicmo-cam/internal/pkg/logger"
	"github.com/ignite/aicmo-cam/internal/ports"
	"github.com/ignite/aicmo-cam/internal/registry"
)

var log = logger.Named("worker")

// ErrLockLost is returned when the heartbeat can no longer be refreshed.
var ErrLockLost = errors.New("worker lock lost")

const releaseTimeout = 10 * time.Second

// CycleRunner executes one cycle against a health snapshot.
type CycleRunner interface {
	RunCycle(ctx context.Context, state registry.HealthState) contracts.CycleResult
}

// HealthGauge receives module health after every probe.
type HealthGauge interface {
	SetModuleHealth(module string, healthy bool)
}

// Config holds the loop settings.
type Config struct {
	ID       string
	Enabled  bool
	Interval time.Duration
	LockTTL  time.Duration
	// Once runs a single cycle and returns.
	Once bool
}

// Worker is the orchestration loop.
type Worker struct {
	cfg    Config
	lock   ports.Lock
	reg    *registry.Registry
	runner CycleRunner
	gauge  HealthGauge
}

// Option customizes a Worker.
type Option func(*Worker)

// WithHealthGauge reports probed module health to g.
func WithHealthGauge(g HealthGauge) Option { return func(w *Worker) { w.gauge = g } }

// New builds a worker.
func New(cfg Config, lock ports.Lock, reg *registry.Registry, runner CycleRunner, opts ...Option) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * cfg.Interval
	}
	w := &Worker{cfg: cfg, lock: lock, reg: reg, runner: runner}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run blocks until ctx is cancelled, the lock is lost, or a single cycle
// finished in Once mode. Cancellation is a clean exit and returns nil.
func (w *Worker) Run(ctx context.Context) error {
	if !w.cfg.Enabled {
		log.Info("worker disabled, not starting", "worker_id", w.cfg.ID)
		return nil
	}
	if w.lock == nil {
		return errors.New("acquire worker lock: no lock configured")
	}

	res := w.lock.Acquire(ctx, w.cfg.ID, w.cfg.LockTTL)
	if !res.Success {
		if res.Holder != "" {
			return fmt.Errorf("acquire worker lock: %w: held by %s", distlock.ErrLockHeld, res.Holder)
		}
		return fmt.Errorf("acquire worker lock: %s", res.Error)
	}
	defer w.release(ctx)

	state := w.probe(ctx)
	if ok, reason := state.CanStartWorker(); !ok {
		log.Warn("starting degraded", "worker_id", w.cfg.ID, "reason", reason)
	}
	log.Info("worker started", "worker_id", w.cfg.ID, "interval", w.cfg.Interval.String(), "lock_ttl", w.cfg.LockTTL.String())

	for first := true; ; first = false {
		if !first {
			// Acquire wrote the first heartbeat.
			ref := w.lock.Refresh(ctx, w.cfg.ID)
			if !ref.Success {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("%w: %s", ErrLockLost, ref.Error)
			}
			state = w.probe(ctx)
		}

		w.runner.RunCycle(ctx, state)
		if w.cfg.Once {
			return nil
		}

		timer := time.NewTimer(w.cfg.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info("worker stopping", "worker_id", w.cfg.ID)
			return nil
		case <-timer.C:
		}
	}
}

func (w *Worker) probe(ctx context.Context) registry.HealthState {
	state := w.reg.Probe(ctx)
	if w.gauge != nil {
		for _, m := range state.Modules() {
			w.gauge.SetModuleHealth(m.Name, m.Usable() && m.Health == contracts.HealthHealthy)
		}
	}
	return state
}

func (w *Worker) release(ctx context.Context) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if res := w.lock.Release(rctx, w.cfg.ID); !res.Success {
		log.Warn("release worker lock failed", "worker_id", w.cfg.ID, "error", res.Error)
	}
}
