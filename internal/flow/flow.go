// Package flow runs the outreach cycle: seven ordered steps, each isolated
// so that an error or panic in one never stops the ones after it.
//
// The runner resolves ports from the container at the start of every cycle
// and gates each step on the HealthState snapshot it is handed. A step
// whose capability is unavailable is recorded as skipped and unsuccessful.
package flow

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/ignite/aicmo-cam/internal/container"
	"github.com/ignite/aicmo-cam/internal/contracts"
	"github.com/ignite/aicmo-cam/internal/journal"
	"github.com/ignite/aicmo-cam/internal/pkg/logger"
	"github.com/ignite/aicmo-cam/internal/registry"
)

var log = logger.Named("flow")

// Step names, in execution order.
const (
	StepSendEmails         = "SendEmails"
	StepPollInbox          = "PollInbox"
	StepClassifyAndProcess = "ClassifyAndProcess"
	StepNoReplyTimeouts    = "NoReplyTimeouts"
	StepComputeMetrics     = "ComputeMetrics"
	StepEvaluateCampaigns  = "EvaluateCampaigns"
	StepDispatchAlerts     = "DispatchAlerts"
)

// DefaultCriticalSteps decide cycle success when none are configured.
var DefaultCriticalSteps = []string{StepSendEmails, StepPollInbox, StepDispatchAlerts}

// Config holds the runner settings.
type Config struct {
	WorkerID      string
	Limit         int
	CriticalSteps []string
}

// Runner executes cycles.
type Runner struct {
	c        *container.Container
	cfg      Config
	critical map[string]bool
	journal  journal.Sink
	now      func() time.Time
	steps    []step

	mu     sync.RWMutex
	cycle  int64
	last   contracts.CycleResult
	hasRun bool
}

// Option customizes a Runner.
type Option func(*Runner)

// WithJournal archives every cycle result to sink.
func WithJournal(sink journal.Sink) Option { return func(r *Runner) { r.journal = sink } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(r *Runner) { r.now = now } }

// NewRunner builds a runner over the ports registered in c.
func NewRunner(c *container.Container, cfg Config, opts ...Option) *Runner {
	if cfg.Limit <= 0 {
		cfg.Limit = 50
	}
	if len(cfg.CriticalSteps) == 0 {
		cfg.CriticalSteps = DefaultCriticalSteps
	}
	r := &Runner{
		c:        c,
		cfg:      cfg,
		critical: make(map[string]bool, len(cfg.CriticalSteps)),
		now:      time.Now,
	}
	for _, name := range cfg.CriticalSteps {
		r.critical[name] = true
	}
	for _, opt := range opts {
		opt(r)
	}
	r.steps = r.defineSteps()
	return r
}

// RunCycle executes every step once against state and returns the result.
// It never returns early: a failing step is recorded and the next one runs.
func (r *Runner) RunCycle(ctx context.Context, state registry.HealthState) contracts.CycleResult {
	r.mu.Lock()
	r.cycle++
	number := r.cycle
	r.mu.Unlock()

	result := contracts.CycleResult{
		SchemaVersion: contracts.SchemaVersion,
		WorkerID:      r.cfg.WorkerID,
		CycleNumber:   number,
		StartedAt:     r.now(),
	}
	log.Info("cycle started", "cycle", number, "worker_id", r.cfg.WorkerID)

	for _, s := range r.steps {
		sr := r.runStep(ctx, state, s)
		result.Steps = append(result.Steps, sr)
		if sr.Success && r.critical[sr.StepName] {
			result.Success = true
		}
	}
	result.Duration = r.now().Sub(result.StartedAt)

	r.emit(ctx, result)

	r.mu.Lock()
	r.last = result
	r.hasRun = true
	r.mu.Unlock()
	return result
}

// LastResult returns the most recent cycle result.
func (r *Runner) LastResult() (contracts.CycleResult, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last, r.hasRun
}

func (r *Runner) runStep(ctx context.Context, state registry.HealthState, s step) (sr contracts.StepResult) {
	sr.StepName = s.name
	start := r.now()
	defer func() {
		if rec := recover(); rec != nil {
			sr.Success = false
			sr.ErrorMessage = fmt.Sprintf("panic: %v", rec)
			log.Error("step panicked", "step", s.name, "panic", fmt.Sprint(rec), "stack", string(debug.Stack()))
		}
		sr.Duration = r.now().Sub(start)
	}()

	for _, capability := range s.requires {
		if !state.Available(capability) {
			sr.Skipped = true
			sr.ErrorMessage = "capability unavailable: " + capability
			log.Warn("step skipped", "step", s.name, "capability", capability)
			return sr
		}
	}
	if ctx.Err() != nil {
		sr.Skipped = true
		sr.ErrorMessage = ctx.Err().Error()
		return sr
	}

	items, err := s.run(ctx, r.cfg.Limit)
	sr.ItemsProcessed = items
	if errors.Is(err, errNotRegistered) {
		sr.Skipped = true
		sr.ErrorMessage = err.Error()
		log.Warn("step skipped", "step", s.name, "error", err)
		return sr
	}
	if err != nil {
		sr.ErrorMessage = err.Error()
		log.Warn("step failed", "step", s.name, "items", items, "error", err)
		return sr
	}
	sr.Success = true
	log.Debug("step completed", "step", s.name, "items", items)
	return sr
}

func (r *Runner) emit(ctx context.Context, result contracts.CycleResult) {
	failed := 0
	for _, s := range result.Steps {
		if !s.Success && !s.Skipped {
			failed++
		}
	}
	log.Info("cycle completed",
		"cycle", result.CycleNumber,
		"success", result.Success,
		"failed_steps", failed,
		"duration", result.Duration.String())

	if m, ok := container.Get(r.c, container.MeteringKey); ok {
		m.RecordCycle(result)
	}
	if r.journal != nil {
		if err := r.journal.Write(ctx, result); err != nil {
			log.Warn("journal write failed", "cycle", result.CycleNumber, "error", err)
		}
	}
	if ev, ok := container.Get(r.c, container.EventsKey); ok {
		res := ev.Publish(ctx, contracts.DomainEvent{
			Type:    contracts.EventCycleCompleted,
			Subject: result.WorkerID,
			Payload: map[string]interface{}{
				"cycle_number": result.CycleNumber,
				"success":      result.Success,
				"failed_steps": failed,
				"duration_ms":  result.Duration.Milliseconds(),
			},
		})
		if !res.Success {
			log.Warn("cycle event not published", "error", res.Error)
		}
	}
}
