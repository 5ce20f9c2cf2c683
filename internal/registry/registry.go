// Package registry keeps the runtime inventory of modules: which are
// enabled, which capabilities they provide, and their last probed health.
//
// The flow runner never reads the registry directly. It reads a HealthState
// snapshot taken at the start of each cycle, so health changes made by a
// probe mid-cycle cannot alter the cycle's view.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ignite/aicmo-cam/internal/contracts"
	"github.com/ignite/aicmo-cam/internal/pkg/logger"
	"github.com/ignite/aicmo-cam/internal/ports"
)

var log = logger.Named("registry")

// Capability is one named capability a module provides.
type Capability struct {
	Name       string `json:"name"`
	IsCritical bool   `json:"is_critical"`
}

// ModuleInfo describes one registered module.
type ModuleInfo struct {
	Name          string                 `json:"module_name"`
	Enabled       bool                   `json:"enabled"`
	Capabilities  []Capability           `json:"capabilities"`
	Health        contracts.HealthStatus `json:"health_status"`
	StatusMessage string                 `json:"status_message,omitempty"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// Usable reports whether the module may serve requests.
func (m ModuleInfo) Usable() bool {
	return m.Enabled && m.Health != contracts.HealthUnhealthy
}

// Provides reports whether the module declares capability name.
func (m ModuleInfo) Provides(name string) bool {
	for _, c := range m.Capabilities {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Registry maintains the module inventory.
type Registry struct {
	mu       sync.RWMutex
	modules  map[string]*ModuleInfo
	probes   map[string]ports.Health
	critical map[string]bool
	now      func() time.Time
}

// New returns an empty registry. criticalCaps names the capabilities whose
// owners must be healthy for the worker to start cleanly.
func New(criticalCaps []string) *Registry {
	crit := make(map[string]bool, len(criticalCaps))
	for _, c := range criticalCaps {
		crit[c] = true
	}
	return &Registry{
		modules:  map[string]*ModuleInfo{},
		probes:   map[string]ports.Health{},
		critical: crit,
		now:      time.Now,
	}
}

// Register installs a module. Health starts UNKNOWN.
func (r *Registry) Register(name string, caps []string, enabled bool) error {
	if name == "" {
		return fmt.Errorf("registry: module name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.modules[name]; exists {
		return fmt.Errorf("registry: %s already registered", name)
	}
	info := &ModuleInfo{
		Name:      name,
		Enabled:   enabled,
		Health:    contracts.HealthUnknown,
		UpdatedAt: r.now(),
	}
	for _, c := range caps {
		info.Capabilities = append(info.Capabilities, Capability{Name: c, IsCritical: r.critical[c]})
	}
	r.modules[name] = info
	return nil
}

// AttachProbe sets the Health implementation Probe calls for module name.
func (r *Registry) AttachProbe(name string, h ports.Health) {
	r.mu.Lock()
	r.probes[name] = h
	r.mu.Unlock()
}

// SetHealth records a module's health.
func (r *Registry) SetHealth(name string, healthy bool, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.modules[name]
	if !ok {
		return fmt.Errorf("registry: unknown module %s", name)
	}
	prev := m.Health
	if healthy {
		m.Health = contracts.HealthHealthy
	} else {
		m.Health = contracts.HealthUnhealthy
	}
	m.StatusMessage = message
	m.UpdatedAt = r.now()
	if prev != m.Health && prev != contracts.HealthUnknown {
		log.Info("module health changed", "module", name, "from", prev, "to", m.Health, "message", message)
	}
	return nil
}

// CanStartWorker is true unless a critical capability belongs to an
// enabled module that is unhealthy.
func (r *Registry) CanStartWorker() (bool, string) {
	return r.Snapshot().CanStartWorker()
}

// Snapshot returns an immutable copy of the current inventory.
func (r *Registry) Snapshot() HealthState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mods := make(map[string]ModuleInfo, len(r.modules))
	for name, m := range r.modules {
		cp := *m
		cp.Capabilities = append([]Capability(nil), m.Capabilities...)
		mods[name] = cp
	}
	return HealthState{modules: mods, TakenAt: r.now()}
}

// Probe calls every attached Health implementation of an enabled module,
// records the results and returns the new snapshot.
func (r *Registry) Probe(ctx context.Context) HealthState {
	r.mu.RLock()
	targets := make(map[string]ports.Health, len(r.probes))
	for name, h := range r.probes {
		if m, ok := r.modules[name]; ok && m.Enabled {
			targets[name] = h
		}
	}
	r.mu.RUnlock()

	for name, h := range targets {
		mh := probeOne(ctx, h)
		_ = r.SetHealth(name, mh.Healthy(), mh.Message)
	}
	return r.Snapshot()
}

func probeOne(ctx context.Context, h ports.Health) (mh contracts.ModuleHealth) {
	defer func() {
		if rec := recover(); rec != nil {
			mh = contracts.ModuleHealth{
				ModuleName: h.ModuleName(),
				Status:     contracts.HealthUnhealthy,
				Message:    fmt.Sprintf("health probe panicked: %v", rec),
			}
		}
	}()
	if !h.IsConfigured() {
		return contracts.ModuleHealth{ModuleName: h.ModuleName(), Status: contracts.HealthUnhealthy, Message: "not configured"}
	}
	return h.Health(ctx)
}

// HealthState is a point-in-time view of the registry.
type HealthState struct {
	modules map[string]ModuleInfo
	TakenAt time.Time
}

// Module returns one module's info.
func (h HealthState) Module(name string) (ModuleInfo, bool) {
	m, ok := h.modules[name]
	return m, ok
}

// Modules returns all modules sorted by name.
func (h HealthState) Modules() []ModuleInfo {
	names := make([]string, 0, len(h.modules))
	for name := range h.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]ModuleInfo, 0, len(names))
	for _, name := range names {
		out = append(out, h.modules[name])
	}
	return out
}

// Available reports whether some usable module provides capability.
func (h HealthState) Available(capability string) bool {
	for _, m := range h.modules {
		if m.Usable() && m.Provides(capability) {
			return true
		}
	}
	return false
}

// CanStartWorker mirrors Registry.CanStartWorker for this snapshot.
func (h HealthState) CanStartWorker() (bool, string) {
	for _, m := range h.Modules() {
		if !m.Enabled || m.Health != contracts.HealthUnhealthy {
			continue
		}
		for _, c := range m.Capabilities {
			if c.IsCritical {
				reason := fmt.Sprintf("critical capability %s unhealthy in module %s", c.Name, m.Name)
				if m.StatusMessage != "" {
					reason += ": " + m.StatusMessage
				}
				return false, reason
			}
		}
	}
	return true, ""
}
