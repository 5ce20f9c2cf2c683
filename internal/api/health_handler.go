package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ignite/aicmo-cam/internal/contracts"
	"github.com/ignite/aicmo-cam/internal/domain"
	"github.com/ignite/aicmo-cam/internal/pkg/httputil"
	"github.com/ignite/aicmo-cam/internal/registry"
)

// Overall health values.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// HealthStatus is the /health body.
type HealthStatus struct {
	Status   string                    `json:"status"`
	Reason   string                    `json:"reason,omitempty"`
	WorkerID string                    `json:"worker_id"`
	Uptime   string                    `json:"uptime"`
	Modules  []registry.ModuleInfo     `json:"modules"`
	Checks   map[string]ComponentCheck `json:"checks,omitempty"`
}

// ComponentCheck is one infrastructure dependency check.
type ComponentCheck struct {
	Status  string `json:"status"` // "up", "down", "degraded"
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// StatusResponse is the /status body.
type StatusResponse struct {
	WorkerID       string                   `json:"worker_id"`
	Uptime         string                   `json:"uptime"`
	LockHeld       *bool                    `json:"lock_held,omitempty"`
	LastCycle      *contracts.CycleResult   `json:"last_cycle,omitempty"`
	Heartbeats     []domain.WorkerHeartbeat `json:"heartbeats,omitempty"`
	HeartbeatError string                   `json:"heartbeat_error,omitempty"`
}

// HandleHealth reports module health from the last probe plus
// infrastructure checks. It always answers 200; the body carries the verdict.
//
//	GET /health
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, s.health(r.Context()))
}

// HandleLiveness answers 200 while the process runs.
//
//	GET /health/live
func (s *Server) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]interface{}{
		"status": "alive",
		"uptime": formatUptime(time.Since(s.startTime)),
	})
}

// HandleReadiness answers 503 when a critical capability or the database
// is down.
//
//	GET /health/ready
func (s *Server) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	h := s.health(r.Context())
	ready := h.Status != StatusUnhealthy
	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	httputil.JSON(w, code, map[string]interface{}{
		"ready":  ready,
		"status": h.Status,
		"reason": h.Reason,
	})
}

// HandleStatus returns the last cycle result and lock state.
//
//	GET /status
func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		WorkerID: s.workerID,
		Uptime:   formatUptime(time.Since(s.startTime)),
	}
	if s.cycles != nil {
		if last, ok := s.cycles.LastResult(); ok {
			resp.LastCycle = &last
		}
	}
	if s.lock != nil {
		if res := s.lock.IsHeld(r.Context(), s.workerID); res.Success {
			held := res.Held
			resp.LockHeld = &held
		}
	}
	if s.heartbeats != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		hbs, err := s.heartbeats.Recent(ctx, 10)
		if err != nil {
			resp.HeartbeatError = err.Error()
		} else {
			resp.Heartbeats = hbs
		}
	}
	httputil.OK(w, resp)
}

func (s *Server) health(ctx context.Context) HealthStatus {
	state := s.reg.Snapshot()
	h := HealthStatus{
		WorkerID: s.workerID,
		Uptime:   formatUptime(time.Since(s.startTime)),
		Modules:  state.Modules(),
		Checks:   map[string]ComponentCheck{},
	}
	if s.db != nil {
		h.Checks["database"] = s.checkDatabase(ctx)
	}
	if s.redisClient != nil {
		h.Checks["redis"] = s.checkRedis(ctx)
	}
	h.Status, h.Reason = determineOverallStatus(state, h.Checks)
	return h
}

// checkDatabase pings PostgreSQL with a 3-second timeout.
func (s *Server) checkDatabase(ctx context.Context) ComponentCheck {
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	start := time.Now()
	err := s.db.PingContext(pingCtx)
	return latencyCheck(time.Since(start), time.Second, err)
}

// checkRedis pings Redis with a 2-second timeout.
func (s *Server) checkRedis(ctx context.Context) ComponentCheck {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	err := s.redisClient.Ping(pingCtx).Err()
	return latencyCheck(time.Since(start), 500*time.Millisecond, err)
}

func latencyCheck(latency, slow time.Duration, err error) ComponentCheck {
	if err != nil {
		return ComponentCheck{Status: "down", Latency: latency.String(), Message: fmt.Sprintf("ping failed: %v", err)}
	}
	if latency > slow {
		return ComponentCheck{Status: "degraded", Latency: latency.String(), Message: fmt.Sprintf("slow response (%s)", latency)}
	}
	return ComponentCheck{Status: "up", Latency: latency.String(), Message: "connected"}
}

// determineOverallStatus derives the aggregate status.
//
// Rules:
//   - "unhealthy" if a critical capability is down or the database is down
//   - "degraded"  if any enabled module is unhealthy or a check is not up
//   - "healthy"   otherwise
func determineOverallStatus(state registry.HealthState, checks map[string]ComponentCheck) (string, string) {
	if ok, reason := state.CanStartWorker(); !ok {
		return StatusUnhealthy, reason
	}
	if db, ok := checks["database"]; ok && db.Status == "down" {
		return StatusUnhealthy, "database: " + db.Message
	}
	for _, m := range state.Modules() {
		if m.Enabled && m.Health == contracts.HealthUnhealthy {
			return StatusDegraded, fmt.Sprintf("module %s unhealthy: %s", m.Name, m.StatusMessage)
		}
	}
	for name, c := range checks {
		if c.Status != "up" {
			return StatusDegraded, name + ": " + c.Message
		}
	}
	return StatusHealthy, ""
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
