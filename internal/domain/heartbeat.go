package domain

import "time"

// HeartbeatStatus enumerates worker heartbeat states.
type HeartbeatStatus string

const (
	HeartbeatRunning HeartbeatStatus = "RUNNING"
	HeartbeatStopped HeartbeatStatus = "STOPPED"
	HeartbeatDead    HeartbeatStatus = "DEAD"
)

// WorkerHeartbeat is the lock row. At most one row may be RUNNING with a
// LastSeenAt inside the lock TTL.
type WorkerHeartbeat struct {
	WorkerID   string          `json:"worker_id" db:"worker_id"`
	Hostname   string          `json:"hostname" db:"hostname"`
	Status     HeartbeatStatus `json:"status" db:"status"`
	StartedAt  time.Time       `json:"started_at" db:"started_at"`
	LastSeenAt time.Time       `json:"last_seen_at" db:"last_seen_at"`
}

// IsFresh reports whether the heartbeat is RUNNING and younger than ttl.
func (h *WorkerHeartbeat) IsFresh(now time.Time, ttl time.Duration) bool {
	return h.Status == HeartbeatRunning && now.Sub(h.LastSeenAt) < ttl
}
