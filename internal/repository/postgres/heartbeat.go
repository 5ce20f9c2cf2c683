package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/aicmo-cam/internal/domain"
)

// HeartbeatRepo reads worker heartbeat rows for status reporting. Writes go
// through the distlock package.
type HeartbeatRepo struct{ db *sql.DB }

// NewHeartbeatRepo creates a Postgres-backed heartbeat reader.
func NewHeartbeatRepo(db *sql.DB) *HeartbeatRepo { return &HeartbeatRepo{db: db} }

// Recent returns the most recently seen heartbeats.
func (r *HeartbeatRepo) Recent(ctx context.Context, limit int) ([]domain.WorkerHeartbeat, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT worker_id, COALESCE(hostname,''), status, started_at, last_seen_at
		FROM cam_worker_heartbeats
		ORDER BY last_seen_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list heartbeats: %w", err)
	}
	defer rows.Close()

	var out []domain.WorkerHeartbeat
	for rows.Next() {
		var h domain.WorkerHeartbeat
		if err := rows.Scan(&h.WorkerID, &h.Hostname, &h.Status, &h.StartedAt, &h.LastSeenAt); err != nil {
			return nil, fmt.Errorf("scan heartbeat: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
