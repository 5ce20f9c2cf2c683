package distlock

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/ignite/aicmo-cam/internal/domain"
)

// PGLock keeps heartbeats in cam_worker_heartbeats. Acquirers are
// serialised with a transaction-scoped advisory lock so two workers can
// never both see the table as free.
type PGLock struct {
	db       *sql.DB
	lockID   int64
	hostname string
	now      func() time.Time

	mu  sync.Mutex
	ttl time.Duration
}

// NewPGLock creates a Postgres heartbeat lock. The advisory lock id is
// derived from name.
func NewPGLock(db *sql.DB, name string) *PGLock {
	return &PGLock{db: db, lockID: lockKey(name), hostname: hostname(), now: time.Now}
}

func (l *PGLock) Backend() string { return "postgres" }

// Acquire implements Heartbeat.
func (l *PGLock) Acquire(ctx context.Context, workerID string, ttl time.Duration) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin lock tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, l.lockID); err != nil {
		return fmt.Errorf("advisory lock: %w", err)
	}

	now := l.now()
	rows, err := tx.QueryContext(ctx, `
		SELECT worker_id, last_seen_at
		FROM cam_worker_heartbeats
		WHERE status = $1
	`, string(domain.HeartbeatRunning))
	if err != nil {
		return fmt.Errorf("read heartbeats: %w", err)
	}
	var stale []string
	var held *HeldError
	for rows.Next() {
		hb := domain.WorkerHeartbeat{Status: domain.HeartbeatRunning}
		if err := rows.Scan(&hb.WorkerID, &hb.LastSeenAt); err != nil {
			rows.Close()
			return fmt.Errorf("scan heartbeat: %w", err)
		}
		if hb.IsFresh(now, ttl) {
			held = &HeldError{Holder: hb.WorkerID, LastSeen: hb.LastSeenAt}
			break
		}
		stale = append(stale, hb.WorkerID)
	}
	rows.Close()
	if held != nil {
		return held
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read heartbeats: %w", err)
	}

	if len(stale) > 0 {
		if _, err := tx.ExecContext(ctx, `
			UPDATE cam_worker_heartbeats SET status = $1
			WHERE worker_id = ANY($2)
		`, string(domain.HeartbeatDead), pq.Array(stale)); err != nil {
			return fmt.Errorf("mark dead: %w", err)
		}
		log.Warn("stale workers marked dead", "workers", stale, "ttl", ttl.String())
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO cam_worker_heartbeats (worker_id, hostname, status, started_at, last_seen_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (worker_id) DO UPDATE SET
			hostname = EXCLUDED.hostname,
			status = EXCLUDED.status,
			started_at = EXCLUDED.started_at,
			last_seen_at = EXCLUDED.last_seen_at
	`, workerID, l.hostname, string(domain.HeartbeatRunning), now); err != nil {
		return fmt.Errorf("write heartbeat: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit lock tx: %w", err)
	}

	l.mu.Lock()
	l.ttl = ttl
	l.mu.Unlock()
	return nil
}

// Refresh implements Heartbeat.
func (l *PGLock) Refresh(ctx context.Context, workerID string) error {
	res, err := l.db.ExecContext(ctx, `
		UPDATE cam_worker_heartbeats SET last_seen_at = $2
		WHERE worker_id = $1 AND status = $3
	`, workerID, l.now(), string(domain.HeartbeatRunning))
	if err != nil {
		return fmt.Errorf("refresh heartbeat: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotHeld
	}
	return nil
}

// Release implements Heartbeat.
func (l *PGLock) Release(ctx context.Context, workerID string) error {
	_, err := l.db.ExecContext(ctx, `
		UPDATE cam_worker_heartbeats SET status = $2, last_seen_at = $3
		WHERE worker_id = $1 AND status = $4
	`, workerID, string(domain.HeartbeatStopped), l.now(), string(domain.HeartbeatRunning))
	if err != nil {
		return fmt.Errorf("release heartbeat: %w", err)
	}
	return nil
}

// IsHeld implements Heartbeat.
func (l *PGLock) IsHeld(ctx context.Context, workerID string) (bool, error) {
	hb := domain.WorkerHeartbeat{WorkerID: workerID}
	err := l.db.QueryRowContext(ctx, `
		SELECT status, last_seen_at FROM cam_worker_heartbeats WHERE worker_id = $1
	`, workerID).Scan(&hb.Status, &hb.LastSeenAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read heartbeat: %w", err)
	}
	l.mu.Lock()
	ttl := l.ttl
	l.mu.Unlock()
	return hb.IsFresh(l.now(), ttl), nil
}

func (l *PGLock) Ping(ctx context.Context) error { return l.db.PingContext(ctx) }
