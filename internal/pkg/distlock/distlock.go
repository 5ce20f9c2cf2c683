// Package distlock provides the single-active-worker heartbeat lock.
//
// A worker holds the lock while its heartbeat is RUNNING and was refreshed
// within the TTL. An acquirer that finds a stale RUNNING heartbeat of
// another worker marks it DEAD and takes over.
package distlock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/aicmo-cam/internal/pkg/logger"
)

var log = logger.Named("distlock")

// Sentinel errors.
var (
	ErrLockHeld = errors.New("lock held by another worker")
	ErrNotHeld  = errors.New("lock not held by this worker")
)

// HeldError reports the worker that owns a fresh heartbeat.
type HeldError struct {
	Holder   string
	LastSeen time.Time
}

func (e *HeldError) Error() string {
	return fmt.Sprintf("%s: %s (last seen %s)", ErrLockHeld, e.Holder, e.LastSeen.Format(time.RFC3339))
}

func (e *HeldError) Is(target error) bool { return target == ErrLockHeld }

// Heartbeat is a TTL lock keyed by worker id.
type Heartbeat interface {
	// Acquire takes the lock for workerID or returns a *HeldError.
	Acquire(ctx context.Context, workerID string, ttl time.Duration) error
	// Refresh extends the heartbeat; ErrNotHeld if the worker lost it.
	Refresh(ctx context.Context, workerID string) error
	// Release marks the heartbeat STOPPED.
	Release(ctx context.Context, workerID string) error
	IsHeld(ctx context.Context, workerID string) (bool, error)
	Ping(ctx context.Context) error
	Backend() string
}

// NewLock creates a heartbeat lock on the best available backend: Redis
// when a client is given, otherwise the Postgres heartbeat table, otherwise
// an in-process lock.
func NewLock(redisClient *redis.Client, db *sql.DB, name string) Heartbeat {
	switch {
	case redisClient != nil:
		return NewRedisLock(redisClient, name)
	case db != nil:
		return NewPGLock(db, name)
	default:
		return NewMemoryLock()
	}
}

func lockKey(name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return int64(h.Sum64())
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}
