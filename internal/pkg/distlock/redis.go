package distlock

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/aicmo-cam/internal/domain"
)

// KEYS[1] lock hash (holder, last_seen_ms, started_ms), KEYS[2] worker
// status hash. ARGV: worker, now_ms, ttl_ms.
var acquireScript = redis.NewScript(`
local holder = redis.call("HGET", KEYS[1], "holder")
if holder then
	local seen = tonumber(redis.call("HGET", KEYS[1], "last_seen_ms") or "0")
	if tonumber(ARGV[2]) - seen < tonumber(ARGV[3]) then
		return {0, holder, seen}
	end
	redis.call("HSET", KEYS[2], holder, "DEAD")
end
redis.call("HSET", KEYS[1], "holder", ARGV[1], "last_seen_ms", ARGV[2], "started_ms", ARGV[2])
redis.call("HSET", KEYS[2], ARGV[1], "RUNNING")
return {1, ARGV[1], tonumber(ARGV[2])}
`)

var refreshScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], "holder") == ARGV[1] then
	redis.call("HSET", KEYS[1], "last_seen_ms", ARGV[2])
	return 1
end
return 0
`)

var releaseScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], "holder") == ARGV[1] then
	redis.call("DEL", KEYS[1])
	redis.call("HSET", KEYS[2], ARGV[1], "STOPPED")
	return 1
end
return 0
`)

// RedisLock keeps the heartbeat in a Redis hash and updates it with Lua
// scripts so check and write are atomic.
type RedisLock struct {
	client    *redis.Client
	lockKey   string
	statusKey string
	now       func() time.Time

	mu  sync.Mutex
	ttl time.Duration
}

// NewRedisLock creates a Redis heartbeat lock named name.
func NewRedisLock(client *redis.Client, name string) *RedisLock {
	return &RedisLock{
		client:    client,
		lockKey:   fmt.Sprintf("lock:%s", name),
		statusKey: fmt.Sprintf("lock:%s:workers", name),
		now:       time.Now,
	}
}

func (l *RedisLock) Backend() string { return "redis" }

// Acquire implements Heartbeat.
func (l *RedisLock) Acquire(ctx context.Context, workerID string, ttl time.Duration) error {
	res, err := acquireScript.Run(ctx, l.client, []string{l.lockKey, l.statusKey},
		workerID, l.now().UnixMilli(), ttl.Milliseconds()).Slice()
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", l.lockKey, err)
	}
	if len(res) != 3 {
		return fmt.Errorf("acquire lock %s: unexpected reply %v", l.lockKey, res)
	}
	if ok, _ := res[0].(int64); ok != 1 {
		holder, _ := res[1].(string)
		seen, _ := res[2].(int64)
		return &HeldError{Holder: holder, LastSeen: time.UnixMilli(seen)}
	}
	l.mu.Lock()
	l.ttl = ttl
	l.mu.Unlock()
	return nil
}

// Refresh implements Heartbeat.
func (l *RedisLock) Refresh(ctx context.Context, workerID string) error {
	n, err := refreshScript.Run(ctx, l.client, []string{l.lockKey}, workerID, l.now().UnixMilli()).Int()
	if err != nil {
		return fmt.Errorf("refresh lock %s: %w", l.lockKey, err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

// Release implements Heartbeat.
func (l *RedisLock) Release(ctx context.Context, workerID string) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.lockKey, l.statusKey}, workerID).Err(); err != nil {
		return fmt.Errorf("release lock %s: %w", l.lockKey, err)
	}
	return nil
}

// IsHeld implements Heartbeat.
func (l *RedisLock) IsHeld(ctx context.Context, workerID string) (bool, error) {
	vals, err := l.client.HMGet(ctx, l.lockKey, "holder", "last_seen_ms").Result()
	if err != nil {
		return false, fmt.Errorf("read lock %s: %w", l.lockKey, err)
	}
	holder, _ := vals[0].(string)
	seenStr, _ := vals[1].(string)
	if holder != workerID || seenStr == "" {
		return false, nil
	}
	seen, err := strconv.ParseInt(seenStr, 10, 64)
	if err != nil {
		return false, fmt.Errorf("parse last seen: %w", err)
	}
	l.mu.Lock()
	ttl := l.ttl
	l.mu.Unlock()
	hb := domain.WorkerHeartbeat{Status: domain.HeartbeatRunning, LastSeenAt: time.UnixMilli(seen)}
	return hb.IsFresh(l.now(), ttl), nil
}

// Recent lists the workers recorded in the status hash, the current holder
// first. Only the holder carries start and last-seen times.
func (l *RedisLock) Recent(ctx context.Context, limit int) ([]domain.WorkerHeartbeat, error) {
	statuses, err := l.client.HGetAll(ctx, l.statusKey).Result()
	if err != nil {
		return nil, fmt.Errorf("read worker statuses %s: %w", l.statusKey, err)
	}
	vals, err := l.client.HMGet(ctx, l.lockKey, "holder", "last_seen_ms", "started_ms").Result()
	if err != nil {
		return nil, fmt.Errorf("read lock %s: %w", l.lockKey, err)
	}
	holder, _ := vals[0].(string)

	out := make([]domain.WorkerHeartbeat, 0, len(statuses))
	for id, st := range statuses {
		hb := domain.WorkerHeartbeat{WorkerID: id, Status: domain.HeartbeatStatus(st)}
		if id == holder {
			hb.LastSeenAt = unixMilli(vals[1])
			hb.StartedAt = unixMilli(vals[2])
		}
		out = append(out, hb)
	}
	sort.Slice(out, func(i, j int) bool {
		if (out[i].WorkerID == holder) != (out[j].WorkerID == holder) {
			return out[i].WorkerID == holder
		}
		return out[i].WorkerID < out[j].WorkerID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func unixMilli(v interface{}) time.Time {
	s, _ := v.(string)
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func (l *RedisLock) Ping(ctx context.Context) error { return l.client.Ping(ctx).Err() }
