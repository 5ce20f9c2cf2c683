package distlock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newPGLock(t *testing.T) (*PGLock, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	l := NewPGLock(db, "cam-worker")
	l.hostname = "host-a"
	l.now = func() time.Time { return t0 }
	return l, mock
}

func TestPGLock_AcquireFree(t *testing.T) {
	l, mock := newPGLock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).WithArgs(lockKey("cam-worker")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT worker_id, last_seen_at`).WithArgs("RUNNING").
		WillReturnRows(sqlmock.NewRows([]string{"worker_id", "last_seen_at"}))
	mock.ExpectExec(`INSERT INTO cam_worker_heartbeats`).WithArgs("w1", "host-a", "RUNNING", t0).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, l.Acquire(context.Background(), "w1", 10*time.Minute))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGLock_AcquireHeldByFreshWorker(t *testing.T) {
	l, mock := newPGLock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT worker_id, last_seen_at`).WithArgs("RUNNING").
		WillReturnRows(sqlmock.NewRows([]string{"worker_id", "last_seen_at"}).AddRow("w1", t0.Add(-time.Minute)))
	mock.ExpectRollback()

	err := l.Acquire(context.Background(), "w2", 10*time.Minute)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLockHeld))

	var held *HeldError
	require.True(t, errors.As(err, &held))
	assert.Equal(t, "w1", held.Holder)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGLock_AcquireRefusesSameIDWhileFresh(t *testing.T) {
	l, mock := newPGLock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT worker_id, last_seen_at`).WithArgs("RUNNING").
		WillReturnRows(sqlmock.NewRows([]string{"worker_id", "last_seen_at"}).AddRow("w1", t0.Add(-time.Minute)))
	mock.ExpectRollback()

	err := l.Acquire(context.Background(), "w1", 10*time.Minute)
	require.ErrorIs(t, err, ErrLockHeld)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGLock_AcquireMarksStaleWorkerDead(t *testing.T) {
	l, mock := newPGLock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT worker_id, last_seen_at`).WithArgs("RUNNING").
		WillReturnRows(sqlmock.NewRows([]string{"worker_id", "last_seen_at"}).AddRow("w1", t0.Add(-time.Hour)))
	mock.ExpectExec(`UPDATE cam_worker_heartbeats SET status`).WithArgs("DEAD", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO cam_worker_heartbeats`).WithArgs("w2", "host-a", "RUNNING", t0).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, l.Acquire(context.Background(), "w2", 10*time.Minute))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGLock_RefreshLost(t *testing.T) {
	l, mock := newPGLock(t)
	mock.ExpectExec(`UPDATE cam_worker_heartbeats SET last_seen_at`).WithArgs("w1", t0, "RUNNING").WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, l.Refresh(context.Background(), "w1"), ErrNotHeld)
}

func TestPGLock_ReleaseAndIsHeld(t *testing.T) {
	l, mock := newPGLock(t)
	l.ttl = 10 * time.Minute
	ctx := context.Background()

	mock.ExpectQuery(`SELECT status, last_seen_at FROM cam_worker_heartbeats`).WithArgs("w1").
		WillReturnRows(sqlmock.NewRows([]string{"status", "last_seen_at"}).AddRow("RUNNING", t0.Add(-time.Minute)))
	mock.ExpectExec(`UPDATE cam_worker_heartbeats SET status`).WithArgs("w1", "STOPPED", t0, "RUNNING").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT status, last_seen_at FROM cam_worker_heartbeats`).WithArgs("w1").
		WillReturnRows(sqlmock.NewRows([]string{"status", "last_seen_at"}).AddRow("STOPPED", t0))

	held, err := l.IsHeld(ctx, "w1")
	require.NoError(t, err)
	assert.True(t, held)

	require.NoError(t, l.Release(ctx, "w1"))

	held, err = l.IsHeld(ctx, "w1")
	require.NoError(t, err)
	assert.False(t, held)
	assert.NoError(t, mock.ExpectationsWereMet())
}
