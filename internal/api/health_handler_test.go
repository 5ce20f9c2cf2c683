package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/aicmo-cam/internal/contracts"
	"github.com/ignite/aicmo-cam/internal/domain"
	"github.com/ignite/aicmo-cam/internal/metrics"
	"github.com/ignite/aicmo-cam/internal/pkg/distlock"
	"github.com/ignite/aicmo-cam/internal/ports"
	"github.com/ignite/aicmo-cam/internal/registry"
)

type fixedCycles struct {
	result contracts.CycleResult
	ok     bool
}

func (f fixedCycles) LastResult() (contracts.CycleResult, bool) { return f.result, f.ok }

type staticHeartbeats []domain.WorkerHeartbeat

func (s staticHeartbeats) Recent(context.Context, int) ([]domain.WorkerHeartbeat, error) {
	return s, nil
}

func newRegistry(t *testing.T, emailHealthy bool) *registry.Registry {
	t.Helper()
	reg := registry.New([]string{ports.CapEmailSend})
	require.NoError(t, reg.Register("email", []string{ports.CapEmailSend}, true))
	msg := ""
	if !emailHealthy {
		msg = "not configured"
	}
	require.NoError(t, reg.SetHealth("email", emailHealthy, msg))
	require.NoError(t, reg.Register("decision", []string{ports.CapDecision}, true))
	require.NoError(t, reg.SetHealth("decision", true, ""))
	return reg
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func TestLiveness(t *testing.T) {
	s := NewServer("w1", newRegistry(t, false), nil, nil)

	rec := get(t, s.Handler(), "/health/live")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"alive"`)
}

func TestHealthHealthy(t *testing.T) {
	s := NewServer("w1", newRegistry(t, true), nil, nil)

	rec := get(t, s.Handler(), "/health")

	require.Equal(t, http.StatusOK, rec.Code)
	var body HealthStatus
	decode(t, rec, &body)
	assert.Equal(t, StatusHealthy, body.Status)
	assert.Equal(t, "w1", body.WorkerID)
	assert.Len(t, body.Modules, 2)
}

func TestReadinessFailsOnCriticalModule(t *testing.T) {
	s := NewServer("w1", newRegistry(t, false), nil, nil)

	rec := get(t, s.Handler(), "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), ports.CapEmailSend)

	rec = get(t, s.Handler(), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	var body HealthStatus
	decode(t, rec, &body)
	assert.Equal(t, StatusUnhealthy, body.Status)
}

func TestHealthDegradedOnNonCriticalModule(t *testing.T) {
	reg := newRegistry(t, true)
	require.NoError(t, reg.SetHealth("decision", false, "db down"))
	s := NewServer("w1", reg, nil, nil)

	rec := get(t, s.Handler(), "/health/ready")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), StatusDegraded)
}

func TestHealthChecksDatabase(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing()

	s := NewServer("w1", newRegistry(t, true), nil, nil, WithDatabase(db))
	rec := get(t, s.Handler(), "/health")

	var body HealthStatus
	decode(t, rec, &body)
	assert.Equal(t, "up", body.Checks["database"].Status)
	assert.Equal(t, StatusHealthy, body.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatus(t *testing.T) {
	mem := distlock.NewMemoryLock()
	require.NoError(t, mem.Acquire(context.Background(), "w1", time.Hour))
	cycles := fixedCycles{ok: true, result: contracts.CycleResult{
		WorkerID:    "w1",
		CycleNumber: 7,
		Success:     true,
		Steps:       []contracts.StepResult{{StepName: "SendEmails", Success: true, ItemsProcessed: 3}},
	}}
	hbs := staticHeartbeats{{WorkerID: "w1", Status: domain.HeartbeatRunning}}

	s := NewServer("w1", newRegistry(t, true), cycles, nil,
		WithLock(distlock.NewPort(mem)), WithHeartbeats(hbs))
	rec := get(t, s.Handler(), "/status")

	require.Equal(t, http.StatusOK, rec.Code)
	var body StatusResponse
	decode(t, rec, &body)
	require.NotNil(t, body.LastCycle)
	assert.Equal(t, int64(7), body.LastCycle.CycleNumber)
	require.NotNil(t, body.LockHeld)
	assert.True(t, *body.LockHeld)
	require.Len(t, body.Heartbeats, 1)
	assert.Equal(t, domain.HeartbeatRunning, body.Heartbeats[0].Status)
}

func TestStatusBeforeFirstCycle(t *testing.T) {
	s := NewServer("w1", newRegistry(t, true), fixedCycles{}, nil)

	rec := get(t, s.Handler(), "/status")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "last_cycle")
}

func TestMetricsEndpoint(t *testing.T) {
	recorder := metrics.NewRecorder()
	recorder.RecordCycle(contracts.CycleResult{Success: true, Duration: time.Second})
	s := NewServer("w1", newRegistry(t, true), nil, recorder.Handler())

	rec := get(t, s.Handler(), "/metrics")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `cam_cycles_total{success="true"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	s := NewServer("w1", newRegistry(t, true), nil, nil, WithCORSOrigins([]string{"https://ops.acme.io"}))

	req := httptest.NewRequest(http.MethodOptions, "/status", nil)
	req.Header.Set("Origin", "https://ops.acme.io")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "https://ops.acme.io", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	s := NewServer("w1", newRegistry(t, true), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestUnknownRouteAnswersJSON(t *testing.T) {
	s := NewServer("w1", newRegistry(t, true), nil, nil)

	rec := get(t, s.Handler(), "/cycles")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"no route for /cycles","code":"not_found"}`, rec.Body.String())
}

func TestWrongMethodAnswersJSON(t *testing.T) {
	s := NewServer("w1", newRegistry(t, true), nil, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/status", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.JSONEq(t, `{"error":"POST is not allowed on /status","code":"method_not_allowed"}`, rec.Body.String())
}

type panickingCycles struct{}

func (panickingCycles) LastResult() (contracts.CycleResult, bool) { panic("cycle store corrupted") }

func TestHandlerPanicAnswersInternalError(t *testing.T) {
	s := NewServer("w1", newRegistry(t, true), panickingCycles{}, nil)

	rec := get(t, s.Handler(), "/status")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error","code":"internal"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "corrupted")
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "42s", formatUptime(42*time.Second))
	assert.Equal(t, "3m 5s", formatUptime(3*time.Minute+5*time.Second))
	assert.Equal(t, "1d 2h 0m 0s", formatUptime(26*time.Hour))
}
