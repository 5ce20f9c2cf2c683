package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/aicmo-cam/internal/contracts"
)

func TestRecordCycle(t *testing.T) {
	r := NewRecorder()
	r.RecordCycle(contracts.CycleResult{
		CycleNumber: 1,
		StartedAt:   time.Unix(1700000000, 0),
		Duration:    2 * time.Second,
		Success:     true,
		Steps: []contracts.StepResult{
			{StepName: "SendEmails", Success: true, ItemsProcessed: 3, Duration: time.Second},
			{StepName: "PollInbox", ErrorMessage: "boom"},
			{StepName: "DispatchAlerts", Skipped: true},
		},
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(r.cycles.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.steps.WithLabelValues("SendEmails", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.steps.WithLabelValues("PollInbox", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.steps.WithLabelValues("DispatchAlerts", "skipped")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.stepItems.WithLabelValues("SendEmails")))
	assert.Equal(t, 1700000002.0, testutil.ToFloat64(r.lastCycle))
}

func TestHandler(t *testing.T) {
	r := NewRecorder()
	r.SetModuleHealth("email", true)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `cam_module_healthy{module="email"} 1`)
}
