package contracts

import "time"

// OperationResult is the minimal port answer.
type OperationResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Fail builds a failed OperationResult.
func Fail(err error) OperationResult {
	return OperationResult{Error: err.Error()}
}

// LockResult reports a lock operation. Holder names the worker that owns a
// fresh heartbeat when acquisition is refused.
type LockResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Held    bool   `json:"held"`
	Holder  string `json:"holder,omitempty"`
}

// HealthStatus is a module's probed state.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "HEALTHY"
	HealthUnhealthy HealthStatus = "UNHEALTHY"
	HealthUnknown   HealthStatus = "UNKNOWN"
)

// ModuleHealth is what a Health port reports.
type ModuleHealth struct {
	ModuleName string       `json:"module_name"`
	Status     HealthStatus `json:"status"`
	Message    string       `json:"message,omitempty"`
	CheckedAt  time.Time    `json:"checked_at"`
}

// Healthy reports whether the module is usable.
func (h ModuleHealth) Healthy() bool { return h.Status == HealthHealthy }

// Domain event types published on the Events port.
const (
	EventLeadTransitioned = "lead.transitioned"
	EventCampaignPaused   = "campaign.paused"
	EventReplyClassified  = "reply.classified"
	EventEmailSent        = "email.sent"
	EventCycleCompleted   = "cycle.completed"
)

// DomainEvent is an envelope for state changes published to observers.
type DomainEvent struct {
	SchemaVersion string                 `json:"schema_version"`
	ID            string                 `json:"id"`
	Type          string                 `json:"type" validate:"required"`
	Subject       string                 `json:"subject"`
	OccurredAt    time.Time              `json:"occurred_at"`
	Payload       map[string]interface{} `json:"payload,omitempty"`
}

// StepResult records one flow step.
type StepResult struct {
	StepName       string        `json:"step_name"`
	Success        bool          `json:"success"`
	Skipped        bool          `json:"skipped"`
	ItemsProcessed int           `json:"items_processed"`
	ErrorMessage   string        `json:"error_message,omitempty"`
	Duration       time.Duration `json:"duration"`
}

// CycleResult records one flow cycle.
type CycleResult struct {
	SchemaVersion string        `json:"schema_version"`
	WorkerID      string        `json:"worker_id"`
	CycleNumber   int64         `json:"cycle_number"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration"`
	Success       bool          `json:"success"`
	Steps         []StepResult  `json:"steps"`
}

// Step returns the named step result.
func (c CycleResult) Step(name string) (StepResult, bool) {
	for _, s := range c.Steps {
		if s.StepName == name {
			return s, true
		}
	}
	return StepResult{}, false
}
