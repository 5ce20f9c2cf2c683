// Package ports declares the capability interfaces the flow runner and
// services depend on. Implementations live in service and gateway packages
// and are wired only by the container.
//
// Port methods never panic and never return Go errors: failures are carried
// in the Success/Error fields of the contract results.
package ports

import (
	"context"
	"time"

	"github.com/ignite/aicmo-cam/internal/contracts"
)

// Capability names registered with the module registry.
const (
	CapEmailSend      = "email.send"
	CapEmailProvider  = "email.provider"
	CapReplyClassify  = "reply.classify"
	CapFollowUp       = "followup.process"
	CapInboxFetch     = "inbox.fetch"
	CapDecision       = "decision.evaluate"
	CapNurture        = "nurture.advance"
	CapAlertSend      = "alert.send"
	CapWorkerLock     = "worker.lock"
	CapMeteringRecord = "metering.record"
	CapEventsPublish  = "events.publish"
)

// Health is implemented by every module so the registry can probe it.
type Health interface {
	ModuleName() string
	IsConfigured() bool
	Health(ctx context.Context) contracts.ModuleHealth
}

// Email renders, deduplicates, caps and dispatches outbound email.
type Email interface {
	Send(ctx context.Context, req contracts.SendEmailRequest) contracts.SendEmailResponse
	SendBatch(ctx context.Context, reqs []contracts.SendEmailRequest) contracts.SendBatchResponse
	Enqueue(ctx context.Context, req contracts.SendEmailRequest) contracts.SendEmailResponse
	DrainQueued(ctx context.Context, req contracts.DrainQueueRequest) contracts.DrainQueueResponse
}

// EmailProvider is a delivery gateway (Resend, SES, or a guard around one).
type EmailProvider interface {
	Health
	Send(ctx context.Context, msg contracts.ProviderMessage) contracts.ProviderResult
}

// Classification labels an inbound reply.
type Classification interface {
	Classify(ctx context.Context, req contracts.ClassifyReplyRequest) contracts.ClassifyReplyResponse
}

// FollowUp applies a classification to a lead.
type FollowUp interface {
	ProcessReply(ctx context.Context, req contracts.ProcessReplyRequest) contracts.ProcessReplyResponse
}

// Inbox polls the reply mailbox and tracks classification of stored replies.
type Inbox interface {
	FetchNew(ctx context.Context, req contracts.FetchInboxRequest) contracts.FetchInboxResponse
	PendingClassification(ctx context.Context, limit int) contracts.PendingRepliesResponse
	RecordClassification(ctx context.Context, req contracts.RecordClassificationRequest) contracts.OperationResult
}

// InboxProvider is a mailbox gateway returning messages received at or after since.
type InboxProvider interface {
	Health
	Fetch(ctx context.Context, since time.Time, limit int) contracts.MailboxFetchResult
}

// Decision computes campaign metrics and applies the pause policy.
type Decision interface {
	ComputeMetrics(ctx context.Context, campaignID string) contracts.CampaignMetrics
	EvaluateCampaign(ctx context.Context, campaignID string) contracts.CampaignDecision
	RunningCampaigns(ctx context.Context) contracts.CampaignListResponse
}

// Nurture advances leads through their follow-up sequences.
type Nurture interface {
	AdvanceDue(ctx context.Context, limit int) contracts.AdvanceResponse
}

// Alert notifies a human about qualified interest.
type Alert interface {
	SendAlert(ctx context.Context, req contracts.AlertRequest) contracts.AlertResponse
	DispatchPending(ctx context.Context, limit int) contracts.AlertBatchResponse
}

// Lock is the single-active-worker heartbeat lock.
type Lock interface {
	Acquire(ctx context.Context, workerID string, ttl time.Duration) contracts.LockResult
	Refresh(ctx context.Context, workerID string) contracts.LockResult
	Release(ctx context.Context, workerID string) contracts.LockResult
	IsHeld(ctx context.Context, workerID string) contracts.LockResult
}

// Metering records cycle and step outcomes.
type Metering interface {
	RecordCycle(result contracts.CycleResult)
}

// Events publishes domain events to observers.
type Events interface {
	Publish(ctx context.Context, event contracts.DomainEvent) contracts.OperationResult
}
