package sending

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/aicmo-cam/internal/contracts"
	"github.com/ignite/aicmo-cam/internal/domain"
	"github.com/ignite/aicmo-cam/internal/pkg/logger"
	"github.com/ignite/aicmo-cam/internal/ports"
	"github.com/ignite/aicmo-cam/internal/render"
)

var log = logger.Named("sending")

const markSentRetryTimeout = 5 * time.Second

// Config holds the sending limits.
type Config struct {
	From        string
	DailyCap    int
	BatchCap    int
	// Location defines "today" for the daily cap. Defaults to time.Local.
	Location    *time.Location
	// RetryFailed lets a repeated request requeue a FAILED row. When false
	// the FAILED row is returned as a duplicate.
	RetryFailed bool
}

// Service implements ports.Email.
type Service struct {
	outbound OutboundRepository
	leads    LeadRepository
	provider ports.EmailProvider
	renderer *render.Renderer
	events   ports.Events
	cfg      Config
	now      func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithEvents publishes email.sent events.
func WithEvents(e ports.Events) Option { return func(s *Service) { s.events = e } }

// NewService creates the sending service.
func NewService(outbound OutboundRepository, leads LeadRepository, provider ports.EmailProvider, renderer *render.Renderer, cfg Config, opts ...Option) *Service {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	s := &Service{
		outbound: outbound,
		leads:    leads,
		provider: provider,
		renderer: renderer,
		cfg:      cfg,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send renders, deduplicates, checks caps, persists and dispatches one email.
func (s *Service) Send(ctx context.Context, req contracts.SendEmailRequest) contracts.SendEmailResponse {
	b := batch{cap: s.cfg.BatchCap}
	return s.send(ctx, req, &b)
}

// SendBatch sends each request in order, enforcing the batch cap across
// the whole call.
func (s *Service) SendBatch(ctx context.Context, reqs []contracts.SendEmailRequest) contracts.SendBatchResponse {
	b := batch{cap: s.cfg.BatchCap}
	out := contracts.SendBatchResponse{Success: true, Results: make([]contracts.SendEmailResponse, 0, len(reqs))}
	for _, req := range reqs {
		res := s.send(ctx, req, &b)
		switch {
		case res.Rejected:
			out.Rejected++
		case res.Success && !res.Duplicate:
			out.Sent++
		case !res.Success:
			out.Failed++
		}
		out.Results = append(out.Results, res)
	}
	return out
}

// batch counts provider dispatches within one call.
type batch struct {
	cap        int
	dispatched int
}

func (b *batch) full() bool { return b.cap > 0 && b.dispatched >= b.cap }

func (s *Service) send(ctx context.Context, req contracts.SendEmailRequest, b *batch) contracts.SendEmailResponse {
	row, existing, err := s.prepare(ctx, req)
	if err != nil {
		return failure(req, err)
	}
	if existing && !s.retryable(row) {
		return duplicate(row)
	}

	if b.full() {
		log.Info("send rejected", "reason", ErrBatchCapReached.Error(), "lead_id", req.LeadID)
		return contracts.SendEmailResponse{Rejected: true, Error: ErrBatchCapReached.Error()}
	}
	sentToday, err := s.sentToday(ctx)
	if err != nil {
		return contracts.SendEmailResponse{Error: err.Error()}
	}
	if s.cfg.DailyCap > 0 && sentToday >= s.cfg.DailyCap {
		log.Info("send rejected", "reason", ErrDailyCapReached.Error(), "sent_today", sentToday, "daily_cap", s.cfg.DailyCap, "lead_id", req.LeadID)
		return contracts.SendEmailResponse{Rejected: true, Error: fmt.Sprintf("%s (%d/%d)", ErrDailyCapReached, sentToday, s.cfg.DailyCap)}
	}

	if existing {
		if _, err := s.outbound.Requeue(ctx, row.ID, s.now()); err != nil {
			return contracts.SendEmailResponse{Error: err.Error()}
		}
		row.Status = domain.OutboundQueued
	} else if resp, done := s.persist(ctx, row); done {
		return resp
	}

	b.dispatched++
	return s.dispatch(ctx, row)
}

// Enqueue renders and persists a QUEUED row without calling the provider.
func (s *Service) Enqueue(ctx context.Context, req contracts.SendEmailRequest) contracts.SendEmailResponse {
	row, existing, err := s.prepare(ctx, req)
	if err != nil {
		return failure(req, err)
	}
	if existing {
		if !s.retryable(row) {
			return duplicate(row)
		}
		if _, err := s.outbound.Requeue(ctx, row.ID, s.now()); err != nil {
			return contracts.SendEmailResponse{Error: err.Error()}
		}
		return contracts.SendEmailResponse{Success: true, EmailID: row.ID, Status: domain.OutboundQueued}
	}
	if resp, done := s.persist(ctx, row); done {
		return resp
	}
	log.Debug("email queued", "lead_id", row.LeadID, "sequence", row.SequenceNumber, "email_id", row.ID)
	return contracts.SendEmailResponse{Success: true, EmailID: row.ID, Status: domain.OutboundQueued}
}

// DrainQueued dispatches up to min(limit, batch cap) QUEUED rows. Rows past
// the daily cap stay QUEUED for a later cycle.
func (s *Service) DrainQueued(ctx context.Context, req contracts.DrainQueueRequest) contracts.DrainQueueResponse {
	if err := contracts.Validate(req); err != nil {
		return contracts.DrainQueueResponse{Error: err.Error()}
	}
	limit := req.Limit
	if limit <= 0 || (s.cfg.BatchCap > 0 && limit > s.cfg.BatchCap) {
		limit = s.cfg.BatchCap
	}
	if limit <= 0 {
		return contracts.DrainQueueResponse{Success: true}
	}

	rows, err := s.outbound.ListQueued(ctx, limit)
	if err != nil {
		return contracts.DrainQueueResponse{Error: err.Error()}
	}
	sentToday, err := s.sentToday(ctx)
	if err != nil {
		return contracts.DrainQueueResponse{Error: err.Error()}
	}

	out := contracts.DrainQueueResponse{Success: true}
	for i := range rows {
		if ctx.Err() != nil {
			out.Deferred += len(rows) - i
			break
		}
		if s.cfg.DailyCap > 0 && sentToday >= s.cfg.DailyCap {
			out.Deferred += len(rows) - i
			log.Info("daily cap reached, leaving rows queued", "deferred", out.Deferred, "daily_cap", s.cfg.DailyCap)
			break
		}
		if reason, ok := s.leadGone(ctx, &rows[i]); ok {
			if err := s.outbound.MarkDropped(ctx, rows[i].ID, reason, s.now()); err != nil {
				log.Warn("mark email dropped failed", "email_id", rows[i].ID, "error", err)
			}
			log.Info("queued email dropped", "email_id", rows[i].ID, "lead_id", rows[i].LeadID, "reason", reason)
			out.Dropped++
			continue
		}
		res := s.dispatch(ctx, &rows[i])
		switch {
		case res.Success:
			out.Sent++
			sentToday++
		case res.Rejected:
			out.Dropped++
		default:
			out.Failed++
		}
	}
	return out
}

// prepare validates, renders and hashes a request, returning the existing
// row for its idempotency key when there is one.
func (s *Service) prepare(ctx context.Context, req contracts.SendEmailRequest) (*domain.OutboundEmail, bool, error) {
	if err := contracts.Validate(req); err != nil {
		return nil, false, err
	}

	lead, err := s.leads.Get(ctx, req.LeadID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, false, fmt.Errorf("load lead: %w", err)
	}
	vars := render.LeadVars(lead, req.Personalization)
	sendable := lead == nil || lead.Status.CanReceiveEmail()

	subject, err := s.renderer.Render(req.Subject, vars)
	if err != nil {
		return nil, false, fmt.Errorf("subject: %w", err)
	}
	body, err := s.renderer.Render(req.HTMLBody, vars)
	if err != nil {
		return nil, false, fmt.Errorf("body: %w", err)
	}
	hash := ContentHash(body)

	existing, err := s.outbound.FindByKey(ctx, req.LeadID, hash, req.SequenceNumber)
	switch {
	case err == nil:
		if s.retryable(existing) && !sendable {
			return nil, false, fmt.Errorf("%w (%s)", ErrLeadNotSendable, lead.Status)
		}
		return existing, true, nil
	case !errors.Is(err, domain.ErrNotFound):
		return nil, false, err
	}
	if !sendable {
		return nil, false, fmt.Errorf("%w (%s)", ErrLeadNotSendable, lead.Status)
	}

	now := s.now()
	return &domain.OutboundEmail{
		ID:             uuid.New().String(),
		CampaignID:     req.CampaignID,
		LeadID:         req.LeadID,
		ToEmail:        req.ToEmail,
		Subject:        subject,
		HTMLBody:       body,
		Status:         domain.OutboundQueued,
		ContentHash:    hash,
		SequenceNumber: req.SequenceNumber,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, false, nil
}

// retryable reports whether an existing row may be requeued and sent again.
func (s *Service) retryable(row *domain.OutboundEmail) bool {
	return s.cfg.RetryFailed && row.Status == domain.OutboundFailed
}

// leadGone reports whether a queued row's lead has left the sequence since
// the row was queued. A lead that cannot be found does not block the send.
func (s *Service) leadGone(ctx context.Context, row *domain.OutboundEmail) (string, bool) {
	lead, err := s.leads.Get(ctx, row.LeadID)
	if err != nil || lead.Status.CanReceiveEmail() {
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			log.Warn("load lead for queued email failed", "email_id", row.ID, "lead_id", row.LeadID, "error", err)
		}
		return "", false
	}
	return "lead " + string(lead.Status), true
}

// persist creates the QUEUED row. done is true when the caller must return
// resp instead of continuing.
func (s *Service) persist(ctx context.Context, row *domain.OutboundEmail) (resp contracts.SendEmailResponse, done bool) {
	err := s.outbound.Create(ctx, row)
	if err == nil {
		return contracts.SendEmailResponse{}, false
	}
	if errors.Is(err, domain.ErrDuplicate) {
		if existing, ferr := s.outbound.FindByKey(ctx, row.LeadID, row.ContentHash, row.SequenceNumber); ferr == nil {
			return duplicate(existing), true
		}
	}
	return contracts.SendEmailResponse{Error: err.Error()}, true
}

// dispatch calls the provider for a QUEUED row and records the outcome.
func (s *Service) dispatch(ctx context.Context, row *domain.OutboundEmail) contracts.SendEmailResponse {
	res := s.provider.Send(ctx, contracts.ProviderMessage{
		From:     s.cfg.From,
		To:       []string{row.ToEmail},
		Subject:  row.Subject,
		HTMLBody: row.HTMLBody,
		Tags: map[string]string{
			"campaign_id": row.CampaignID,
			"lead_id":     row.LeadID,
			"email_id":    row.ID,
		},
	})
	now := s.now()

	switch {
	case res.Success:
		if err := s.markSent(ctx, row, res.MessageID, now); err != nil {
			return contracts.SendEmailResponse{Error: err.Error(), EmailID: row.ID, ProviderMessageID: res.MessageID, Status: domain.OutboundDropped}
		}
		if err := s.leads.MarkContacted(ctx, row.LeadID, now); err != nil {
			log.Warn("mark lead contacted failed", "lead_id", row.LeadID, "error", err)
		}
		log.Info("email sent", "email_id", row.ID, "lead_id", row.LeadID, "to_email", row.ToEmail, "sequence", row.SequenceNumber, "message_id", res.MessageID)
		s.publish(ctx, row, res.MessageID)
		return contracts.SendEmailResponse{Success: true, EmailID: row.ID, ProviderMessageID: res.MessageID, Status: domain.OutboundSent}

	case res.Rejected:
		if err := s.outbound.MarkDropped(ctx, row.ID, res.Error, now); err != nil {
			log.Warn("mark email dropped failed", "email_id", row.ID, "error", err)
		}
		log.Info("send rejected", "reason", res.Error, "email_id", row.ID, "to_email", row.ToEmail)
		return contracts.SendEmailResponse{Rejected: true, Error: res.Error, EmailID: row.ID, Status: domain.OutboundDropped}

	default:
		if err := s.outbound.MarkFailed(ctx, row.ID, res.Error, now); err != nil {
			log.Warn("mark email failed failed", "email_id", row.ID, "error", err)
		}
		log.Warn("email send failed", "email_id", row.ID, "to_email", row.ToEmail, "error", res.Error)
		return contracts.SendEmailResponse{Error: res.Error, EmailID: row.ID, Status: domain.OutboundFailed}
	}
}

// markSent records an accepted send. The update is retried once outside the
// caller's context; if it still fails the row is dropped so no later drain
// sends it a second time.
func (s *Service) markSent(ctx context.Context, row *domain.OutboundEmail, messageID string, at time.Time) error {
	err := s.outbound.MarkSent(ctx, row.ID, messageID, at)
	if err == nil {
		return nil
	}
	log.Warn("mark email sent failed, retrying", "email_id", row.ID, "message_id", messageID, "error", err)

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), markSentRetryTimeout)
	defer cancel()
	if err = s.outbound.MarkSent(rctx, row.ID, messageID, at); err == nil {
		return nil
	}
	reason := fmt.Sprintf("accepted by provider as %s; status update failed: %v", messageID, err)
	if derr := s.outbound.MarkDropped(rctx, row.ID, reason, at); derr != nil {
		log.Error("provider accepted email but row could not be retired", "email_id", row.ID, "message_id", messageID, "error", derr)
	} else {
		log.Error("provider accepted email but status update failed, row dropped", "email_id", row.ID, "message_id", messageID, "error", err)
	}
	return fmt.Errorf("mark sent: %w", err)
}

func (s *Service) publish(ctx context.Context, row *domain.OutboundEmail, messageID string) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, contracts.DomainEvent{
		SchemaVersion: contracts.SchemaVersion,
		ID:            uuid.New().String(),
		Type:          contracts.EventEmailSent,
		Subject:       row.ID,
		OccurredAt:    s.now(),
		Payload: map[string]interface{}{
			"campaign_id":         row.CampaignID,
			"lead_id":             row.LeadID,
			"sequence_number":     row.SequenceNumber,
			"provider_message_id": messageID,
		},
	})
}

func (s *Service) sentToday(ctx context.Context) (int, error) {
	t := s.now().In(s.cfg.Location)
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.cfg.Location)
	n, err := s.outbound.CountSentSince(ctx, midnight)
	if err != nil {
		return 0, fmt.Errorf("daily cap check: %w", err)
	}
	return n, nil
}

// failure maps a prepare error to a response. A lead that has left the
// sequence is a rejection, not an error.
func failure(req contracts.SendEmailRequest, err error) contracts.SendEmailResponse {
	if errors.Is(err, ErrLeadNotSendable) {
		log.Info("send rejected", "reason", err.Error(), "lead_id", req.LeadID)
		return contracts.SendEmailResponse{Rejected: true, Error: err.Error()}
	}
	return contracts.SendEmailResponse{Error: err.Error()}
}

// duplicate reports an existing row. A FAILED row stays unsuccessful and
// carries its recorded error.
func duplicate(row *domain.OutboundEmail) contracts.SendEmailResponse {
	res := contracts.SendEmailResponse{
		Success:           row.Status != domain.OutboundFailed,
		Duplicate:         true,
		EmailID:           row.ID,
		ProviderMessageID: row.ProviderMessageID,
		Status:            row.Status,
	}
	if row.Status == domain.OutboundFailed || row.Status == domain.OutboundDropped {
		res.Error = row.ErrorMessage
	}
	return res
}

// ContentHash is the hex sha256 of a rendered body.
func ContentHash(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}

func (s *Service) ModuleName() string { return "email" }

func (s *Service) IsConfigured() bool { return s.provider != nil && s.provider.IsConfigured() }

func (s *Service) Health(ctx context.Context) contracts.ModuleHealth {
	if s.provider == nil {
		return contracts.ModuleHealth{ModuleName: s.ModuleName(), Status: contracts.HealthUnhealthy, Message: "no provider", CheckedAt: s.now()}
	}
	h := s.provider.Health(ctx)
	h.ModuleName = s.ModuleName()
	return h
}
