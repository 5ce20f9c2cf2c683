package nurture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ignite/aicmo-cam/internal/contracts"
	"github.com/ignite/aicmo-cam/internal/domain"
	"github.com/ignite/aicmo-cam/internal/pkg/logger"
	"github.com/ignite/aicmo-cam/internal/ports"
)

var log = logger.Named("nurture")

// Config holds the scheduler settings.
type Config struct {
	NoReplyWindow   time.Duration
	DefaultSequence string
}

// Service implements ports.Nurture.
type Service struct {
	leads    LeadRepository
	outbound OutboundRepository
	email    ports.Email
	cfg      Config
	now      func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService builds the scheduler. Unknown default sequences fall back to
// cold_outreach.
func NewService(leads LeadRepository, outbound OutboundRepository, email ports.Email, cfg Config, opts ...Option) *Service {
	if !Known(cfg.DefaultSequence) {
		cfg.DefaultSequence = ColdOutreach
	}
	s := &Service{leads: leads, outbound: outbound, email: email, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// sequenceFor resolves the lead's routing sequence.
func (s *Service) sequenceFor(lead *domain.Lead) string {
	if Known(lead.RoutingSequence) {
		return lead.RoutingSequence
	}
	return s.cfg.DefaultSequence
}

// AdvanceDue queues the next email for up to limit leads whose sequence step
// is due and marks exhausted leads LOST.
func (s *Service) AdvanceDue(ctx context.Context, limit int) contracts.AdvanceResponse {
	if limit <= 0 {
		return contracts.AdvanceResponse{Success: true}
	}
	leads, err := s.leads.ListForNurture(ctx, limit)
	if err != nil {
		return contracts.AdvanceResponse{Error: fmt.Errorf("list leads: %w", err).Error()}
	}

	out := contracts.AdvanceResponse{Success: true}
	for i := range leads {
		if ctx.Err() != nil {
			break
		}
		switch s.advance(ctx, &leads[i]) {
		case outcomeEnqueued:
			out.Enqueued++
		case outcomeLost:
			out.Lost++
		case outcomeFailed:
			out.Failed++
		default:
			out.Skipped++
		}
	}
	if out.Enqueued+out.Lost > 0 {
		log.Info("nurture advanced", "enqueued", out.Enqueued, "lost", out.Lost, "skipped", out.Skipped, "failed", out.Failed)
	}
	return out
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeEnqueued
	outcomeLost
	outcomeFailed
)

func (s *Service) advance(ctx context.Context, lead *domain.Lead) outcome {
	now := s.now()
	sequence := s.sequenceFor(lead)

	lastSent, pending, err := s.outbound.SequenceState(ctx, lead.ID)
	if err != nil {
		log.Warn("sequence state failed", "lead_id", lead.ID, "error", err)
		return outcomeFailed
	}
	if pending {
		return outcomeSkipped
	}
	if lastSent >= 0 && lead.LastContactedAt != nil && now.Sub(*lead.LastContactedAt) < s.cfg.NoReplyWindow {
		return outcomeSkipped
	}

	next := lastSent + 1
	tpl, err := TemplateFor(sequence, next)
	if errors.Is(err, ErrSequenceComplete) {
		return s.markLost(ctx, lead, ErrSequenceComplete.Error())
	}
	if err != nil {
		log.Warn("template lookup failed", "lead_id", lead.ID, "sequence", sequence, "error", err)
		return outcomeFailed
	}
	if !ShouldSendNext(lead, sequence, lastSent, now) {
		return outcomeSkipped
	}

	res := s.email.Enqueue(ctx, contracts.SendEmailRequest{
		SchemaVersion:  contracts.SchemaVersion,
		CampaignID:     lead.CampaignID,
		LeadID:         lead.ID,
		ToEmail:        lead.Email,
		Subject:        tpl.Subject,
		HTMLBody:       tpl.HTMLBody,
		SequenceNumber: next,
	})
	if res.Duplicate {
		// A retired row for this step will never be delivered, so the lead
		// cannot move past it.
		if res.Status == domain.OutboundDropped || res.Status == domain.OutboundFailed {
			return s.markLost(ctx, lead, fmt.Sprintf("email %d %s: %s", next, strings.ToLower(string(res.Status)), res.Error))
		}
		return outcomeSkipped
	}
	if !res.Success {
		log.Warn("enqueue failed", "lead_id", lead.ID, "sequence", sequence, "email_number", next, "error", res.Error)
		return outcomeFailed
	}

	if lead.Status == domain.LeadRouted {
		if _, err := s.leads.StartSequence(ctx, lead.ID, now); err != nil {
			log.Warn("start sequence failed", "lead_id", lead.ID, "error", err)
		}
	}
	log.Debug("nurture email queued", "lead_id", lead.ID, "sequence", sequence, "email_number", next)
	return outcomeEnqueued
}

func (s *Service) markLost(ctx context.Context, lead *domain.Lead, reason string) outcome {
	moved, err := s.leads.TransitionStatus(ctx, lead.ID,
		[]domain.LeadStatus{domain.LeadRouted, domain.LeadContacted},
		domain.LeadLost, reason, nil)
	if err != nil {
		log.Warn("mark lost failed", "lead_id", lead.ID, "error", err)
		return outcomeFailed
	}
	if !moved {
		return outcomeSkipped
	}
	log.Info("lead lost", "lead_id", lead.ID, "reason", reason)
	return outcomeLost
}

func (s *Service) ModuleName() string { return "nurture" }

func (s *Service) IsConfigured() bool { return s.leads != nil && s.outbound != nil && s.email != nil }

func (s *Service) Health(context.Context) contracts.ModuleHealth {
	h := contracts.ModuleHealth{ModuleName: s.ModuleName(), Status: contracts.HealthHealthy, CheckedAt: s.now()}
	if !s.IsConfigured() {
		h.Status = contracts.HealthUnhealthy
		h.Message = "email port or repositories missing"
	}
	return h
}
