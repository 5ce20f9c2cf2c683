package followup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/aicmo-cam/internal/contracts"
	"github.com/ignite/aicmo-cam/internal/domain"
	"github.com/ignite/aicmo-cam/internal/pkg/logger"
	"github.com/ignite/aicmo-cam/internal/ports"
)

var log = logger.Named("followup")

var liveStatuses = []domain.LeadStatus{domain.LeadProspect, domain.LeadRouted, domain.LeadContacted}

// Policy holds the transition switches.
type Policy struct {
	AllowRequalification bool
}

// rule is the target state for one classification and the states it may
// be entered from.
type rule struct {
	to   domain.LeadStatus
	from []domain.LeadStatus
}

// Service implements ports.FollowUp.
type Service struct {
	leads    LeadRepository
	outbound OutboundRepository
	events   ports.Events
	rules    map[domain.Classification]rule
	now      func() time.Time
}

// NewService builds the follow-up engine. events may be nil.
func NewService(leads LeadRepository, outbound OutboundRepository, events ports.Events, policy Policy) *Service {
	positiveFrom := append([]domain.LeadStatus{}, liveStatuses...)
	if policy.AllowRequalification {
		positiveFrom = append(positiveFrom, domain.LeadSuppressed)
	}
	unsubFrom := append(append([]domain.LeadStatus{}, liveStatuses...), domain.LeadQualified, domain.LeadSuppressed)

	return &Service{
		leads:    leads,
		outbound: outbound,
		events:   events,
		now:      time.Now,
		rules: map[domain.Classification]rule{
			domain.ClassPositive: {to: domain.LeadQualified, from: positiveFrom},
			domain.ClassNegative: {to: domain.LeadSuppressed, from: liveStatuses},
			domain.ClassUnsub:    {to: domain.LeadUnsubscribed, from: unsubFrom},
		},
	}
}

// ProcessReply moves the lead according to the classification. Replaying
// the same request is a no-op.
func (s *Service) ProcessReply(ctx context.Context, req contracts.ProcessReplyRequest) contracts.ProcessReplyResponse {
	if err := contracts.Validate(req); err != nil {
		return contracts.ProcessReplyResponse{Error: err.Error()}
	}

	lead, err := s.leads.Get(ctx, req.LeadID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return contracts.ProcessReplyResponse{Error: fmt.Sprintf("lead %s not found", req.LeadID)}
		}
		return contracts.ProcessReplyResponse{Error: err.Error()}
	}
	out := contracts.ProcessReplyResponse{Success: true, PreviousStatus: lead.Status, NewStatus: lead.Status}

	receivedAt := req.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = s.now()
	}

	if req.Classification == domain.ClassBounce {
		s.markBounced(ctx, lead.ID)
		return out
	}

	r, ok := s.rules[req.Classification]
	if !ok {
		log.Debug("no transition for classification", "lead_id", lead.ID, "classification", req.Classification)
		return out
	}

	reason := "reply:" + string(req.Classification)
	moved, err := s.leads.TransitionStatus(ctx, lead.ID, r.from, r.to, reason, &receivedAt)
	if err != nil {
		return contracts.ProcessReplyResponse{Error: fmt.Errorf("transition lead: %w", err).Error(), PreviousStatus: lead.Status}
	}
	if !moved {
		if err := s.leads.TouchReplied(ctx, lead.ID, receivedAt); err != nil {
			log.Warn("touch replied failed", "lead_id", lead.ID, "error", err)
		}
		log.Debug("transition not allowed", "lead_id", lead.ID, "status", lead.Status, "classification", req.Classification)
		return out
	}

	out.NewStatus = r.to
	out.Transitioned = true
	log.Info("lead transitioned", "lead_id", lead.ID, "from", lead.Status, "to", r.to, "reason", reason)
	s.publish(ctx, lead, r.to, reason, req.InboundID)
	return out
}

func (s *Service) markBounced(ctx context.Context, leadID string) {
	if s.outbound == nil {
		return
	}
	marked, err := s.outbound.MarkLatestBounced(ctx, leadID)
	switch {
	case err != nil:
		log.Warn("mark bounced failed", "lead_id", leadID, "error", err)
	case marked:
		log.Info("outbound email bounced", "lead_id", leadID)
	}
}

func (s *Service) publish(ctx context.Context, lead *domain.Lead, to domain.LeadStatus, reason, inboundID string) {
	if s.events == nil {
		return
	}
	res := s.events.Publish(ctx, contracts.DomainEvent{
		SchemaVersion: contracts.SchemaVersion,
		ID:            uuid.New().String(),
		Type:          contracts.EventLeadTransitioned,
		Subject:       lead.ID,
		OccurredAt:    s.now(),
		Payload: map[string]interface{}{
			"campaign_id": lead.CampaignID,
			"from":        string(lead.Status),
			"to":          string(to),
			"reason":      reason,
			"inbound_id":  inboundID,
		},
	})
	if !res.Success {
		log.Warn("publish event failed", "type", contracts.EventLeadTransitioned, "error", res.Error)
	}
}

func (s *Service) ModuleName() string { return "followup" }

func (s *Service) IsConfigured() bool { return s.leads != nil }

func (s *Service) Health(context.Context) contracts.ModuleHealth {
	h := contracts.ModuleHealth{ModuleName: s.ModuleName(), Status: contracts.HealthHealthy, CheckedAt: s.now()}
	if !s.IsConfigured() {
		h.Status = contracts.HealthUnhealthy
		h.Message = "no lead repository"
	}
	return h
}
