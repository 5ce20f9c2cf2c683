package decision

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/aicmo-cam/internal/contracts"
	"github.com/ignite/aicmo-cam/internal/domain"
	"github.com/ignite/aicmo-cam/internal/pkg/logger"
	"github.com/ignite/aicmo-cam/internal/ports"
)

var log = logger.Named("decision")

// Policy is the auto-pause rule.
type Policy struct {
	AutoPauseEnabled   bool
	ReplyRateThreshold float64
	MinSendsToEvaluate int
}

// Service implements ports.Decision.
type Service struct {
	campaigns CampaignRepository
	delivery  DeliveryCounter
	replies   ReplyCounter
	events    ports.Events
	policy    Policy
	now       func() time.Time
}

// NewService builds the decision engine. events may be nil.
func NewService(campaigns CampaignRepository, delivery DeliveryCounter, replies ReplyCounter, events ports.Events, policy Policy) *Service {
	return &Service{
		campaigns: campaigns,
		delivery:  delivery,
		replies:   replies,
		events:    events,
		policy:    policy,
		now:       time.Now,
	}
}

// ComputeMetrics aggregates delivery and reply counts for one campaign.
// Replies counted toward the reply rate are those a person wrote: OOO and
// bounce notifications are excluded.
func (s *Service) ComputeMetrics(ctx context.Context, campaignID string) contracts.CampaignMetrics {
	m := contracts.CampaignMetrics{CampaignID: campaignID}

	sent, bounced, err := s.delivery.CampaignDeliveryCounts(ctx, campaignID)
	if err != nil {
		m.Error = fmt.Errorf("count deliveries: %w", err).Error()
		return m
	}
	counts, err := s.replies.ClassificationCounts(ctx, campaignID)
	if err != nil {
		m.Error = fmt.Errorf("count replies: %w", err).Error()
		return m
	}

	m.SentCount = sent
	m.BounceCount = bounced
	m.PositiveCount = counts[domain.ClassPositive]
	m.NegativeCount = counts[domain.ClassNegative]
	m.UnsubCount = counts[domain.ClassUnsub]
	m.OOOCount = counts[domain.ClassOOO]
	m.ReplyCount = m.PositiveCount + m.NegativeCount + m.UnsubCount + counts[domain.ClassNeutral]

	if sent > 0 {
		m.ReplyRate = float64(m.ReplyCount) / float64(sent)
		m.PositiveRate = float64(m.PositiveCount) / float64(sent)
		m.BounceRate = float64(m.BounceCount) / float64(sent)
	}
	m.Success = true
	return m
}

// EvaluateCampaign decides whether a campaign keeps running. A PAUSE
// verdict is applied to the campaign before returning.
func (s *Service) EvaluateCampaign(ctx context.Context, campaignID string) contracts.CampaignDecision {
	d := contracts.CampaignDecision{CampaignID: campaignID, Action: contracts.ActionContinue}

	campaign, err := s.campaigns.Get(ctx, campaignID)
	if err != nil {
		d.Error = fmt.Errorf("load campaign: %w", err).Error()
		return d
	}

	m := s.ComputeMetrics(ctx, campaignID)
	d.Metrics = m
	if !m.Success {
		d.Error = m.Error
		return d
	}

	d.Success = true
	switch {
	case !campaign.IsRunning():
		d.Reason = "campaign not running"
	case !s.policy.AutoPauseEnabled:
		d.Reason = "auto-pause disabled"
	case m.SentCount < s.policy.MinSendsToEvaluate:
		d.Reason = fmt.Sprintf("insufficient sends (%d < %d)", m.SentCount, s.policy.MinSendsToEvaluate)
	case m.ReplyRate < s.policy.ReplyRateThreshold:
		d.Action = contracts.ActionPause
		d.Reason = fmt.Sprintf("reply rate %.4f below threshold %.4f after %d sends", m.ReplyRate, s.policy.ReplyRateThreshold, m.SentCount)
	default:
		d.Reason = fmt.Sprintf("reply rate %.4f meets threshold %.4f", m.ReplyRate, s.policy.ReplyRateThreshold)
	}

	if d.Action == contracts.ActionPause {
		s.pause(ctx, &d)
	}
	log.Info("campaign evaluated", "campaign_id", campaignID, "action", d.Action, "reason", d.Reason,
		"sent", m.SentCount, "replies", m.ReplyCount, "reply_rate", m.ReplyRate)
	return d
}

func (s *Service) pause(ctx context.Context, d *contracts.CampaignDecision) {
	paused, err := s.campaigns.Pause(ctx, d.CampaignID, d.Reason)
	if err != nil {
		d.Success = false
		d.Error = fmt.Errorf("pause campaign: %w", err).Error()
		return
	}
	if !paused {
		return
	}
	log.Warn("campaign paused", "campaign_id", d.CampaignID, "reason", d.Reason)
	if s.events == nil {
		return
	}
	res := s.events.Publish(ctx, contracts.DomainEvent{
		SchemaVersion: contracts.SchemaVersion,
		ID:            uuid.New().String(),
		Type:          contracts.EventCampaignPaused,
		Subject:       d.CampaignID,
		OccurredAt:    s.now(),
		Payload: map[string]interface{}{
			"reason":     d.Reason,
			"sent":       d.Metrics.SentCount,
			"replies":    d.Metrics.ReplyCount,
			"reply_rate": d.Metrics.ReplyRate,
		},
	})
	if !res.Success {
		log.Warn("publish event failed", "type", contracts.EventCampaignPaused, "error", res.Error)
	}
}

// RunningCampaigns lists the campaigns the flow should evaluate.
func (s *Service) RunningCampaigns(ctx context.Context) contracts.CampaignListResponse {
	rows, err := s.campaigns.ListByStatus(ctx, domain.CampaignRunning)
	if err != nil {
		return contracts.CampaignListResponse{Error: fmt.Errorf("list campaigns: %w", err).Error()}
	}
	ids := make([]string, 0, len(rows))
	for _, c := range rows {
		ids = append(ids, c.ID)
	}
	return contracts.CampaignListResponse{Success: true, CampaignIDs: ids}
}

func (s *Service) ModuleName() string { return "decision" }

func (s *Service) IsConfigured() bool { return s.campaigns != nil && s.delivery != nil && s.replies != nil }

func (s *Service) Health(context.Context) contracts.ModuleHealth {
	h := contracts.ModuleHealth{ModuleName: s.ModuleName(), Status: contracts.HealthHealthy, CheckedAt: s.now()}
	if !s.IsConfigured() {
		h.Status = contracts.HealthUnhealthy
		h.Message = "repositories not configured"
	}
	return h
}
