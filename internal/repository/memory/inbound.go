package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/aicmo-cam/internal/domain"
)

// InboundRepo is the in-memory inbound email repository.
type InboundRepo struct{ s *Store }

func (r *InboundRepo) Create(_ context.Context, e *domain.InboundEmail) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.inbound {
		if existing.MessageID == e.MessageID {
			return domain.ErrDuplicate
		}
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	cp := *e
	cp.CreatedAt = time.Now()
	r.s.inbound[cp.ID] = &cp
	return nil
}

func (r *InboundRepo) LatestReceivedAt(_ context.Context) (*time.Time, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var latest *time.Time
	for _, e := range r.s.inbound {
		if latest == nil || e.ReceivedAt.After(*latest) {
			latest = timeRef(e.ReceivedAt)
		}
	}
	return latest, nil
}

func (r *InboundRepo) filter(limit int, keep func(*domain.InboundEmail) bool) []domain.InboundEmail {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.InboundEmail
	for _, e := range r.s.inbound {
		if keep(e) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.Before(out[j].ReceivedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r *InboundRepo) ListUnclassified(_ context.Context, limit int) ([]domain.InboundEmail, error) {
	return r.filter(limit, func(e *domain.InboundEmail) bool { return e.Classification == nil }), nil
}

func (r *InboundRepo) RecordClassification(_ context.Context, id string, c domain.Classification, confidence float64, reason string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.inbound[id]
	if !ok || e.Classification != nil {
		return domain.ErrNotFound
	}
	cls := c
	e.Classification = &cls
	e.ClassificationConfidence = confidence
	e.ClassificationReason = reason
	e.ClassifiedAt = timeRef(at)
	return nil
}

func (r *InboundRepo) ListUnalerted(_ context.Context, c domain.Classification, limit int) ([]domain.InboundEmail, error) {
	return r.filter(limit, func(e *domain.InboundEmail) bool {
		return e.Classification != nil && *e.Classification == c && !e.AlertSent && e.LeadID != nil
	}), nil
}

func (r *InboundRepo) MarkAlerted(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e, ok := r.s.inbound[id]; ok {
		e.AlertSent = true
	}
	return nil
}

func (r *InboundRepo) ClassificationCounts(_ context.Context, campaignID string) (map[domain.Classification]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := map[domain.Classification]int{}
	for _, e := range r.s.inbound {
		if e.CampaignID != nil && *e.CampaignID == campaignID && e.Classification != nil {
			out[*e.Classification]++
		}
	}
	return out, nil
}
