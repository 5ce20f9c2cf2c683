package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/aicmo-cam/internal/domain"
)

// OutboundRepo is the in-memory outbound email repository.
type OutboundRepo struct{ s *Store }

func (r *OutboundRepo) findKey(leadID, hash string, seq int) *domain.OutboundEmail {
	for _, e := range r.s.outbound {
		if e.LeadID == leadID && e.ContentHash == hash && e.SequenceNumber == seq {
			return e
		}
	}
	return nil
}

func (r *OutboundRepo) FindByKey(_ context.Context, leadID, contentHash string, seq int) (*domain.OutboundEmail, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e := r.findKey(leadID, contentHash, seq)
	if e == nil {
		return nil, domain.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *OutboundRepo) Create(_ context.Context, e *domain.OutboundEmail) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.findKey(e.LeadID, e.ContentHash, e.SequenceNumber) != nil {
		return domain.ErrDuplicate
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	cp := *e
	r.s.outbound[cp.ID] = &cp
	return nil
}

func (r *OutboundRepo) update(id string, from domain.OutboundStatus, fn func(*domain.OutboundEmail)) bool {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.outbound[id]
	if !ok || e.Status != from {
		return false
	}
	fn(e)
	return true
}

func (r *OutboundRepo) MarkSent(_ context.Context, id, providerMessageID string, at time.Time) error {
	r.update(id, domain.OutboundQueued, func(e *domain.OutboundEmail) {
		e.Status = domain.OutboundSent
		e.ProviderMessageID = providerMessageID
		e.SentAt = timeRef(at)
		e.ErrorMessage = ""
		e.UpdatedAt = at
	})
	return nil
}

func (r *OutboundRepo) MarkFailed(_ context.Context, id, errMsg string, at time.Time) error {
	r.update(id, domain.OutboundQueued, func(e *domain.OutboundEmail) {
		e.Status = domain.OutboundFailed
		e.ErrorMessage = errMsg
		e.UpdatedAt = at
	})
	return nil
}

func (r *OutboundRepo) MarkDropped(_ context.Context, id, reason string, at time.Time) error {
	r.update(id, domain.OutboundQueued, func(e *domain.OutboundEmail) {
		e.Status = domain.OutboundDropped
		e.ErrorMessage = reason
		e.UpdatedAt = at
	})
	return nil
}

func (r *OutboundRepo) Requeue(_ context.Context, id string, at time.Time) (bool, error) {
	return r.update(id, domain.OutboundFailed, func(e *domain.OutboundEmail) {
		e.Status = domain.OutboundQueued
		e.ErrorMessage = ""
		e.UpdatedAt = at
	}), nil
}

func (r *OutboundRepo) CountSentSince(_ context.Context, since time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, e := range r.s.outbound {
		if (e.Status == domain.OutboundSent || e.Status == domain.OutboundBounced) && e.SentAt != nil && !e.SentAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *OutboundRepo) ListQueued(_ context.Context, limit int) ([]domain.OutboundEmail, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.OutboundEmail
	for _, e := range r.s.outbound {
		if e.Status != domain.OutboundQueued {
			continue
		}
		if c, ok := r.s.campaigns[e.CampaignID]; !ok || c.Status != domain.CampaignRunning {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *OutboundRepo) MarkLatestBounced(_ context.Context, leadID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var latest *domain.OutboundEmail
	for _, e := range r.s.outbound {
		if e.LeadID != leadID || e.Status != domain.OutboundSent || e.SentAt == nil {
			continue
		}
		if latest == nil || e.SentAt.After(*latest.SentAt) {
			latest = e
		}
	}
	if latest == nil {
		return false, nil
	}
	latest.Status = domain.OutboundBounced
	return true, nil
}

func (r *OutboundRepo) SequenceState(_ context.Context, leadID string) (int, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	last, pending := -1, false
	for _, e := range r.s.outbound {
		if e.LeadID != leadID {
			continue
		}
		switch e.Status {
		case domain.OutboundSent, domain.OutboundBounced:
			if e.SequenceNumber > last {
				last = e.SequenceNumber
			}
		case domain.OutboundQueued:
			pending = true
		}
	}
	return last, pending, nil
}

func (r *OutboundRepo) CampaignDeliveryCounts(_ context.Context, campaignID string) (int, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sent, bounced := 0, 0
	for _, e := range r.s.outbound {
		if e.CampaignID != campaignID {
			continue
		}
		switch e.Status {
		case domain.OutboundSent:
			sent++
		case domain.OutboundBounced:
			sent++
			bounced++
		}
	}
	return sent, bounced, nil
}
