package memory

import (
	"context"
	"sort"
	"time"

	"github.com/ignite/aicmo-cam/internal/domain"
)

// LeadRepo is the in-memory lead repository.
type LeadRepo struct{ s *Store }

func (r *LeadRepo) Get(_ context.Context, id string) (*domain.Lead, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.leads[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (r *LeadRepo) FindByEmail(_ context.Context, email string) (*domain.Lead, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var best *domain.Lead
	for _, l := range r.s.leads {
		if lower(l.Email) != lower(email) {
			continue
		}
		if best == nil || l.CreatedAt.After(best.CreatedAt) {
			best = l
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (r *LeadRepo) ListForNurture(_ context.Context, limit int) ([]domain.Lead, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Lead
	for _, l := range r.s.leads {
		if l.Status != domain.LeadRouted && l.Status != domain.LeadContacted {
			continue
		}
		if l.LastRepliedAt != nil {
			continue
		}
		if c, ok := r.s.campaigns[l.CampaignID]; !ok || c.Status != domain.CampaignRunning {
			continue
		}
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].LastContactedAt, out[j].LastContactedAt
		switch {
		case a == nil && b != nil:
			return true
		case a != nil && b == nil:
			return false
		case a != nil && b != nil && !a.Equal(*b):
			return a.Before(*b)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *LeadRepo) TransitionStatus(_ context.Context, id string, from []domain.LeadStatus, to domain.LeadStatus, reason string, repliedAt *time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.leads[id]
	if !ok {
		return false, nil
	}
	allowed := false
	for _, f := range from {
		if l.Status == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return false, nil
	}
	l.Status = to
	l.StatusReason = reason
	if repliedAt != nil {
		l.LastRepliedAt = timeRef(*repliedAt)
	}
	l.UpdatedAt = time.Now()
	return true, nil
}

func (r *LeadRepo) TouchReplied(_ context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if l, ok := r.s.leads[id]; ok {
		l.LastRepliedAt = timeRef(at)
	}
	return nil
}

func (r *LeadRepo) MarkContacted(_ context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if l, ok := r.s.leads[id]; ok {
		l.LastContactedAt = timeRef(at)
	}
	return nil
}

func (r *LeadRepo) StartSequence(_ context.Context, id string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.leads[id]
	if !ok || l.Status != domain.LeadRouted {
		return false, nil
	}
	l.Status = domain.LeadContacted
	if l.SequenceStartAt == nil {
		l.SequenceStartAt = timeRef(at)
	}
	return true, nil
}
