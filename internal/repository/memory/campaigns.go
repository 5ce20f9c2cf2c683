package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/aicmo-cam/internal/domain"
)

// CampaignRepo is the in-memory campaign repository.
type CampaignRepo struct{ s *Store }

func (r *CampaignRepo) Get(_ context.Context, id string) (*domain.Campaign, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *CampaignRepo) ListByStatus(_ context.Context, status domain.CampaignStatus) ([]domain.Campaign, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Campaign
	for _, c := range r.s.campaigns {
		if c.Status == status {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *CampaignRepo) Pause(_ context.Context, id, reason string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[id]
	if !ok || c.Status != domain.CampaignRunning {
		return false, nil
	}
	c.Status = domain.CampaignPaused
	c.PausedReason = reason
	c.UpdatedAt = time.Now()
	return true, nil
}

func (r *CampaignRepo) EnsureByName(_ context.Context, name string) (*domain.Campaign, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.campaigns {
		if c.Name == name {
			cp := *c
			return &cp, nil
		}
	}
	now := time.Now()
	c := &domain.Campaign{ID: uuid.New().String(), Name: name, Status: domain.CampaignRunning, CreatedAt: now, UpdatedAt: now}
	r.s.campaigns[c.ID] = c
	cp := *c
	return &cp, nil
}
