// Package memory implements the outreach repositories in process memory.
// The worker uses it when no database is configured, and service tests use
// it as a fake with the same semantics as the Postgres repositories.
package memory

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/aicmo-cam/internal/domain"
)

// Store holds every table behind one mutex.
type Store struct {
	mu        sync.Mutex
	leads     map[string]*domain.Lead
	campaigns map[string]*domain.Campaign
	outbound  map[string]*domain.OutboundEmail
	inbound   map[string]*domain.InboundEmail
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		leads:     map[string]*domain.Lead{},
		campaigns: map[string]*domain.Campaign{},
		outbound:  map[string]*domain.OutboundEmail{},
		inbound:   map[string]*domain.InboundEmail{},
	}
}

// Leads returns the lead repository view.
func (s *Store) Leads() *LeadRepo { return &LeadRepo{s: s} }

// Campaigns returns the campaign repository view.
func (s *Store) Campaigns() *CampaignRepo { return &CampaignRepo{s: s} }

// Outbound returns the outbound email repository view.
func (s *Store) Outbound() *OutboundRepo { return &OutboundRepo{s: s} }

// Inbound returns the inbound email repository view.
func (s *Store) Inbound() *InboundRepo { return &InboundRepo{s: s} }

// PutLead inserts or replaces a lead.
func (s *Store) PutLead(l domain.Lead) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	s.leads[l.ID] = &l
}

// PutCampaign inserts or replaces a campaign.
func (s *Store) PutCampaign(c domain.Campaign) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	s.campaigns[c.ID] = &c
}

// PutOutbound inserts or replaces an outbound row.
func (s *Store) PutOutbound(e domain.OutboundEmail) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	s.outbound[e.ID] = &e
}

// PutInbound inserts or replaces an inbound row.
func (s *Store) PutInbound(e domain.InboundEmail) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	s.inbound[e.ID] = &e
}

// Lead returns a copy of a lead.
func (s *Store) Lead(id string) (domain.Lead, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leads[id]
	if !ok {
		return domain.Lead{}, false
	}
	return *l, true
}

// Campaign returns a copy of a campaign.
func (s *Store) Campaign(id string) (domain.Campaign, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return domain.Campaign{}, false
	}
	return *c, true
}

// OutboundRows returns copies of all outbound rows ordered by creation.
func (s *Store) OutboundRows() []domain.OutboundEmail {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.OutboundEmail, 0, len(s.outbound))
	for _, e := range s.outbound {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// InboundRows returns copies of all inbound rows ordered by receipt.
func (s *Store) InboundRows() []domain.InboundEmail {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.InboundEmail, 0, len(s.inbound))
	for _, e := range s.inbound {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.Before(out[j].ReceivedAt) })
	return out
}

func lower(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func timeRef(t time.Time) *time.Time { return &t }
