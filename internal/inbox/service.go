package inbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/aicmo-cam/internal/contracts"
	"github.com/ignite/aicmo-cam/internal/domain"
	"github.com/ignite/aicmo-cam/internal/ports"
)

// initialLookback is the poll window used when nothing has been stored yet.
const initialLookback = 24 * time.Hour

// Service implements ports.Inbox.
type Service struct {
	provider     ports.InboxProvider
	inbound      InboundRepository
	leads        LeadFinder
	events       ports.Events
	pollInterval time.Duration
	now          func() time.Time

	mu       sync.Mutex
	since    time.Time
	lastPoll time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithEvents publishes reply.classified events.
func WithEvents(e ports.Events) Option { return func(s *Service) { s.events = e } }

// WithPollInterval sets the minimum gap between mailbox polls.
func WithPollInterval(d time.Duration) Option { return func(s *Service) { s.pollInterval = d } }

// NewService creates the inbox service.
func NewService(provider ports.InboxProvider, inbound InboundRepository, leads LeadFinder, opts ...Option) *Service {
	s := &Service{provider: provider, inbound: inbound, leads: leads, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchNew polls the mailbox and stores replies not seen before. Polls
// closer together than the poll interval return without contacting the
// server.
func (s *Service) FetchNew(ctx context.Context, req contracts.FetchInboxRequest) contracts.FetchInboxResponse {
	if err := contracts.Validate(req); err != nil {
		return contracts.FetchInboxResponse{Error: err.Error()}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.pollInterval > 0 && !s.lastPoll.IsZero() && now.Sub(s.lastPoll) < s.pollInterval {
		return contracts.FetchInboxResponse{Success: true, Since: s.since, FetchTimestamp: s.lastPoll}
	}
	if err := s.initWindow(ctx, now); err != nil {
		return contracts.FetchInboxResponse{Error: err.Error()}
	}
	since := s.since
	if req.Since != nil {
		since = *req.Since
	}

	res := s.provider.Fetch(ctx, since, req.Limit)
	if !res.Success {
		return contracts.FetchInboxResponse{Error: res.Error, Since: since}
	}
	s.lastPoll = now

	out := contracts.FetchInboxResponse{Success: true, Fetched: len(res.Replies), Since: since, FetchTimestamp: now}
	newest := s.since
	for _, r := range res.Replies {
		stored, matched, err := s.store(ctx, r)
		switch {
		case err != nil:
			log.Warn("store reply failed", "message_id", r.MessageID, "error", err)
			out.Success = false
			out.Error = err.Error()
			continue
		case !stored:
			out.Duplicates++
		default:
			out.Stored++
			if !matched {
				out.Unmatched++
			}
		}
		if r.ReceivedAt.After(newest) {
			newest = r.ReceivedAt
		}
	}
	// Keep the window where it was if a write failed, so the next poll
	// retries the batch; duplicates are skipped on the retry.
	if out.Success {
		s.since = newest
	}

	if out.Fetched > 0 {
		log.Info("inbox polled", "fetched", out.Fetched, "stored", out.Stored, "duplicates", out.Duplicates, "unmatched", out.Unmatched)
	}
	return out
}

func (s *Service) initWindow(ctx context.Context, now time.Time) error {
	if !s.since.IsZero() {
		return nil
	}
	latest, err := s.inbound.LatestReceivedAt(ctx)
	if err != nil {
		return fmt.Errorf("load poll window: %w", err)
	}
	if latest != nil {
		s.since = *latest
	} else {
		s.since = now.Add(-initialLookback)
	}
	return nil
}

// store persists one reply. stored is false for a known Message-ID.
func (s *Service) store(ctx context.Context, r contracts.InboundReply) (stored, matched bool, err error) {
	if r.MessageID == "" {
		return false, false, ErrNoMessageID
	}
	e := &domain.InboundEmail{
		ID:         uuid.New().String(),
		MessageID:  r.MessageID,
		FromEmail:  r.From,
		Subject:    r.Subject,
		Body:       r.Body,
		InReplyTo:  r.InReplyTo,
		ReceivedAt: r.ReceivedAt,
	}
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = s.now()
	}

	// Bounce notifications come from the mail system; the lead is the
	// recipient named in the report.
	address := r.From
	if r.OriginalRecipient != "" {
		address = r.OriginalRecipient
	}
	lead, err := s.leads.FindByEmail(ctx, address)
	switch {
	case err == nil:
		e.LeadID = &lead.ID
		campaignID := lead.CampaignID
		e.CampaignID = &campaignID
		matched = true
	case !errors.Is(err, domain.ErrNotFound):
		return false, false, fmt.Errorf("resolve lead: %w", err)
	}

	if err := s.inbound.Create(ctx, e); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return false, matched, nil
		}
		return false, matched, fmt.Errorf("store reply: %w", err)
	}
	if !matched {
		log.Info("reply from unknown sender stored", "from_email", r.From, "message_id", r.MessageID)
	}
	return true, matched, nil
}

// PendingClassification lists stored replies that have no classification,
// oldest first.
func (s *Service) PendingClassification(ctx context.Context, limit int) contracts.PendingRepliesResponse {
	rows, err := s.inbound.ListUnclassified(ctx, limit)
	if err != nil {
		return contracts.PendingRepliesResponse{Error: fmt.Errorf("list unclassified: %w", err).Error()}
	}
	return contracts.PendingRepliesResponse{Success: true, Replies: rows}
}

// RecordClassification stores the classifier verdict once. A second call
// for the same reply fails.
func (s *Service) RecordClassification(ctx context.Context, req contracts.RecordClassificationRequest) contracts.OperationResult {
	if err := contracts.Validate(req); err != nil {
		return contracts.Fail(err)
	}
	if !req.Classification.Valid() {
		return contracts.Fail(fmt.Errorf("invalid classification %q", req.Classification))
	}
	err := s.inbound.RecordClassification(ctx, req.InboundID, req.Classification, req.Confidence, req.Reason, s.now())
	if errors.Is(err, domain.ErrNotFound) {
		return contracts.Fail(fmt.Errorf("reply %s unknown or already classified", req.InboundID))
	}
	if err != nil {
		return contracts.Fail(fmt.Errorf("record classification: %w", err))
	}

	if s.events != nil {
		res := s.events.Publish(ctx, contracts.DomainEvent{
			SchemaVersion: contracts.SchemaVersion,
			ID:            uuid.New().String(),
			Type:          contracts.EventReplyClassified,
			Subject:       req.InboundID,
			OccurredAt:    s.now(),
			Payload: map[string]interface{}{
				"classification": string(req.Classification),
				"confidence":     req.Confidence,
				"reason":         req.Reason,
			},
		})
		if !res.Success {
			log.Warn("publish event failed", "type", contracts.EventReplyClassified, "error", res.Error)
		}
	}
	return contracts.OperationResult{Success: true}
}

func (s *Service) ModuleName() string { return "inbox" }

func (s *Service) IsConfigured() bool { return s.provider != nil && s.provider.IsConfigured() }

func (s *Service) Health(ctx context.Context) contracts.ModuleHealth {
	if s.provider == nil {
		return contracts.ModuleHealth{ModuleName: s.ModuleName(), Status: contracts.HealthUnhealthy, Message: "no mailbox provider", CheckedAt: s.now()}
	}
	h := s.provider.Health(ctx)
	h.ModuleName = s.ModuleName()
	return h
}
