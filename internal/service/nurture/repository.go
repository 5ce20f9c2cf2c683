package nurture

import (
	"context"
	"time"

	"github.com/ignite/aicmo-cam/internal/domain"
)

// LeadRepository is the lead access the scheduler needs.
type LeadRepository interface {
	// ListForNurture returns ROUTED and CONTACTED leads of running
	// campaigns that have never replied, least recently contacted first.
	ListForNurture(ctx context.Context, limit int) ([]domain.Lead, error)
	StartSequence(ctx context.Context, id string, at time.Time) (bool, error)
	TransitionStatus(ctx context.Context, id string, from []domain.LeadStatus, to domain.LeadStatus, reason string, repliedAt *time.Time) (bool, error)
}

// OutboundRepository reports where a lead is in its sequence.
type OutboundRepository interface {
	// SequenceState returns the highest delivered sequence number (-1 when
	// none) and whether a QUEUED row is waiting.
	SequenceState(ctx context.Context, leadID string) (lastSent int, pending bool, err error)
}
