package followup

import (
	"context"
	"time"

	"github.com/ignite/aicmo-cam/internal/domain"
)

// LeadRepository is the lead access the follow-up engine needs.
type LeadRepository interface {
	Get(ctx context.Context, id string) (*domain.Lead, error)
	// TransitionStatus moves the lead to `to` only if its current status is
	// one of `from`. It reports whether a row changed.
	TransitionStatus(ctx context.Context, id string, from []domain.LeadStatus, to domain.LeadStatus, reason string, repliedAt *time.Time) (bool, error)
	TouchReplied(ctx context.Context, id string, at time.Time) error
}

// OutboundRepository marks bounced deliveries.
type OutboundRepository interface {
	MarkLatestBounced(ctx context.Context, leadID string) (bool, error)
}
