package sending

import (
	"context"
	"time"

	"github.com/ignite/aicmo-cam/internal/domain"
)

// OutboundRepository is the data access contract for outbound email rows.
type OutboundRepository interface {
	// FindByKey returns domain.ErrNotFound when no row has the key.
	FindByKey(ctx context.Context, leadID, contentHash string, seq int) (*domain.OutboundEmail, error)
	// Create returns domain.ErrDuplicate when the key already exists.
	Create(ctx context.Context, e *domain.OutboundEmail) error
	MarkSent(ctx context.Context, id, providerMessageID string, at time.Time) error
	MarkFailed(ctx context.Context, id, errMsg string, at time.Time) error
	MarkDropped(ctx context.Context, id, reason string, at time.Time) error
	Requeue(ctx context.Context, id string, at time.Time) (bool, error)
	CountSentSince(ctx context.Context, since time.Time) (int, error)
	ListQueued(ctx context.Context, limit int) ([]domain.OutboundEmail, error)
}

// LeadRepository is the lead access the sending service needs.
type LeadRepository interface {
	Get(ctx context.Context, id string) (*domain.Lead, error)
	MarkContacted(ctx context.Context, id string, at time.Time) error
}
