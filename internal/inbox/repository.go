package inbox

import (
	"context"
	"time"

	"github.com/ignite/aicmo-cam/internal/domain"
)

// InboundRepository stores replies.
type InboundRepository interface {
	// Create returns domain.ErrDuplicate for a known Message-ID.
	Create(ctx context.Context, e *domain.InboundEmail) error
	LatestReceivedAt(ctx context.Context) (*time.Time, error)
	ListUnclassified(ctx context.Context, limit int) ([]domain.InboundEmail, error)
	// RecordClassification returns domain.ErrNotFound when the reply is
	// unknown or already classified.
	RecordClassification(ctx context.Context, id string, c domain.Classification, confidence float64, reason string, at time.Time) error
}

// LeadFinder resolves a sender address to a lead.
type LeadFinder interface {
	FindByEmail(ctx context.Context, email string) (*domain.Lead, error)
}
