package decision

import (
	"context"

	"github.com/ignite/aicmo-cam/internal/domain"
)

// CampaignRepository is the campaign access the decision engine needs.
type CampaignRepository interface {
	Get(ctx context.Context, id string) (*domain.Campaign, error)
	ListByStatus(ctx context.Context, status domain.CampaignStatus) ([]domain.Campaign, error)
	// Pause moves a RUNNING campaign to PAUSED and reports whether it changed.
	Pause(ctx context.Context, id, reason string) (bool, error)
}

// DeliveryCounter counts delivered and bounced outbound rows.
type DeliveryCounter interface {
	CampaignDeliveryCounts(ctx context.Context, campaignID string) (sent, bounced int, err error)
}

// ReplyCounter counts classified replies per category.
type ReplyCounter interface {
	ClassificationCounts(ctx context.Context, campaignID string) (map[domain.Classification]int, error)
}
