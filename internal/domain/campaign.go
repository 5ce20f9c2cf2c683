package domain

import "time"

// CampaignStatus enumerates the lifecycle states of a campaign.
type CampaignStatus string

const (
	CampaignRunning CampaignStatus = "RUNNING"
	CampaignPaused  CampaignStatus = "PAUSED"
)

// Campaign is a named outreach effort grouping leads and emails.
type Campaign struct {
	ID           string         `json:"id" db:"id"`
	Name         string         `json:"name" db:"name"`
	Status       CampaignStatus `json:"status" db:"status"`
	PausedReason string         `json:"paused_reason,omitempty" db:"paused_reason"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
}

// IsRunning reports whether the campaign accepts new sends.
func (c *Campaign) IsRunning() bool {
	return c.Status == CampaignRunning
}
