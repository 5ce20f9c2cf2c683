package domain

import "time"

// OutboundStatus enumerates the lifecycle of a single send attempt.
type OutboundStatus string

const (
	OutboundQueued  OutboundStatus = "QUEUED"
	OutboundSent    OutboundStatus = "SENT"
	OutboundFailed  OutboundStatus = "FAILED"
	OutboundBounced OutboundStatus = "BOUNCED"
	OutboundDropped OutboundStatus = "DROPPED"
)

// OutboundEmail is one record per send attempt. The triple
// (LeadID, ContentHash, SequenceNumber) is unique.
type OutboundEmail struct {
	ID                string         `json:"id" db:"id"`
	CampaignID        string         `json:"campaign_id" db:"campaign_id"`
	LeadID            string         `json:"lead_id" db:"lead_id"`
	ToEmail           string         `json:"to_email" db:"to_email"`
	Subject           string         `json:"subject" db:"subject"`
	HTMLBody          string         `json:"html_body" db:"html_body"`
	Status            OutboundStatus `json:"status" db:"status"`
	ContentHash       string         `json:"content_hash" db:"content_hash"`
	SequenceNumber    int            `json:"sequence_number" db:"sequence_number"`
	ProviderMessageID string         `json:"provider_message_id,omitempty" db:"provider_message_id"`
	ErrorMessage      string         `json:"error_message,omitempty" db:"error_message"`
	SentAt            *time.Time     `json:"sent_at" db:"sent_at"`
	CreatedAt         time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at" db:"updated_at"`
}

// Classification is the category assigned to an inbound reply.
type Classification string

const (
	ClassPositive Classification = "POSITIVE"
	ClassNegative Classification = "NEGATIVE"
	ClassUnsub    Classification = "UNSUB"
	ClassOOO      Classification = "OOO"
	ClassBounce   Classification = "BOUNCE"
	ClassNeutral  Classification = "NEUTRAL"
)

// Valid reports whether c is one of the known categories.
func (c Classification) Valid() bool {
	switch c {
	case ClassPositive, ClassNegative, ClassUnsub, ClassOOO, ClassBounce, ClassNeutral:
		return true
	}
	return false
}

// InboundEmail is one record per received message.
type InboundEmail struct {
	ID                       string          `json:"id" db:"id"`
	MessageID                string          `json:"message_id" db:"message_id"`
	LeadID                   *string         `json:"lead_id" db:"lead_id"`
	CampaignID               *string         `json:"campaign_id" db:"campaign_id"`
	FromEmail                string          `json:"from_email" db:"from_email"`
	Subject                  string          `json:"subject" db:"subject"`
	Body                     string          `json:"body" db:"body"`
	InReplyTo                string          `json:"in_reply_to,omitempty" db:"in_reply_to"`
	ReceivedAt               time.Time       `json:"received_at" db:"received_at"`
	Classification           *Classification `json:"classification" db:"classification"`
	ClassificationConfidence float64         `json:"classification_confidence" db:"classification_confidence"`
	ClassificationReason     string          `json:"classification_reason" db:"classification_reason"`
	ClassifiedAt             *time.Time      `json:"classified_at" db:"classified_at"`
	AlertSent                bool            `json:"alert_sent" db:"alert_sent"`
	CreatedAt                time.Time       `json:"created_at" db:"created_at"`
}
