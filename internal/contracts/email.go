package contracts

import "github.com/ignite/aicmo-cam/internal/domain"

// SendEmailRequest asks the Email port to render and deliver (or queue) one
// message. Subject and HTMLBody are Liquid templates rendered with the
// lead's fields plus Personalization.
type SendEmailRequest struct {
	SchemaVersion   string                 `json:"schema_version"`
	CampaignID      string                 `json:"campaign_id" validate:"required"`
	LeadID          string                 `json:"lead_id" validate:"required"`
	ToEmail         string                 `json:"to_email" validate:"required,email"`
	Subject         string                 `json:"subject" validate:"required"`
	HTMLBody        string                 `json:"html_body" validate:"required"`
	SequenceNumber  int                    `json:"sequence_number" validate:"gte=0"`
	Personalization map[string]interface{} `json:"personalization,omitempty"`
}

// SendEmailResponse reports the outcome of a single send or enqueue.
// Rejected marks an expected refusal (cap reached, allowlist) rather than
// a failure. Duplicate marks an idempotent hit on an existing row.
type SendEmailResponse struct {
	Success           bool                  `json:"success"`
	Error             string                `json:"error,omitempty"`
	Rejected          bool                  `json:"rejected,omitempty"`
	Duplicate         bool                  `json:"duplicate,omitempty"`
	EmailID           string                `json:"email_id,omitempty"`
	ProviderMessageID string                `json:"provider_message_id,omitempty"`
	Status            domain.OutboundStatus `json:"status,omitempty"`
}

// SendBatchResponse aggregates a batch of sends.
type SendBatchResponse struct {
	Success  bool                `json:"success"`
	Error    string              `json:"error,omitempty"`
	Sent     int                 `json:"sent"`
	Rejected int                 `json:"rejected"`
	Failed   int                 `json:"failed"`
	Results  []SendEmailResponse `json:"results"`
}

// DrainQueueRequest dispatches up to Limit QUEUED rows.
type DrainQueueRequest struct {
	Limit int `json:"limit" validate:"gte=0"`
}

// DrainQueueResponse reports a queue drain. Deferred counts rows left QUEUED
// because a cap was reached; Dropped counts rows the provider refused.
type DrainQueueResponse struct {
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
	Sent     int    `json:"sent"`
	Failed   int    `json:"failed"`
	Dropped  int    `json:"dropped"`
	Deferred int    `json:"deferred"`
}

// ProviderMessage is what a gateway actually transmits.
type ProviderMessage struct {
	From     string            `json:"from" validate:"required"`
	To       []string          `json:"to" validate:"required,min=1,dive,email"`
	Subject  string            `json:"subject" validate:"required"`
	HTMLBody string            `json:"html"`
	Tags     map[string]string `json:"tags,omitempty"`
}

// ProviderResult is a gateway's answer for one message.
type ProviderResult struct {
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	Rejected  bool   `json:"rejected,omitempty"`
	MessageID string `json:"message_id,omitempty"`
}
