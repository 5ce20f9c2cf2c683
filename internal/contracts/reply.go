package contracts

import (
	"time"

	"github.com/ignite/aicmo-cam/internal/domain"
)

// ClassifyReplyRequest is the input to the reply classifier.
type ClassifyReplyRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// ClassifyReplyResponse carries the category, a confidence in [0,1] and the
// matched evidence.
type ClassifyReplyResponse struct {
	Success    bool                  `json:"success"`
	Error      string                `json:"error,omitempty"`
	Category   domain.Classification `json:"category"`
	Confidence float64               `json:"confidence"`
	Reason     string                `json:"reason"`
}

// ProcessReplyRequest applies a classification to a lead.
type ProcessReplyRequest struct {
	InboundID      string                `json:"inbound_id"`
	LeadID         string                `json:"lead_id" validate:"required"`
	Classification domain.Classification `json:"classification" validate:"required,oneof=POSITIVE NEGATIVE UNSUB OOO BOUNCE NEUTRAL"`
	ReceivedAt     time.Time             `json:"received_at"`
}

// ProcessReplyResponse reports whether the lead moved.
type ProcessReplyResponse struct {
	Success        bool              `json:"success"`
	Error          string            `json:"error,omitempty"`
	PreviousStatus domain.LeadStatus `json:"previous_status,omitempty"`
	NewStatus      domain.LeadStatus `json:"new_status,omitempty"`
	Transitioned   bool              `json:"transitioned"`
}

// FetchInboxRequest bounds one mailbox poll.
type FetchInboxRequest struct {
	Limit int `json:"limit" validate:"gte=0"`
	// Since overrides the service's poll window for this call. The window
	// itself never moves backwards.
	Since *time.Time `json:"since,omitempty"`
}

// FetchInboxResponse reports one mailbox poll.
type FetchInboxResponse struct {
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	Fetched    int    `json:"fetched"`
	Stored     int    `json:"stored"`
	Duplicates int    `json:"duplicates"`
	Unmatched  int    `json:"unmatched"`
	// Since is the window start used; FetchTimestamp is when the mailbox
	// was last read.
	Since          time.Time `json:"since"`
	FetchTimestamp time.Time `json:"fetch_timestamp"`
}

// InboundReply is a parsed message as delivered by a mailbox gateway.
type InboundReply struct {
	MessageID  string    `json:"message_id"`
	From       string    `json:"from"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	InReplyTo  string    `json:"in_reply_to,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
	// OriginalRecipient is the failed address of a delivery status
	// notification.
	OriginalRecipient string `json:"original_recipient,omitempty"`
}

// MailboxFetchResult is a gateway's answer for one poll window.
type MailboxFetchResult struct {
	Success bool           `json:"success"`
	Error   string         `json:"error,omitempty"`
	Replies []InboundReply `json:"replies"`
}

// PendingRepliesResponse lists stored replies that have no classification.
type PendingRepliesResponse struct {
	Success bool                  `json:"success"`
	Error   string                `json:"error,omitempty"`
	Replies []domain.InboundEmail `json:"replies"`
}

// RecordClassificationRequest stores a classifier verdict on a reply.
type RecordClassificationRequest struct {
	InboundID      string                `json:"inbound_id" validate:"required"`
	Classification domain.Classification `json:"classification" validate:"required"`
	Confidence     float64               `json:"confidence" validate:"gte=0,lte=1"`
	Reason         string                `json:"reason"`
}
