package domain

import "time"

// LeadStatus enumerates the states of the lead state machine.
//
//	PROSPECT → ROUTED → CONTACTED → {QUALIFIED | SUPPRESSED | UNSUBSCRIBED | INVALID | LOST}
//
// DEAD is an operator-only sink. Transitions never go backwards.
type LeadStatus string

const (
	LeadProspect     LeadStatus = "PROSPECT"
	LeadRouted       LeadStatus = "ROUTED"
	LeadContacted    LeadStatus = "CONTACTED"
	LeadQualified    LeadStatus = "QUALIFIED"
	LeadSuppressed   LeadStatus = "SUPPRESSED"
	LeadUnsubscribed LeadStatus = "UNSUBSCRIBED"
	LeadInvalid      LeadStatus = "INVALID"
	LeadLost         LeadStatus = "LOST"
	LeadDead         LeadStatus = "DEAD"
)

// IsActive reports whether the lead is still inside its outreach sequence.
func (s LeadStatus) IsActive() bool {
	switch s {
	case LeadProspect, LeadRouted, LeadContacted:
		return true
	}
	return false
}

// CanReceiveEmail reports whether outreach may still be sent to the lead.
func (s LeadStatus) CanReceiveEmail() bool {
	return s.IsActive() || s == LeadQualified
}

// IsTerminal reports whether no automatic transition may leave this status.
func (s LeadStatus) IsTerminal() bool {
	return !s.IsActive()
}

// Lead is a prospective contact tracked through a nurture sequence.
type Lead struct {
	ID              string     `json:"id" db:"id"`
	CampaignID      string     `json:"campaign_id" db:"campaign_id"`
	Email           string     `json:"email" db:"email"`
	FirstName       string     `json:"first_name" db:"first_name"`
	LastName        string     `json:"last_name" db:"last_name"`
	Company         string     `json:"company" db:"company"`
	Title           string     `json:"title" db:"title"`
	Status          LeadStatus `json:"status" db:"status"`
	StatusReason    string     `json:"status_reason,omitempty" db:"status_reason"`
	RoutingSequence string     `json:"routing_sequence" db:"routing_sequence"`
	SequenceStartAt *time.Time `json:"sequence_start_at" db:"sequence_start_at"`
	LastContactedAt *time.Time `json:"last_contacted_at" db:"last_contacted_at"`
	LastRepliedAt   *time.Time `json:"last_replied_at" db:"last_replied_at"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// FullName joins first and last name, skipping blanks.
func (l *Lead) FullName() string {
	switch {
	case l.FirstName != "" && l.LastName != "":
		return l.FirstName + " " + l.LastName
	case l.FirstName != "":
		return l.FirstName
	default:
		return l.LastName
	}
}
