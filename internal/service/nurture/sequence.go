package nurture

import (
	"time"

	"github.com/ignite/aicmo-cam/internal/domain"
)

// Sequence names.
const (
	AggressiveClose = "aggressive_close"
	ColdOutreach    = "cold_outreach"
	WarmNurture     = "warm_nurture"
)

var offsets = map[string][]int{
	AggressiveClose: {0, 2, 5},
	ColdOutreach:    {0, 7, 14, 21, 28, 35, 42, 49},
	WarmNurture:     {0, 3, 7, 14, 21},
}

// Offsets returns the day offsets of a sequence.
func Offsets(sequence string) ([]int, bool) {
	o, ok := offsets[sequence]
	return o, ok
}

// Known reports whether the sequence exists.
func Known(sequence string) bool {
	_, ok := offsets[sequence]
	return ok
}

// anchor is the instant offsets are measured from. Leads that have not
// started their sequence are measured from creation.
func anchor(lead *domain.Lead) time.Time {
	if lead.SequenceStartAt != nil {
		return *lead.SequenceStartAt
	}
	return lead.CreatedAt
}

// NextSendTime returns when email lastSentIndex+1 is due. lastSentIndex is
// -1 before the first send. ok is false when the sequence is exhausted or
// unknown.
func NextSendTime(lead *domain.Lead, sequence string, lastSentIndex int) (time.Time, bool) {
	o, known := offsets[sequence]
	next := lastSentIndex + 1
	if !known || next < 0 || next >= len(o) {
		return time.Time{}, false
	}
	return anchor(lead).AddDate(0, 0, o[next]), true
}

// ShouldSendNext reports whether the next email of the sequence is due.
func ShouldSendNext(lead *domain.Lead, sequence string, lastSentIndex int, now time.Time) bool {
	at, ok := NextSendTime(lead, sequence, lastSentIndex)
	return ok && !now.Before(at)
}
