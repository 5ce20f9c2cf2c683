// Package followup applies reply classifications to leads.
//
// Transitions only move forward: a lead that has left the active states is
// never pulled back, except SUPPRESSED to QUALIFIED when re-qualification is
// enabled and UNSUBSCRIBED, which is honoured from any non-terminal state
// as well as QUALIFIED and SUPPRESSED.
package followup
