// Package nurture schedules follow-up emails along fixed sequences.
//
// A sequence is a list of day offsets from the lead's sequence start. Email
// n is due once start + offsets[n] has passed and, for n > 0, the lead has
// gone a full no-reply window since the previous send. Leads that reach the
// end of their sequence without replying are marked LOST.
package nurture
