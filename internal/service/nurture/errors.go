package nurture

import "errors"

// Sentinel errors for sequence lookups.
var (
	ErrSequenceComplete = errors.New("sequence complete")
	ErrUnknownSequence  = errors.New("unknown sequence")
)
