package sending

import "errors"

// Sentinel errors for the sending service.
var (
	ErrDailyCapReached = errors.New("daily send cap reached")
	ErrBatchCapReached = errors.New("batch send cap reached")
	ErrLeadNotSendable = errors.New("lead no longer accepts email")
)
