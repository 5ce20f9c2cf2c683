package inbox

import "errors"

// Sentinel errors for the inbox package.
var (
	ErrNotConfigured = errors.New("imap not configured")
	ErrNoMessageID   = errors.New("message has no Message-ID")
)
