package esp

import "errors"

var (
	ErrNotConfigured = errors.New("email provider not configured")
	ErrNotAllowed    = errors.New("recipient not in allowlist")
)
