package contracts

// AlertRequest asks for a human notification.
type AlertRequest struct {
	Recipients []string `json:"recipients" validate:"required,min=1,dive,email"`
	Subject    string   `json:"subject" validate:"required"`
	Body       string   `json:"body" validate:"required"`
}

// AlertResponse reports a single notification.
type AlertResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	MessageID string `json:"message_id,omitempty"`
}

// AlertBatchResponse reports a dispatch of pending alerts.
type AlertBatchResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Sent    int    `json:"sent"`
	Failed  int    `json:"failed"`
}
