package contracts

// DecisionAction is the outcome of a campaign evaluation.
type DecisionAction string

const (
	ActionContinue DecisionAction = "CONTINUE"
	ActionPause    DecisionAction = "PAUSE"
)

// CampaignMetrics is a read-only aggregate over one campaign.
type CampaignMetrics struct {
	Success       bool    `json:"success"`
	Error         string  `json:"error,omitempty"`
	CampaignID    string  `json:"campaign_id"`
	SentCount     int     `json:"sent_count"`
	ReplyCount    int     `json:"reply_count"`
	PositiveCount int     `json:"positive_count"`
	NegativeCount int     `json:"negative_count"`
	BounceCount   int     `json:"bounce_count"`
	UnsubCount    int     `json:"unsub_count"`
	OOOCount      int     `json:"ooo_count"`
	ReplyRate     float64 `json:"reply_rate"`
	PositiveRate  float64 `json:"positive_rate"`
	BounceRate    float64 `json:"bounce_rate"`
}

// CampaignDecision is an evaluation verdict kept for audit logging.
type CampaignDecision struct {
	Success    bool            `json:"success"`
	Error      string          `json:"error,omitempty"`
	CampaignID string          `json:"campaign_id"`
	Action     DecisionAction  `json:"action"`
	Reason     string          `json:"reason"`
	Metrics    CampaignMetrics `json:"metrics"`
}

// CampaignListResponse lists campaign ids.
type CampaignListResponse struct {
	Success     bool     `json:"success"`
	Error       string   `json:"error,omitempty"`
	CampaignIDs []string `json:"campaign_ids"`
}

// AdvanceResponse reports one nurture advancement pass. Skipped counts
// leads not yet due; Failed counts leads whose next email could not be
// queued.
type AdvanceResponse struct {
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
	Enqueued int    `json:"enqueued"`
	Lost     int    `json:"lost"`
	Skipped  int    `json:"skipped"`
	Failed   int    `json:"failed"`
}
