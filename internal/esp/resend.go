package esp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/ignite/aicmo-cam/internal/contracts"
	"github.com/ignite/aicmo-cam/internal/pkg/httpretry"
	"github.com/ignite/aicmo-cam/internal/pkg/logger"
)

var log = logger.Named("esp")

// ResendSender delivers mail through the Resend HTTP API.
type ResendSender struct {
	apiKey  string
	from    string
	baseURL string
	client  httpretry.HTTPDoer
}

// NewResendSender creates a sender with a fixed request timeout and retries
// on 429 and 5xx responses.
func NewResendSender(apiKey, from, baseURL string, timeout time.Duration) *ResendSender {
	return NewResendSenderWithClient(apiKey, from, baseURL,
		httpretry.NewRetryClient(&http.Client{Timeout: timeout}, 3,
			httpretry.WithBackoff(resendRetryBase, resendRetryMax)))
}

// Resend rate limits per second, so short waits clear a 429.
const (
	resendRetryBase = 500 * time.Millisecond
	resendRetryMax  = 5 * time.Second
)

// NewResendSenderWithClient uses client for every request.
func NewResendSenderWithClient(apiKey, from, baseURL string, client httpretry.HTTPDoer) *ResendSender {
	if baseURL == "" {
		baseURL = "https://api.resend.com"
	}
	return &ResendSender{
		apiKey:  apiKey,
		from:    from,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

type resendTag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type resendRequest struct {
	From    string      `json:"from"`
	To      []string    `json:"to"`
	Subject string      `json:"subject"`
	HTML    string      `json:"html"`
	Tags    []resendTag `json:"tags,omitempty"`
}

type resendResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

// Send implements ports.EmailProvider.
func (s *ResendSender) Send(ctx context.Context, msg contracts.ProviderMessage) contracts.ProviderResult {
	if !s.IsConfigured() {
		return contracts.ProviderResult{Error: ErrNotConfigured.Error()}
	}
	from := msg.From
	if from == "" {
		from = s.from
	}

	body := resendRequest{From: from, To: msg.To, Subject: msg.Subject, HTML: msg.HTMLBody}
	keys := make([]string, 0, len(msg.Tags))
	for k := range msg.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		body.Tags = append(body.Tags, resendTag{Name: k, Value: msg.Tags[k]})
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return contracts.ProviderResult{Error: fmt.Sprintf("encode resend request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/emails", bytes.NewReader(payload))
	if err != nil {
		return contracts.ProviderResult{Error: fmt.Sprintf("build resend request: %v", err)}
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		log.Warn("resend request failed", "to_email", strings.Join(msg.To, ","), "error", err)
		return contracts.ProviderResult{Error: fmt.Sprintf("resend request: %v", err)}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var out resendResponse
	_ = json.Unmarshal(raw, &out)

	if resp.StatusCode >= 300 {
		msgText := out.Message
		if msgText == "" {
			msgText = strings.TrimSpace(string(raw))
		}
		return contracts.ProviderResult{Error: fmt.Sprintf("resend status %d: %s", resp.StatusCode, msgText)}
	}
	if out.ID == "" {
		return contracts.ProviderResult{Error: "resend response missing id"}
	}

	log.Debug("resend accepted message", "to_email", strings.Join(msg.To, ","), "message_id", out.ID)
	return contracts.ProviderResult{Success: true, MessageID: out.ID}
}

func (s *ResendSender) ModuleName() string { return "resend" }

func (s *ResendSender) IsConfigured() bool {
	return s.apiKey != "" && s.from != ""
}

func (s *ResendSender) Health(context.Context) contracts.ModuleHealth {
	h := contracts.ModuleHealth{ModuleName: s.ModuleName(), Status: contracts.HealthHealthy, CheckedAt: time.Now()}
	if !s.IsConfigured() {
		h.Status = contracts.HealthUnhealthy
		h.Message = "RESEND_API_KEY or RESEND_FROM_EMAIL not set"
	}
	return h
}
