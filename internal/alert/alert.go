// Package alert notifies people by email when a lead replies with interest.
package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/aicmo-cam/internal/contracts"
	"github.com/ignite/aicmo-cam/internal/domain"
	"github.com/ignite/aicmo-cam/internal/pkg/logger"
	"github.com/ignite/aicmo-cam/internal/ports"
	"github.com/ignite/aicmo-cam/internal/render"
)

var log = logger.Named("alert")

// ErrNoRecipients is returned when no alert addresses are configured.
var ErrNoRecipients = errors.New("no alert recipients configured")

const (
	subjectTemplate = `Qualified reply from {{ full_name | default: email }}{% if company != "" %} ({{ company }}){% endif %}`
	bodyTemplate    = `<p><b>{{ full_name | default: email | escape }}</b> replied with interest.</p>
<ul>
<li>Email: {{ email | escape }}</li>
<li>Company: {{ company | default: "unknown" | escape }}</li>
<li>Title: {{ title | default: "unknown" | escape }}</li>
<li>Received: {{ received_at }}</li>
</ul>
<p><b>Subject:</b> {{ reply_subject | escape }}</p>
<blockquote>{{ reply_body | escape }}</blockquote>`
)

// InboundRepository tracks which replies have been alerted on.
type InboundRepository interface {
	ListUnalerted(ctx context.Context, c domain.Classification, limit int) ([]domain.InboundEmail, error)
	MarkAlerted(ctx context.Context, id string) error
}

// LeadGetter loads the lead behind a reply.
type LeadGetter interface {
	Get(ctx context.Context, id string) (*domain.Lead, error)
}

// Notifier implements ports.Alert over an email provider.
type Notifier struct {
	provider   ports.EmailProvider
	inbound    InboundRepository
	leads      LeadGetter
	renderer   *render.Renderer
	from       string
	recipients []string
}

// NewNotifier creates a notifier sending from `from` to recipients.
func NewNotifier(provider ports.EmailProvider, inbound InboundRepository, leads LeadGetter, renderer *render.Renderer, from string, recipients []string) *Notifier {
	return &Notifier{
		provider:   provider,
		inbound:    inbound,
		leads:      leads,
		renderer:   renderer,
		from:       from,
		recipients: recipients,
	}
}

// SendAlert delivers one notification.
func (n *Notifier) SendAlert(ctx context.Context, req contracts.AlertRequest) contracts.AlertResponse {
	if err := contracts.Validate(req); err != nil {
		return contracts.AlertResponse{Error: err.Error()}
	}
	res := n.provider.Send(ctx, contracts.ProviderMessage{
		From:     n.from,
		To:       req.Recipients,
		Subject:  req.Subject,
		HTMLBody: req.Body,
		Tags:     map[string]string{"kind": "alert"},
	})
	if !res.Success {
		return contracts.AlertResponse{Error: res.Error}
	}
	return contracts.AlertResponse{Success: true, MessageID: res.MessageID}
}

// DispatchPending alerts on up to limit POSITIVE replies that have not been
// alerted yet. A reply is marked only after its alert was accepted.
func (n *Notifier) DispatchPending(ctx context.Context, limit int) contracts.AlertBatchResponse {
	if len(n.recipients) == 0 {
		return contracts.AlertBatchResponse{Error: ErrNoRecipients.Error()}
	}
	rows, err := n.inbound.ListUnalerted(ctx, domain.ClassPositive, limit)
	if err != nil {
		return contracts.AlertBatchResponse{Error: fmt.Errorf("list unalerted: %w", err).Error()}
	}

	out := contracts.AlertBatchResponse{Success: true}
	for i := range rows {
		if ctx.Err() != nil {
			break
		}
		if err := n.alertOne(ctx, &rows[i]); err != nil {
			log.Warn("alert failed", "inbound_id", rows[i].ID, "error", err)
			out.Failed++
			continue
		}
		out.Sent++
	}
	if out.Sent+out.Failed > 0 {
		log.Info("alerts dispatched", "sent", out.Sent, "failed", out.Failed)
	}
	return out
}

func (n *Notifier) alertOne(ctx context.Context, reply *domain.InboundEmail) error {
	lead := &domain.Lead{Email: reply.FromEmail}
	if reply.LeadID != nil {
		l, err := n.leads.Get(ctx, *reply.LeadID)
		switch {
		case err == nil:
			lead = l
		case !errors.Is(err, domain.ErrNotFound):
			return fmt.Errorf("load lead: %w", err)
		}
	}

	vars := render.LeadVars(lead, map[string]interface{}{
		"reply_subject": reply.Subject,
		"reply_body":    reply.Body,
		"received_at":   reply.ReceivedAt.Format(time.RFC1123),
	})
	subject, err := n.renderer.Render(subjectTemplate, vars)
	if err != nil {
		return err
	}
	body, err := n.renderer.Render(bodyTemplate, vars)
	if err != nil {
		return err
	}

	res := n.SendAlert(ctx, contracts.AlertRequest{Recipients: n.recipients, Subject: subject, Body: body})
	if !res.Success {
		return errors.New(res.Error)
	}
	if err := n.inbound.MarkAlerted(ctx, reply.ID); err != nil {
		return fmt.Errorf("mark alerted: %w", err)
	}
	log.Info("qualified lead alert sent", "inbound_id", reply.ID, "lead_email", lead.Email, "message_id", res.MessageID)
	return nil
}

func (n *Notifier) ModuleName() string { return "alert" }

func (n *Notifier) IsConfigured() bool {
	return len(n.recipients) > 0 && n.provider != nil && n.provider.IsConfigured()
}

func (n *Notifier) Health(ctx context.Context) contracts.ModuleHealth {
	h := contracts.ModuleHealth{ModuleName: n.ModuleName(), Status: contracts.HealthHealthy, CheckedAt: time.Now()}
	switch {
	case len(n.recipients) == 0:
		h.Status = contracts.HealthUnhealthy
		h.Message = ErrNoRecipients.Error()
	case n.provider == nil:
		h.Status = contracts.HealthUnhealthy
		h.Message = "no email provider"
	default:
		ph := n.provider.Health(ctx)
		h.Status, h.Message = ph.Status, ph.Message
	}
	return h
}
