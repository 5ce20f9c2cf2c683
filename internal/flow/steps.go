package flow

import (
	"context"
	"errors"
	"fmt"

	"github.com/ignite/aicmo-cam/internal/container"
	"github.com/ignite/aicmo-cam/internal/contracts"
	"github.com/ignite/aicmo-cam/internal/ports"
)

// errNotRegistered marks a step whose port is missing from the container.
// The step is recorded as skipped rather than failed.
var errNotRegistered = errors.New("port not registered")

type step struct {
	name     string
	requires []string
	run      func(ctx context.Context, limit int) (int, error)
}

func (r *Runner) defineSteps() []step {
	return []step{
		{StepSendEmails, []string{ports.CapEmailSend}, r.sendEmails},
		{StepPollInbox, []string{ports.CapInboxFetch}, r.pollInbox},
		{StepClassifyAndProcess, []string{ports.CapInboxFetch, ports.CapReplyClassify, ports.CapFollowUp}, r.classifyAndProcess},
		{StepNoReplyTimeouts, []string{ports.CapNurture}, r.noReplyTimeouts},
		{StepComputeMetrics, []string{ports.CapDecision}, r.computeMetrics},
		{StepEvaluateCampaigns, []string{ports.CapDecision}, r.evaluateCampaigns},
		{StepDispatchAlerts, []string{ports.CapAlertSend}, r.dispatchAlerts},
	}
}

func resolve[T any](c *container.Container, key container.Key[T]) (T, error) {
	impl, ok := container.Get(c, key)
	if !ok {
		return impl, fmt.Errorf("%s: %w", key.Name(), errNotRegistered)
	}
	return impl, nil
}

func (r *Runner) sendEmails(ctx context.Context, limit int) (int, error) {
	email, err := resolve(r.c, container.EmailKey)
	if err != nil {
		return 0, err
	}
	res := email.DrainQueued(ctx, contracts.DrainQueueRequest{Limit: limit})
	if !res.Success {
		return res.Sent, errors.New(res.Error)
	}
	if res.Failed > 0 || res.Deferred > 0 {
		log.Info("queue drained", "sent", res.Sent, "failed", res.Failed, "dropped", res.Dropped, "deferred", res.Deferred)
	}
	return res.Sent, nil
}

func (r *Runner) pollInbox(ctx context.Context, limit int) (int, error) {
	inbox, err := resolve(r.c, container.InboxKey)
	if err != nil {
		return 0, err
	}
	res := inbox.FetchNew(ctx, contracts.FetchInboxRequest{Limit: limit})
	if !res.Success {
		return res.Stored, errors.New(res.Error)
	}
	return res.Stored, nil
}

// classifyAndProcess applies the lead transition before recording the
// classification, so a failed transition leaves the reply pending and it is
// retried next cycle. ProcessReply is idempotent.
func (r *Runner) classifyAndProcess(ctx context.Context, limit int) (int, error) {
	inbox, err := resolve(r.c, container.InboxKey)
	if err != nil {
		return 0, err
	}
	classifier, err := resolve(r.c, container.ClassificationKey)
	if err != nil {
		return 0, err
	}
	followup, err := resolve(r.c, container.FollowUpKey)
	if err != nil {
		return 0, err
	}

	pending := inbox.PendingClassification(ctx, limit)
	if !pending.Success {
		return 0, errors.New(pending.Error)
	}

	var (
		processed int
		failures  []error
	)
	for _, reply := range pending.Replies {
		if ctx.Err() != nil {
			failures = append(failures, ctx.Err())
			break
		}
		verdict := classifier.Classify(ctx, contracts.ClassifyReplyRequest{Subject: reply.Subject, Body: reply.Body})
		if !verdict.Success {
			failures = append(failures, fmt.Errorf("classify %s: %s", reply.ID, verdict.Error))
			continue
		}
		if reply.LeadID != nil {
			res := followup.ProcessReply(ctx, contracts.ProcessReplyRequest{
				InboundID:      reply.ID,
				LeadID:         *reply.LeadID,
				Classification: verdict.Category,
				ReceivedAt:     reply.ReceivedAt,
			})
			if !res.Success {
				failures = append(failures, fmt.Errorf("process %s: %s", reply.ID, res.Error))
				continue
			}
		}
		rec := inbox.RecordClassification(ctx, contracts.RecordClassificationRequest{
			InboundID:      reply.ID,
			Classification: verdict.Category,
			Confidence:     verdict.Confidence,
			Reason:         verdict.Reason,
		})
		if !rec.Success {
			failures = append(failures, fmt.Errorf("record %s: %s", reply.ID, rec.Error))
			continue
		}
		processed++
	}
	if len(failures) > 0 {
		return processed, fmt.Errorf("%d of %d replies failed: %w", len(failures), len(pending.Replies), errors.Join(failures...))
	}
	return processed, nil
}

func (r *Runner) noReplyTimeouts(ctx context.Context, limit int) (int, error) {
	nurture, err := resolve(r.c, container.NurtureKey)
	if err != nil {
		return 0, err
	}
	res := nurture.AdvanceDue(ctx, limit)
	if !res.Success {
		return res.Enqueued + res.Lost, errors.New(res.Error)
	}
	return res.Enqueued + res.Lost, nil
}

func (r *Runner) runningCampaigns(ctx context.Context, limit int) (ports.Decision, []string, error) {
	decision, err := resolve(r.c, container.DecisionKey)
	if err != nil {
		return nil, nil, err
	}
	list := decision.RunningCampaigns(ctx)
	if !list.Success {
		return nil, nil, errors.New(list.Error)
	}
	ids := list.CampaignIDs
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return decision, ids, nil
}

func (r *Runner) computeMetrics(ctx context.Context, limit int) (int, error) {
	decision, ids, err := r.runningCampaigns(ctx, limit)
	if err != nil {
		return 0, err
	}
	var failures []error
	computed := 0
	for _, id := range ids {
		m := decision.ComputeMetrics(ctx, id)
		if !m.Success {
			failures = append(failures, fmt.Errorf("metrics %s: %s", id, m.Error))
			continue
		}
		computed++
		log.Info("campaign metrics",
			"campaign_id", id,
			"sent", m.SentCount,
			"replies", m.ReplyCount,
			"positive", m.PositiveCount,
			"bounces", m.BounceCount,
			"reply_rate", m.ReplyRate,
			"bounce_rate", m.BounceRate)
	}
	return computed, errors.Join(failures...)
}

func (r *Runner) evaluateCampaigns(ctx context.Context, limit int) (int, error) {
	decision, ids, err := r.runningCampaigns(ctx, limit)
	if err != nil {
		return 0, err
	}
	var failures []error
	evaluated := 0
	for _, id := range ids {
		d := decision.EvaluateCampaign(ctx, id)
		if !d.Success {
			failures = append(failures, fmt.Errorf("evaluate %s: %s", id, d.Error))
			continue
		}
		evaluated++
		log.Info("campaign decision", "campaign_id", id, "action", string(d.Action), "reason", d.Reason)
	}
	return evaluated, errors.Join(failures...)
}

func (r *Runner) dispatchAlerts(ctx context.Context, limit int) (int, error) {
	alert, err := resolve(r.c, container.AlertKey)
	if err != nil {
		return 0, err
	}
	res := alert.DispatchPending(ctx, limit)
	if !res.Success {
		return res.Sent, errors.New(res.Error)
	}
	return res.Sent, nil
}
