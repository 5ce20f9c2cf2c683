package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/aicmo-cam/internal/domain"
)

// OutboundRepo stores one row per send attempt in cam_outbound_emails.
type OutboundRepo struct{ db *sql.DB }

// NewOutboundRepo creates a Postgres-backed outbound email repository.
func NewOutboundRepo(db *sql.DB) *OutboundRepo { return &OutboundRepo{db: db} }

const outboundColumns = `
	o.id, o.campaign_id, o.lead_id, o.to_email, o.subject, o.html_body, o.status,
	o.content_hash, o.sequence_number, COALESCE(o.provider_message_id,''),
	COALESCE(o.error_message,''), o.sent_at, o.created_at, o.updated_at`

func scanOutbound(s rowScanner) (*domain.OutboundEmail, error) {
	var (
		e      domain.OutboundEmail
		sentAt sql.NullTime
	)
	err := s.Scan(
		&e.ID, &e.CampaignID, &e.LeadID, &e.ToEmail, &e.Subject, &e.HTMLBody, &e.Status,
		&e.ContentHash, &e.SequenceNumber, &e.ProviderMessageID,
		&e.ErrorMessage, &sentAt, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.SentAt = timePtr(sentAt)
	return &e, nil
}

// FindByKey looks up the row for an idempotency key.
func (r *OutboundRepo) FindByKey(ctx context.Context, leadID, contentHash string, seq int) (*domain.OutboundEmail, error) {
	e, err := scanOutbound(r.db.QueryRowContext(ctx, `
		SELECT `+outboundColumns+`
		FROM cam_outbound_emails o
		WHERE o.lead_id = $1 AND o.content_hash = $2 AND o.sequence_number = $3
	`, leadID, contentHash, seq))
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find outbound email: %w", err)
	}
	return e, nil
}

// Create inserts a row. A concurrent insert of the same idempotency key
// yields domain.ErrDuplicate.
func (r *OutboundRepo) Create(ctx context.Context, e *domain.OutboundEmail) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO cam_outbound_emails
			(id, campaign_id, lead_id, to_email, subject, html_body, status,
			 content_hash, sequence_number, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		ON CONFLICT (lead_id, content_hash, sequence_number) DO NOTHING
	`, e.ID, e.CampaignID, e.LeadID, e.ToEmail, e.Subject, e.HTMLBody, e.Status,
		e.ContentHash, e.SequenceNumber, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("create outbound email: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrDuplicate
	}
	return nil
}

// MarkSent records a provider acceptance on a QUEUED row.
func (r *OutboundRepo) MarkSent(ctx context.Context, id, providerMessageID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE cam_outbound_emails
		SET status = 'SENT', provider_message_id = $2, sent_at = $3, error_message = NULL, updated_at = $3
		WHERE id = $1 AND status = 'QUEUED'
	`, id, providerMessageID, at)
	if err != nil {
		return fmt.Errorf("mark outbound sent: %w", err)
	}
	return nil
}

// MarkFailed records a provider failure on a QUEUED row.
func (r *OutboundRepo) MarkFailed(ctx context.Context, id, errMsg string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE cam_outbound_emails
		SET status = 'FAILED', error_message = $2, updated_at = $3
		WHERE id = $1 AND status = 'QUEUED'
	`, id, errMsg, at)
	if err != nil {
		return fmt.Errorf("mark outbound failed: %w", err)
	}
	return nil
}

// MarkDropped retires a QUEUED row that can no longer be delivered.
func (r *OutboundRepo) MarkDropped(ctx context.Context, id, reason string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE cam_outbound_emails
		SET status = 'DROPPED', error_message = $2, updated_at = $3
		WHERE id = $1 AND status = 'QUEUED'
	`, id, reason, at)
	if err != nil {
		return fmt.Errorf("mark outbound dropped: %w", err)
	}
	return nil
}

// Requeue moves a FAILED row back to QUEUED so a later identical request
// retries it instead of being blocked by the idempotency key.
func (r *OutboundRepo) Requeue(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE cam_outbound_emails
		SET status = 'QUEUED', error_message = NULL, updated_at = $2
		WHERE id = $1 AND status = 'FAILED'
	`, id, at)
	if err != nil {
		return false, fmt.Errorf("requeue outbound email: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// CountSentSince counts rows that reached the provider at or after since.
// Bounced rows were delivered to the provider and count too.
func (r *OutboundRepo) CountSentSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM cam_outbound_emails
		WHERE status IN ('SENT', 'BOUNCED') AND sent_at >= $1
	`, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count sent emails: %w", err)
	}
	return n, nil
}

// ListQueued returns QUEUED rows of RUNNING campaigns, oldest first.
func (r *OutboundRepo) ListQueued(ctx context.Context, limit int) ([]domain.OutboundEmail, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+outboundColumns+`
		FROM cam_outbound_emails o
		JOIN cam_campaigns c ON c.id = o.campaign_id
		WHERE o.status = 'QUEUED' AND c.status = 'RUNNING'
		ORDER BY o.created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list queued emails: %w", err)
	}
	defer rows.Close()

	var out []domain.OutboundEmail
	for rows.Next() {
		e, err := scanOutbound(rows)
		if err != nil {
			return nil, fmt.Errorf("scan outbound email: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// MarkLatestBounced flips the lead's most recent SENT row to BOUNCED.
func (r *OutboundRepo) MarkLatestBounced(ctx context.Context, leadID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE cam_outbound_emails
		SET status = 'BOUNCED', updated_at = NOW()
		WHERE id = (
			SELECT id FROM cam_outbound_emails
			WHERE lead_id = $1 AND status = 'SENT'
			ORDER BY sent_at DESC
			LIMIT 1
		)
	`, leadID)
	if err != nil {
		return false, fmt.Errorf("mark outbound bounced: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// SequenceState reports the highest delivered sequence number for a lead
// (-1 when none) and whether a QUEUED row is still pending.
func (r *OutboundRepo) SequenceState(ctx context.Context, leadID string) (lastSent int, pending bool, err error) {
	var queued int
	err = r.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(sequence_number) FILTER (WHERE status IN ('SENT', 'BOUNCED')), -1),
		       COUNT(*) FILTER (WHERE status = 'QUEUED')
		FROM cam_outbound_emails
		WHERE lead_id = $1
	`, leadID).Scan(&lastSent, &queued)
	if err != nil {
		return 0, false, fmt.Errorf("lead sequence state: %w", err)
	}
	return lastSent, queued > 0, nil
}

// CampaignDeliveryCounts returns delivered (SENT or BOUNCED) and bounced
// row counts for a campaign.
func (r *OutboundRepo) CampaignDeliveryCounts(ctx context.Context, campaignID string) (sent, bounced int, err error) {
	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FILTER (WHERE status IN ('SENT', 'BOUNCED')),
		       COUNT(*) FILTER (WHERE status = 'BOUNCED')
		FROM cam_outbound_emails
		WHERE campaign_id = $1
	`, campaignID).Scan(&sent, &bounced)
	if err != nil {
		return 0, 0, fmt.Errorf("campaign delivery counts: %w", err)
	}
	return sent, bounced, nil
}
