package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/aicmo-cam/internal/domain"
)

// InboundRepo stores received replies in cam_inbound_emails.
type InboundRepo struct{ db *sql.DB }

// NewInboundRepo creates a Postgres-backed inbound email repository.
func NewInboundRepo(db *sql.DB) *InboundRepo { return &InboundRepo{db: db} }

const inboundColumns = `
	id, message_id, lead_id, campaign_id, from_email, COALESCE(subject,''),
	COALESCE(body,''), COALESCE(in_reply_to,''), received_at, classification,
	COALESCE(classification_confidence,0), COALESCE(classification_reason,''),
	classified_at, alert_sent, created_at`

func scanInbound(s rowScanner) (*domain.InboundEmail, error) {
	var (
		e                  domain.InboundEmail
		leadID, campaignID sql.NullString
		class              sql.NullString
		classifiedAt       sql.NullTime
	)
	err := s.Scan(
		&e.ID, &e.MessageID, &leadID, &campaignID, &e.FromEmail, &e.Subject,
		&e.Body, &e.InReplyTo, &e.ReceivedAt, &class,
		&e.ClassificationConfidence, &e.ClassificationReason,
		&classifiedAt, &e.AlertSent, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.LeadID = strPtr(leadID)
	e.CampaignID = strPtr(campaignID)
	if class.Valid {
		c := domain.Classification(class.String)
		e.Classification = &c
	}
	e.ClassifiedAt = timePtr(classifiedAt)
	return &e, nil
}

func (r *InboundRepo) list(ctx context.Context, op, q string, args ...interface{}) ([]domain.InboundEmail, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []domain.InboundEmail
	for rows.Next() {
		e, err := scanInbound(rows)
		if err != nil {
			return nil, fmt.Errorf("scan inbound email: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// Create inserts a reply. It returns domain.ErrDuplicate when the
// Message-ID is already stored.
func (r *InboundRepo) Create(ctx context.Context, e *domain.InboundEmail) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO cam_inbound_emails
			(id, message_id, lead_id, campaign_id, from_email, subject, body,
			 in_reply_to, received_at, alert_sent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE, NOW())
		ON CONFLICT (message_id) DO NOTHING
	`, e.ID, e.MessageID, nullString(e.LeadID), nullString(e.CampaignID), e.FromEmail,
		e.Subject, e.Body, e.InReplyTo, e.ReceivedAt)
	if err != nil {
		return fmt.Errorf("create inbound email: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrDuplicate
	}
	return nil
}

// LatestReceivedAt returns the newest stored received_at, or nil when empty.
func (r *InboundRepo) LatestReceivedAt(ctx context.Context) (*time.Time, error) {
	var t sql.NullTime
	if err := r.db.QueryRowContext(ctx, `SELECT MAX(received_at) FROM cam_inbound_emails`).Scan(&t); err != nil {
		return nil, fmt.Errorf("latest inbound: %w", err)
	}
	return timePtr(t), nil
}

// ListUnclassified returns replies without a classification, oldest first.
func (r *InboundRepo) ListUnclassified(ctx context.Context, limit int) ([]domain.InboundEmail, error) {
	return r.list(ctx, "list unclassified replies", `
		SELECT `+inboundColumns+`
		FROM cam_inbound_emails
		WHERE classification IS NULL
		ORDER BY received_at ASC
		LIMIT $1
	`, limit)
}

// RecordClassification stores a verdict on an unclassified reply.
func (r *InboundRepo) RecordClassification(ctx context.Context, id string, c domain.Classification, confidence float64, reason string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE cam_inbound_emails
		SET classification = $2, classification_confidence = $3,
		    classification_reason = $4, classified_at = $5
		WHERE id = $1 AND classification IS NULL
	`, id, c, confidence, reason, at)
	if err != nil {
		return fmt.Errorf("record classification: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListUnalerted returns replies of the given class with a resolved lead that
// have not been alerted yet.
func (r *InboundRepo) ListUnalerted(ctx context.Context, c domain.Classification, limit int) ([]domain.InboundEmail, error) {
	return r.list(ctx, "list unalerted replies", `
		SELECT `+inboundColumns+`
		FROM cam_inbound_emails
		WHERE classification = $1 AND alert_sent = FALSE AND lead_id IS NOT NULL
		ORDER BY received_at ASC
		LIMIT $2
	`, c, limit)
}

// MarkAlerted sets alert_sent. The flag only moves from false to true.
func (r *InboundRepo) MarkAlerted(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE cam_inbound_emails SET alert_sent = TRUE WHERE id = $1 AND alert_sent = FALSE`, id)
	if err != nil {
		return fmt.Errorf("mark reply alerted: %w", err)
	}
	return nil
}

// ClassificationCounts groups a campaign's classified replies by category.
func (r *InboundRepo) ClassificationCounts(ctx context.Context, campaignID string) (map[domain.Classification]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT classification, COUNT(*)
		FROM cam_inbound_emails
		WHERE campaign_id = $1 AND classification IS NOT NULL
		GROUP BY classification
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("count classifications: %w", err)
	}
	defer rows.Close()

	out := map[domain.Classification]int{}
	for rows.Next() {
		var (
			c string
			n int
		)
		if err := rows.Scan(&c, &n); err != nil {
			return nil, fmt.Errorf("scan classification count: %w", err)
		}
		out[domain.Classification(c)] = n
	}
	return out, rows.Err()
}
