package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/ignite/aicmo-cam/internal/domain"
)

// LeadRepo implements the lead repositories used by follow-up, nurture and
// the inbox against PostgreSQL.
type LeadRepo struct{ db *sql.DB }

// NewLeadRepo creates a Postgres-backed lead repository.
func NewLeadRepo(db *sql.DB) *LeadRepo { return &LeadRepo{db: db} }

const leadColumns = `
	l.id, l.campaign_id, l.email, COALESCE(l.first_name,''), COALESCE(l.last_name,''),
	COALESCE(l.company,''), COALESCE(l.title,''), l.status, COALESCE(l.status_reason,''),
	COALESCE(l.routing_sequence,''), l.sequence_start_at, l.last_contacted_at,
	l.last_replied_at, l.created_at, l.updated_at`

func scanLead(s rowScanner) (*domain.Lead, error) {
	var (
		l                                domain.Lead
		seqStart, contacted, repliedTime sql.NullTime
	)
	err := s.Scan(
		&l.ID, &l.CampaignID, &l.Email, &l.FirstName, &l.LastName,
		&l.Company, &l.Title, &l.Status, &l.StatusReason,
		&l.RoutingSequence, &seqStart, &contacted,
		&repliedTime, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.SequenceStartAt = timePtr(seqStart)
	l.LastContactedAt = timePtr(contacted)
	l.LastRepliedAt = timePtr(repliedTime)
	return &l, nil
}

// Get returns one lead or domain.ErrNotFound.
func (r *LeadRepo) Get(ctx context.Context, id string) (*domain.Lead, error) {
	l, err := scanLead(r.db.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM cam_leads l WHERE l.id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get lead: %w", err)
	}
	return l, nil
}

// FindByEmail resolves a lead by address, case-insensitively. The most
// recently created lead wins when an address appears in several campaigns.
func (r *LeadRepo) FindByEmail(ctx context.Context, email string) (*domain.Lead, error) {
	l, err := scanLead(r.db.QueryRowContext(ctx, `
		SELECT `+leadColumns+`
		FROM cam_leads l
		WHERE LOWER(l.email) = $1
		ORDER BY l.created_at DESC
		LIMIT 1
	`, strings.ToLower(strings.TrimSpace(email))))
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find lead by email: %w", err)
	}
	return l, nil
}

// ListForNurture returns ROUTED and CONTACTED leads of RUNNING campaigns
// that have never replied, least recently contacted first.
func (r *LeadRepo) ListForNurture(ctx context.Context, limit int) ([]domain.Lead, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+leadColumns+`
		FROM cam_leads l
		JOIN cam_campaigns c ON c.id = l.campaign_id
		WHERE l.status IN ('ROUTED', 'CONTACTED')
		  AND l.last_replied_at IS NULL
		  AND c.status = 'RUNNING'
		ORDER BY l.last_contacted_at ASC NULLS FIRST, l.created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list nurture leads: %w", err)
	}
	defer rows.Close()

	var out []domain.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

// TransitionStatus moves a lead to status `to` only if its current status is
// one of `from`. It reports whether a row changed. repliedAt, when set, is
// stored as last_replied_at.
func (r *LeadRepo) TransitionStatus(ctx context.Context, id string, from []domain.LeadStatus, to domain.LeadStatus, reason string, repliedAt *time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE cam_leads
		SET status = $2, status_reason = $3,
		    last_replied_at = COALESCE($4, last_replied_at),
		    updated_at = NOW()
		WHERE id = $1 AND status = ANY($5)
	`, id, to, reason, nullTime(repliedAt), pq.Array(statusStrings(from)))
	if err != nil {
		return false, fmt.Errorf("transition lead: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// TouchReplied sets last_replied_at without changing status.
func (r *LeadRepo) TouchReplied(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE cam_leads SET last_replied_at = $2, updated_at = NOW() WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("touch lead reply: %w", err)
	}
	return nil
}

// MarkContacted stamps last_contacted_at after a successful send.
func (r *LeadRepo) MarkContacted(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE cam_leads SET last_contacted_at = $2, updated_at = NOW() WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("mark lead contacted: %w", err)
	}
	return nil
}

// StartSequence moves a ROUTED lead to CONTACTED and records when its
// sequence began. It reports whether a row changed.
func (r *LeadRepo) StartSequence(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE cam_leads
		SET status = 'CONTACTED',
		    sequence_start_at = COALESCE(sequence_start_at, $2),
		    updated_at = NOW()
		WHERE id = $1 AND status = 'ROUTED'
	`, id, at)
	if err != nil {
		return false, fmt.Errorf("start lead sequence: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
