package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignite/aicmo-cam/internal/domain"
)

// CampaignRepo implements campaign reads and the pause transition.
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

const campaignColumns = `id, name, status, COALESCE(paused_reason,''), created_at, updated_at`

func scanCampaign(s rowScanner) (*domain.Campaign, error) {
	var c domain.Campaign
	if err := s.Scan(&c.ID, &c.Name, &c.Status, &c.PausedReason, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// Get returns one campaign or domain.ErrNotFound.
func (r *CampaignRepo) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	c, err := scanCampaign(r.db.QueryRowContext(ctx,
		`SELECT `+campaignColumns+` FROM cam_campaigns WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

// ListByStatus returns campaigns in the given status, oldest first.
func (r *CampaignRepo) ListByStatus(ctx context.Context, status domain.CampaignStatus) ([]domain.Campaign, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+campaignColumns+` FROM cam_campaigns WHERE status = $1 ORDER BY created_at ASC`, status)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Pause flips a RUNNING campaign to PAUSED. It reports whether a row changed.
func (r *CampaignRepo) Pause(ctx context.Context, id, reason string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE cam_campaigns
		SET status = 'PAUSED', paused_reason = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'RUNNING'
	`, id, reason)
	if err != nil {
		return false, fmt.Errorf("pause campaign: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// EnsureByName returns the campaign called name, creating it RUNNING if absent.
func (r *CampaignRepo) EnsureByName(ctx context.Context, name string) (*domain.Campaign, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cam_campaigns (id, name, status, created_at, updated_at)
		VALUES ($1, $2, 'RUNNING', NOW(), NOW())
		ON CONFLICT (name) DO NOTHING
	`, uuid.New().String(), name)
	if err != nil {
		return nil, fmt.Errorf("ensure campaign: %w", err)
	}
	c, err := scanCampaign(r.db.QueryRowContext(ctx,
		`SELECT `+campaignColumns+` FROM cam_campaigns WHERE name = $1`, name))
	if err != nil {
		return nil, fmt.Errorf("load campaign %q: %w", name, err)
	}
	return c, nil
}
