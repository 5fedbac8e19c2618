package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	appErrors "github.com/unclebandit/leadsms-backend/internal/errors"
	"github.com/unclebandit/leadsms-backend/internal/model"
)

// ScheduledCampaignRepositoryInterface is what the dispatcher, scheduler and worker use
type ScheduledCampaignRepositoryInterface interface {
	Create(ctx context.Context, c *model.ScheduledCampaign) error
	GetByID(ctx context.Context, id string) (*model.ScheduledCampaign, error)
	ClaimDue(ctx context.Context, now, staleBefore time.Time, limit int) ([]string, error)
	Requeue(ctx context.Context, ids []string) error
	StartSending(ctx context.Context, id string) (bool, error)
	MarkSent(ctx context.Context, id string, result json.RawMessage) error
	MarkFailed(ctx context.Context, id string, lastError string) error
}

type ScheduledCampaignRepository struct {
	DB *sql.DB
}

func (r *ScheduledCampaignRepository) Create(ctx context.Context, c *model.ScheduledCampaign) error {
	if c.Status == "" {
		c.Status = model.ScheduledPending
	}
	query := `
        INSERT INTO scheduled_campaigns (scheduled_at, campaign_payload, status)
        VALUES ($1, $2, $3)
        RETURNING id, created_at
    `
	return r.DB.QueryRowContext(ctx, query, c.ScheduledAt, []byte(c.CampaignPayload), c.Status).Scan(&c.ID, &c.CreatedAt)
}

func (r *ScheduledCampaignRepository) GetByID(ctx context.Context, id string) (*model.ScheduledCampaign, error) {
	query := `
        SELECT id, scheduled_at, campaign_payload, status, result, last_error, created_at, updated_at
        FROM scheduled_campaigns WHERE id = $1
    `
	var c model.ScheduledCampaign
	var payload, result []byte
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.ScheduledAt, &payload, &c.Status, &result, &c.LastError, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFound("scheduled campaign " + id + " not found")
		}
		return nil, err
	}
	c.CampaignPayload = payload
	c.Result = result
	return &c, nil
}

// ClaimDue moves up to limit due pending rows to queued and returns their ids.
// Rows left in queued since before staleBefore are claimed again, which recovers
// messages lost with an in-process queue. SKIP LOCKED lets several workers sweep
// concurrently without claiming the same row.
func (r *ScheduledCampaignRepository) ClaimDue(ctx context.Context, now, staleBefore time.Time, limit int) ([]string, error) {
	query := `
        UPDATE scheduled_campaigns SET status = 'queued', updated_at = NOW()
        WHERE id IN (
            SELECT id FROM scheduled_campaigns
            WHERE (status = 'pending' AND scheduled_at <= $1)
               OR (status = 'queued' AND updated_at < $2)
            ORDER BY scheduled_at
            LIMIT $3
            FOR UPDATE SKIP LOCKED
        )
        RETURNING id
    `
	rows, err := r.DB.QueryContext(ctx, query, now, staleBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("claim due campaigns: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Requeue returns claimed rows to pending, used when they could not be published.
func (r *ScheduledCampaignRepository) Requeue(ctx context.Context, ids []string) error {
	_, err := r.DB.ExecContext(ctx, `
        UPDATE scheduled_campaigns SET status = 'pending', updated_at = NOW()
        WHERE id = ANY($1::uuid[]) AND status = 'queued'`, pq.Array(ids))
	return err
}

// StartSending moves a queued row to sending. It reports false when another
// delivery of the same id got there first.
func (r *ScheduledCampaignRepository) StartSending(ctx context.Context, id string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
        UPDATE scheduled_campaigns SET status = 'sending', updated_at = NOW()
        WHERE id = $1 AND status = 'queued'`, id)
	if err != nil {
		return false, fmt.Errorf("start scheduled campaign %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *ScheduledCampaignRepository) MarkSent(ctx context.Context, id string, result json.RawMessage) error {
	_, err := r.DB.ExecContext(ctx, `
        UPDATE scheduled_campaigns SET status = 'sent', result = $1, last_error = '', updated_at = NOW()
        WHERE id = $2`, []byte(result), id)
	return err
}

func (r *ScheduledCampaignRepository) MarkFailed(ctx context.Context, id string, lastError string) error {
	_, err := r.DB.ExecContext(ctx, `
        UPDATE scheduled_campaigns SET status = 'failed', last_error = $1, updated_at = NOW()
        WHERE id = $2`, lastError, id)
	return err
}
