package repository

import (
	"context"
	"database/sql"
	"fmt"
)

type TokenRepository struct {
	DB *sql.DB
}

// Create stores a new unused token. A duplicate token surfaces as a unique violation.
func (r *TokenRepository) Create(ctx context.Context, token, contactID, campaign string) error {
	_, err := r.DB.ExecContext(ctx, `
        INSERT INTO registration_tokens (token, contact_id, campaign)
        VALUES ($1, NULLIF($2, '')::uuid, $3)`, token, contactID, campaign)
	return err
}

// Stats counts tokens minted and consumed for a campaign.
func (r *TokenRepository) Stats(ctx context.Context, campaign string) (issued, used int, err error) {
	err = r.DB.QueryRowContext(ctx, `
        SELECT COUNT(*), COUNT(*) FILTER (WHERE used)
        FROM registration_tokens WHERE campaign = $1`, campaign).Scan(&issued, &used)
	if err != nil {
		return 0, 0, fmt.Errorf("token stats: %w", err)
	}
	return issued, used, nil
}
