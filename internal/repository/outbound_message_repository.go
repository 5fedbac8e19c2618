package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/unclebandit/leadsms-backend/internal/model"
)

type OutboundMessageRepository struct {
	DB *sql.DB
}

// Create appends an audit row for a message the provider accepted
func (r *OutboundMessageRepository) Create(ctx context.Context, msg *model.OutboundMessage) error {
	query := `
        INSERT INTO outbound_messages
        (contact_id, to_number, body, provider_message_id, status, campaign_name, link_token)
        VALUES (NULLIF($1, '')::uuid, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at
    `
	return r.DB.QueryRowContext(ctx, query,
		msg.ContactID,
		msg.ToNumber,
		msg.Body,
		msg.ProviderMessageID,
		msg.Status,
		msg.CampaignName,
		msg.LinkToken,
	).Scan(&msg.ID, &msg.CreatedAt)
}

// StatusCounts groups a campaign's outbound messages by provider status
func (r *OutboundMessageRepository) StatusCounts(ctx context.Context, campaign string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `
        SELECT status, COUNT(*)
        FROM outbound_messages
        WHERE campaign_name = $1
        GROUP BY status`, campaign)
	if err != nil {
		return nil, fmt.Errorf("outbound status counts: %w", err)
	}
	defer rows.Close()

	stats := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}
