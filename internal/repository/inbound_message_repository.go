package repository

import (
	"context"
	"database/sql"

	"github.com/unclebandit/leadsms-backend/internal/model"
)

type InboundMessageRepository struct {
	DB *sql.DB
}

func (r *InboundMessageRepository) Create(ctx context.Context, msg *model.InboundMessage) error {
	payload := msg.RawPayload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	query := `
        INSERT INTO inbound_messages (contact_id, from_number, body, provider_message_id, raw_payload, status)
        VALUES (NULLIF($1, '')::uuid, $2, $3, $4, $5, $6)
        RETURNING id, created_at
    `
	return r.DB.QueryRowContext(ctx, query,
		msg.ContactID, msg.FromNumber, msg.Body, msg.ProviderMessageID, []byte(payload), msg.Status,
	).Scan(&msg.ID, &msg.CreatedAt)
}
