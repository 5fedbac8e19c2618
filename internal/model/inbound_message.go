// internal/model/inbound_message.go
package model

import (
	"encoding/json"
	"time"
)

type InboundMessage struct {
	ID                int             `db:"id" json:"id"`
	ContactID         string          `db:"contact_id" json:"contact_id,omitempty"`
	FromNumber        string          `db:"from_number" json:"from_number"`
	Body              string          `db:"body" json:"body"`
	ProviderMessageID string          `db:"provider_message_id" json:"provider_message_id,omitempty"`
	RawPayload        json.RawMessage `db:"raw_payload" json:"raw_payload"`
	Status            MessageStatus   `db:"status" json:"status"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
}
