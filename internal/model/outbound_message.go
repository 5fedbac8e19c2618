// internal/model/outbound_message.go
package model

import "time"

type MessageStatus string

const (
	MessageStatusQueued    MessageStatus = "queued"
	MessageStatusReceived  MessageStatus = "received"
	MessageStatusSimulated MessageStatus = "simulated"
)

type OutboundMessage struct {
	ID                int           `db:"id" json:"id"`
	ContactID         string        `db:"contact_id" json:"contact_id"`
	ToNumber          string        `db:"to_number" json:"to_number"`
	Body              string        `db:"body" json:"body"`
	ProviderMessageID string        `db:"provider_message_id" json:"provider_message_id"`
	Status            MessageStatus `db:"status" json:"status"`
	CampaignName      string        `db:"campaign_name" json:"campaign_name"`
	LinkToken         string        `db:"link_token" json:"link_token"`
	CreatedAt         time.Time     `db:"created_at" json:"created_at"`
}
