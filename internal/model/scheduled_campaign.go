// internal/model/scheduled_campaign.go
package model

import (
	"encoding/json"
	"time"
)

type ScheduledStatus string

const (
	ScheduledPending ScheduledStatus = "pending"
	ScheduledQueued  ScheduledStatus = "queued"
	ScheduledSending ScheduledStatus = "sending"
	ScheduledSent    ScheduledStatus = "sent"
	ScheduledFailed  ScheduledStatus = "failed"
)

// ScheduledCampaign is a deferred send; CampaignPayload holds the original send request.
type ScheduledCampaign struct {
	ID              string          `db:"id" json:"id"`
	ScheduledAt     time.Time       `db:"scheduled_at" json:"scheduled_at"`
	CampaignPayload json.RawMessage `db:"campaign_payload" json:"campaign_payload"`
	Status          ScheduledStatus `db:"status" json:"status"`
	Result          json.RawMessage `db:"result" json:"result,omitempty"`
	LastError       string          `db:"last_error" json:"last_error,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       *time.Time      `db:"updated_at" json:"updated_at,omitempty"`
}
