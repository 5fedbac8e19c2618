// internal/model/registration_token.go
package model

import "time"

type RegistrationToken struct {
	Token     string     `db:"token" json:"token"`
	ContactID string     `db:"contact_id" json:"contact_id,omitempty"`
	Campaign  string     `db:"campaign" json:"campaign"`
	Used      bool       `db:"used" json:"used"`
	UsedAt    *time.Time `db:"used_at" json:"used_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}
