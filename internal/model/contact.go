// internal/model/contact.go
package model

import "time"

type Contact struct {
	ID            string     `db:"id" json:"id"`
	Phone         string     `db:"phone" json:"phone"` // E.164, empty when unknown
	FirstName     string     `db:"first_name" json:"first_name"`
	LastName      string     `db:"last_name" json:"last_name"`
	Email         string     `db:"email" json:"email,omitempty"`
	BrokerageName string     `db:"brokerage_name" json:"brokerage_name,omitempty"`
	Tags          []string   `db:"tags" json:"tags"`
	OptedOut      bool       `db:"opted_out" json:"opted_out"`
	OptedOutAt    *time.Time `db:"opted_out_at" json:"opted_out_at,omitempty"`
	Registered    bool       `db:"registered" json:"registered"`
	UserID        string     `db:"user_id" json:"user_id,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}
