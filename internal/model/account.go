// internal/model/account.go
package model

import "time"

type AccountStatus string

const AccountInvited AccountStatus = "invited"

type Account struct {
	ID            string        `db:"id" json:"id"`
	Email         string        `db:"email" json:"email"`
	FirstName     string        `db:"first_name" json:"first_name"`
	LastName      string        `db:"last_name" json:"last_name"`
	Phone         string        `db:"phone" json:"phone,omitempty"`
	BrokerageName string        `db:"brokerage_name" json:"brokerage_name"`
	Status        AccountStatus `db:"status" json:"status"`
	InvitedAt     time.Time     `db:"invited_at" json:"invited_at"`
}
