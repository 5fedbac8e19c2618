package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	appErrors "github.com/unclebandit/leadsms-backend/internal/errors"
	"github.com/unclebandit/leadsms-backend/internal/logger"
	"github.com/unclebandit/leadsms-backend/internal/model"
	"github.com/unclebandit/leadsms-backend/internal/phone"
	"github.com/unclebandit/leadsms-backend/internal/repository"
)

// Registration is what an invited registrant submits with their token
type Registration struct {
	Token         string `json:"token"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Email         string `json:"email"`
	Phone         string `json:"phone,omitempty"`
	BrokerageName string `json:"brokerage_name"`
}

type RegistrationResult struct {
	UserID    string `json:"userId"`
	ContactID string `json:"contactId"`
}

type Inviter interface {
	Invite(ctx context.Context, account model.Account) error
}

type RegistrationService struct {
	Store   repository.RegistrationStoreInterface
	Inviter Inviter
	Region  string
	Log     zerolog.Logger
}

// Finalize consumes the token and creates the account. Only one call per token succeeds.
func (s *RegistrationService) Finalize(ctx context.Context, reg Registration) (*RegistrationResult, error) {
	if s.Inviter == nil {
		return nil, appErrors.NotConfigured("registration is disabled: email delivery is not configured")
	}
	reg, err := s.normalize(reg)
	if err != nil {
		return nil, err
	}

	account := model.Account{
		ID:            uuid.NewString(),
		Email:         reg.Email,
		FirstName:     reg.FirstName,
		LastName:      reg.LastName,
		Phone:         reg.Phone,
		BrokerageName: reg.BrokerageName,
		Status:        model.AccountInvited,
	}
	var contactID string

	err = s.Store.WithTx(ctx, func(tx repository.RegistrationTx) error {
		tok, err := tx.LockToken(ctx, reg.Token)
		if err != nil {
			return err
		}
		if tok.Used {
			return appErrors.TokenUsed()
		}
		if err := tx.CreateAccount(ctx, &account); err != nil {
			return err
		}

		contact := model.Contact{
			Phone:         reg.Phone,
			FirstName:     reg.FirstName,
			LastName:      reg.LastName,
			Email:         reg.Email,
			BrokerageName: reg.BrokerageName,
			Registered:    true,
			UserID:        account.ID,
		}
		linked := false
		if tok.ContactID != "" {
			if linked, err = tx.LinkContact(ctx, tok.ContactID, &contact); err != nil {
				return err
			}
		}
		if !linked {
			if err := tx.CreateRegisteredContact(ctx, &contact); err != nil {
				return err
			}
		}
		contactID = contact.ID

		if err := tx.MarkTokenUsed(ctx, tok.Token); err != nil {
			logger.Critical(&s.Log).Err(err).
				Str("token", tok.Token).
				Str("user_id", account.ID).
				Msg("registration committed but token was not marked used")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info().Str("user_id", account.ID).Str("contact_id", contactID).Msg("registration finalized")

	if err := s.Inviter.Invite(ctx, account); err != nil {
		s.Log.Error().Err(err).Str("user_id", account.ID).Msg("invitation email failed")
	}
	return &RegistrationResult{UserID: account.ID, ContactID: contactID}, nil
}

func (s *RegistrationService) normalize(reg Registration) (Registration, error) {
	reg.Token = strings.TrimSpace(reg.Token)
	reg.FirstName = strings.TrimSpace(reg.FirstName)
	reg.LastName = strings.TrimSpace(reg.LastName)
	reg.Email = strings.ToLower(strings.TrimSpace(reg.Email))
	reg.BrokerageName = strings.TrimSpace(reg.BrokerageName)
	reg.Phone = strings.TrimSpace(reg.Phone)

	var missing []string
	for _, f := range []struct{ name, value string }{
		{"token", reg.Token},
		{"email", reg.Email},
		{"first_name", reg.FirstName},
		{"last_name", reg.LastName},
		{"brokerage_name", reg.BrokerageName},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return reg, appErrors.MissingFields(missing...)
	}

	if reg.Phone != "" {
		normalized, err := phone.Normalize(reg.Phone, s.Region)
		if err != nil {
			e := appErrors.BadRequest("phone is not a valid number")
			e.Fields = []string{"phone"}
			return reg, e
		}
		reg.Phone = normalized
	}
	return reg, nil
}
