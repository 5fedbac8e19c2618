// Package mailer sends account invitation emails over SMTP.
package mailer

import (
	"context"
	"fmt"
	"net/url"

	"github.com/wneessen/go-mail"

	"github.com/unclebandit/leadsms-backend/internal/config"
	appErrors "github.com/unclebandit/leadsms-backend/internal/errors"
	"github.com/unclebandit/leadsms-backend/internal/model"
)

type deliverer interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTPInviter emails newly registered accounts a link to finish signing in.
type SMTPInviter struct {
	client   deliverer
	from     string
	loginURL string
}

func NewSMTPInviter(cfg config.SMTPConfig, publicBaseURL string) (*SMTPInviter, error) {
	if !cfg.Enabled() {
		return nil, appErrors.NotConfigured("smtp is not configured")
	}
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTPInviter{client: client, from: cfg.From, loginURL: publicBaseURL + "/login"}, nil
}

func (s *SMTPInviter) Invite(ctx context.Context, account model.Account) error {
	msg, err := buildInvite(s.from, s.loginURL, account)
	if err != nil {
		return err
	}
	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return appErrors.Upstream("send invitation email", err)
	}
	return nil
}

func buildInvite(from, loginURL string, account model.Account) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(account.Email); err != nil {
		return nil, appErrors.BadRequest(fmt.Sprintf("invalid email address %q", account.Email))
	}
	msg.Subject("You're invited: finish setting up your account")
	msg.SetBodyString(mail.TypeTextPlain, fmt.Sprintf(
		"Hi %s,\n\nYour account for %s is ready. Finish setting it up here:\n%s\n",
		account.FirstName, account.BrokerageName, inviteLink(loginURL, account.Email),
	))
	return msg, nil
}

func inviteLink(loginURL, email string) string {
	return loginURL + "?" + url.Values{"email": {email}}.Encode()
}
