package sms

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/unclebandit/leadsms-backend/internal/config"
	appErrors "github.com/unclebandit/leadsms-backend/internal/errors"
)

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioSender sends through the Twilio Messages API.
type TwilioSender struct {
	api                 messageCreator
	from                string
	messagingServiceSID string
	log                 zerolog.Logger
}

// NewTwilioSender fails with NotConfigured when credentials or a sender identity are missing.
func NewTwilioSender(cfg config.TwilioConfig, log zerolog.Logger) (*TwilioSender, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, appErrors.NotConfigured("twilio credentials are not configured")
	}
	if cfg.FromNumber == "" && cfg.MessagingServiceSID == "" {
		return nil, appErrors.NotConfigured("twilio sender number or messaging service is not configured")
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &TwilioSender{
		api:                 client.Api,
		from:                cfg.FromNumber,
		messagingServiceSID: cfg.MessagingServiceSID,
		log:                 log,
	}, nil
}

func (s *TwilioSender) Send(ctx context.Context, to, body string) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetBody(body)
	if s.messagingServiceSID != "" {
		params.SetMessagingServiceSid(s.messagingServiceSID)
	} else {
		params.SetFrom(s.from)
	}

	resp, err := s.api.CreateMessage(params)
	if err != nil {
		var restErr *twilioclient.TwilioRestError
		if errors.As(err, &restErr) {
			s.log.Warn().Int("code", restErr.Code).Int("status", restErr.Status).Str("to", to).Msg("twilio rejected message")
			return Receipt{}, appErrors.Upstream(fmt.Sprintf("twilio rejected message (code %d)", restErr.Code), err)
		}
		return Receipt{}, appErrors.Upstream("twilio request failed", err)
	}
	if resp == nil || resp.Sid == nil {
		return Receipt{}, appErrors.Upstream("twilio response has no message sid", nil)
	}

	receipt := Receipt{SID: *resp.Sid, Status: "queued"}
	if resp.Status != nil {
		receipt.Status = *resp.Status
	}
	return receipt, nil
}
