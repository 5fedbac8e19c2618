package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	appErrors "github.com/unclebandit/leadsms-backend/internal/errors"
	"github.com/unclebandit/leadsms-backend/internal/model"
	"github.com/unclebandit/leadsms-backend/internal/repository"
	"github.com/unclebandit/leadsms-backend/internal/sms"
)

// SendRequest is a batch send, immediate unless ScheduledAt is set
type SendRequest struct {
	ContactIDs  []string   `json:"contactIds,omitempty"`
	Tag         string     `json:"tag,omitempty"`
	Campaign    string     `json:"campaign"`
	Message     string     `json:"message"`
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
}

// SendOutcome and SendFailure identify the recipient by phone in Contact.
type SendOutcome struct {
	Contact   string `json:"contact"`
	ContactID string `json:"contactId"`
	SID       string `json:"sid"`
}

type SendFailure struct {
	Contact   string `json:"contact"`
	ContactID string `json:"contactId"`
	Error     string `json:"error"`
}

// SendResult reports every recipient as exactly one outcome or one failure
type SendResult struct {
	Sent                int           `json:"sent"`
	Results             []SendOutcome `json:"results"`
	Failures            []SendFailure `json:"failures"`
	ScheduledCampaignID string        `json:"scheduledCampaignId,omitempty"`
}

type TokenMinter interface {
	Mint(ctx context.Context, contactID, campaign string) (string, error)
}

type OutboundRecorder interface {
	Create(ctx context.Context, msg *model.OutboundMessage) error
}

type Dispatcher struct {
	Contacts  repository.ContactRepositoryInterface
	Tokens    TokenMinter
	Sender    sms.Sender
	Outbound  OutboundRecorder
	Scheduled repository.ScheduledCampaignRepositoryInterface
	// LinkBase is the registration page URL the token query is appended to.
	LinkBase    string
	Concurrency int
	Log         zerolog.Logger
}

func (d *Dispatcher) Dispatch(ctx context.Context, req SendRequest) (*SendResult, error) {
	if err := validateSendRequest(req); err != nil {
		return nil, err
	}
	if req.ScheduledAt != nil {
		return d.schedule(ctx, req)
	}

	contacts, err := d.audience(ctx, req)
	if err != nil {
		return nil, err
	}
	result := &SendResult{Results: []SendOutcome{}, Failures: []SendFailure{}}
	if len(contacts) == 0 {
		d.Log.Info().Str("campaign", req.Campaign).Str("tag", req.Tag).Msg("no sendable contacts matched")
		return result, nil
	}

	outcomes := make([]SendOutcome, len(contacts))
	errs := make([]error, len(contacts))

	workers := d.Concurrency
	if workers < 1 {
		workers = 1
	}
	// each goroutine keeps its error to itself so one failure never stops the batch
	var g errgroup.Group
	g.SetLimit(workers)
	for i, c := range contacts {
		g.Go(func() error {
			sid, err := d.sendOne(ctx, c, req)
			outcomes[i] = SendOutcome{Contact: c.Phone, ContactID: c.ID, SID: sid}
			errs[i] = err
			return nil
		})
	}
	_ = g.Wait()

	for i, err := range errs {
		if err != nil {
			c := contacts[i]
			d.Log.Warn().Err(err).Str("contact_id", c.ID).Str("campaign", req.Campaign).Msg("send failed")
			result.Failures = append(result.Failures, SendFailure{Contact: c.Phone, ContactID: c.ID, Error: err.Error()})
			continue
		}
		result.Results = append(result.Results, outcomes[i])
	}
	result.Sent = len(result.Results)

	d.Log.Info().
		Str("campaign", req.Campaign).
		Int("sent", result.Sent).
		Int("failed", len(result.Failures)).
		Msg("batch dispatched")
	return result, nil
}

func validateSendRequest(req SendRequest) error {
	var missing []string
	if len(req.ContactIDs) == 0 && strings.TrimSpace(req.Tag) == "" {
		missing = append(missing, "contactIds or tag")
	}
	if strings.TrimSpace(req.Campaign) == "" {
		missing = append(missing, "campaign")
	}
	if strings.TrimSpace(req.Message) == "" {
		missing = append(missing, "message")
	}
	if len(missing) > 0 {
		return appErrors.MissingFields(missing...)
	}
	return nil
}

// audience resolves recipients; explicit ids take precedence over the tag.
func (d *Dispatcher) audience(ctx context.Context, req SendRequest) ([]model.Contact, error) {
	if len(req.ContactIDs) > 0 {
		ids := make([]string, 0, len(req.ContactIDs))
		for _, id := range req.ContactIDs {
			if _, err := uuid.Parse(id); err != nil {
				d.Log.Debug().Str("contact_id", id).Msg("ignoring malformed contact id")
				continue
			}
			ids = append(ids, id)
		}
		if len(ids) == 0 {
			return nil, nil
		}
		return d.Contacts.ListSendableByIDs(ctx, ids)
	}
	return d.Contacts.ListSendableByTag(ctx, strings.TrimSpace(req.Tag))
}

func (d *Dispatcher) sendOne(ctx context.Context, c model.Contact, req SendRequest) (string, error) {
	tok, err := d.Tokens.Mint(ctx, c.ID, req.Campaign)
	if err != nil {
		return "", fmt.Errorf("mint token: %w", err)
	}
	link := d.LinkBase + "?token=" + tok
	body := RenderMessage(req.Message, c.FirstName, link)

	receipt, err := d.Sender.Send(ctx, c.Phone, body)
	if err != nil {
		return "", err
	}

	msg := &model.OutboundMessage{
		ContactID:         c.ID,
		ToNumber:          c.Phone,
		Body:              body,
		ProviderMessageID: receipt.SID,
		Status:            model.MessageStatus(receipt.Status),
		CampaignName:      req.Campaign,
		LinkToken:         tok,
	}
	// the message is out, so the audit row must not depend on the caller staying connected
	if err := d.Outbound.Create(context.WithoutCancel(ctx), msg); err != nil {
		// the provider already accepted the message, so it still counts as sent
		d.Log.Error().Err(err).Str("contact_id", c.ID).Str("sid", receipt.SID).Msg("outbound audit write failed")
	}
	return receipt.SID, nil
}

func (d *Dispatcher) schedule(ctx context.Context, req SendRequest) (*SendResult, error) {
	at := req.ScheduledAt.UTC()
	req.ScheduledAt = nil
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode campaign payload: %w", err)
	}
	sc := &model.ScheduledCampaign{ScheduledAt: at, CampaignPayload: payload, Status: model.ScheduledPending}
	if err := d.Scheduled.Create(ctx, sc); err != nil {
		return nil, fmt.Errorf("persist scheduled campaign: %w", err)
	}
	d.Log.Info().Str("scheduled_campaign_id", sc.ID).Time("scheduled_at", at).Str("campaign", req.Campaign).Msg("campaign scheduled")
	return &SendResult{ScheduledCampaignID: sc.ID}, nil
}
