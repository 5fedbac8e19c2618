package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/unclebandit/leadsms-backend/internal/model"
	"github.com/unclebandit/leadsms-backend/internal/phone"
	"github.com/unclebandit/leadsms-backend/internal/repository"
)

var (
	optOutKeywords = map[string]bool{"STOP": true, "UNSUBSCRIBE": true, "CANCEL": true, "END": true, "QUIT": true}
	optInKeywords  = map[string]bool{"START": true, "UNSTOP": true}
)

// IsOptOut reports whether body is exactly an opt-out keyword, ignoring case and surrounding space.
func IsOptOut(body string) bool {
	return optOutKeywords[strings.ToUpper(strings.TrimSpace(body))]
}

func IsOptIn(body string) bool {
	return optInKeywords[strings.ToUpper(strings.TrimSpace(body))]
}

// InboundRequest is one provider webhook delivery
type InboundRequest struct {
	From       string
	To         string
	Body       string
	MessageSid string
	// Params holds every form field as delivered, stored verbatim.
	Params map[string][]string
	// Diagnostic marks an authenticated simulation.
	Diagnostic bool
}

type InboundOutcome struct {
	ContactID string
	Status    model.MessageStatus
	OptedOut  bool
	OptedIn   bool
	Duplicate bool
	Ignored   bool
}

type InboundRecorder interface {
	Create(ctx context.Context, msg *model.InboundMessage) error
}

// Deduper reports whether a provider message id is seen for the first time.
// Forget releases an id whose processing failed so a redelivery is handled.
type Deduper interface {
	FirstSeen(ctx context.Context, sid string) (bool, error)
	Forget(ctx context.Context, sid string) error
}

type InboundReceiver struct {
	Contacts repository.ContactRepositoryInterface
	Messages InboundRecorder
	Dedupe   Deduper
	Region   string
	Log      zerolog.Logger
}

func (r *InboundReceiver) Receive(ctx context.Context, req InboundRequest) (*InboundOutcome, error) {
	from, err := phone.Normalize(req.From, r.Region)
	if err != nil {
		r.Log.Warn().Err(err).Str("from", req.From).Str("sid", req.MessageSid).Msg("dropping inbound message with unusable sender")
		return &InboundOutcome{Ignored: true}, nil
	}

	claimed := false
	if !req.Diagnostic && r.Dedupe != nil && req.MessageSid != "" {
		first, err := r.Dedupe.FirstSeen(ctx, req.MessageSid)
		if err != nil {
			r.Log.Warn().Err(err).Str("sid", req.MessageSid).Msg("dedupe check failed, processing anyway")
		} else if !first {
			r.Log.Info().Str("sid", req.MessageSid).Msg("duplicate delivery acknowledged")
			return &InboundOutcome{Duplicate: true}, nil
		}
		claimed = first
	}

	out, err := r.process(ctx, req, from)
	if err != nil && claimed {
		if ferr := r.Dedupe.Forget(context.WithoutCancel(ctx), req.MessageSid); ferr != nil {
			r.Log.Warn().Err(ferr).Str("sid", req.MessageSid).Msg("failed to release message id after error")
		}
	}
	return out, err
}

// process applies keyword state before the audit insert so a failed insert never loses an opt-out.
func (r *InboundReceiver) process(ctx context.Context, req InboundRequest, from string) (*InboundOutcome, error) {
	contactID, err := r.Contacts.UpsertByPhone(ctx, from)
	if err != nil {
		return nil, err
	}

	status := model.MessageStatusReceived
	if req.Diagnostic {
		status = model.MessageStatusSimulated
	}
	out := &InboundOutcome{ContactID: contactID, Status: status}
	switch {
	case IsOptOut(req.Body):
		changed, err := r.Contacts.MarkOptedOut(ctx, contactID)
		if err != nil {
			return nil, fmt.Errorf("apply opt-out: %w", err)
		}
		out.OptedOut = true
		r.Log.Info().Str("contact_id", contactID).Bool("changed", changed).Msg("contact opted out")
	case IsOptIn(req.Body):
		changed, err := r.Contacts.ClearOptOut(ctx, contactID)
		if err != nil {
			return nil, fmt.Errorf("apply opt-in: %w", err)
		}
		out.OptedIn = true
		r.Log.Info().Str("contact_id", contactID).Bool("changed", changed).Msg("contact opted back in")
	}

	raw, err := json.Marshal(req.Params)
	if err != nil {
		raw = []byte("{}")
	}
	msg := &model.InboundMessage{
		ContactID:         contactID,
		FromNumber:        from,
		Body:              req.Body,
		ProviderMessageID: req.MessageSid,
		RawPayload:        raw,
		Status:            status,
	}
	if err := r.Messages.Create(context.WithoutCancel(ctx), msg); err != nil {
		r.Log.Error().Err(err).Str("contact_id", contactID).Str("sid", req.MessageSid).Msg("inbound audit write failed")
	}
	return out, nil
}
