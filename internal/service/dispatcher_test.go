package service_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/leadsms-backend/internal/errors"
	"github.com/unclebandit/leadsms-backend/internal/model"
	"github.com/unclebandit/leadsms-backend/internal/service"
	"github.com/unclebandit/leadsms-backend/internal/sms"
	"github.com/unclebandit/leadsms-backend/internal/token"
)

const linkBase = "https://app.example.com/register"

func newDispatcher(db *memDB, sender *fakeSender) *service.Dispatcher {
	return &service.Dispatcher{
		Contacts:    contactRepo{db},
		Tokens:      token.NewIssuer(tokenStore{db}, zerolog.Nop()),
		Sender:      sender,
		Outbound:    outboundRepo{db},
		Scheduled:   scheduledRepo{db},
		LinkBase:    linkBase,
		Concurrency: 3,
		Log:         zerolog.Nop(),
	}
}

func TestDispatchRequiresAudience(t *testing.T) {
	db := newMemDB()
	sender := &fakeSender{}
	d := newDispatcher(db, sender)

	_, err := d.Dispatch(context.Background(), service.SendRequest{Campaign: "fall", Message: "Hi"})
	require.Error(t, err)
	appErr, ok := appErrors.As(err)
	require.True(t, ok)
	assert.Equal(t, appErrors.KindBadRequest, appErr.Kind)
	assert.Equal(t, []string{"contactIds or tag"}, appErr.Fields)

	_, err = d.Dispatch(context.Background(), service.SendRequest{Tag: "agent"})
	appErr, _ = appErrors.As(err)
	assert.Equal(t, []string{"campaign", "message"}, appErr.Fields)
	assert.Zero(t, sender.callCount())
}

func TestDispatchZeroMatches(t *testing.T) {
	db := newMemDB()
	db.addContact(model.Contact{Phone: "+14155550100", Tags: []string{"agent"}, OptedOut: true})
	db.addContact(model.Contact{Tags: []string{"agent"}})
	db.addContact(model.Contact{Phone: "+14155550101", Tags: []string{"lender"}})
	sender := &fakeSender{}

	res, err := newDispatcher(db, sender).Dispatch(context.Background(), service.SendRequest{
		Tag: "agent", Campaign: "fall", Message: "Hi {first}",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Sent)
	assert.Empty(t, res.Results)
	assert.Zero(t, db.tokenCount())
	assert.Zero(t, sender.callCount())
}

func TestDispatchPartialFailureIsolation(t *testing.T) {
	db := newMemDB()
	phones := []string{"+14155550100", "+14155550101", "+14155550102", "+14155550103", "+14155550104"}
	for _, p := range phones {
		db.addContact(model.Contact{Phone: p, FirstName: "Pat", Tags: []string{"agent"}})
	}
	sender := &fakeSender{failFor: map[string]bool{phones[1]: true, phones[3]: true}}

	res, err := newDispatcher(db, sender).Dispatch(context.Background(), service.SendRequest{
		Tag: "agent", Campaign: "fall", Message: "Hi {first}, join {link}",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Sent)
	assert.Len(t, res.Results, 3)
	assert.Len(t, res.Failures, 2)
	for _, f := range res.Failures {
		assert.Contains(t, f.Error, "twilio rejected message")
		assert.Contains(t, []string{phones[1], phones[3]}, f.Contact)
		assert.NotEmpty(t, f.ContactID)
	}
	for _, r := range res.Results {
		assert.NotContains(t, []string{phones[1], phones[3]}, r.Contact)
	}
	assert.Len(t, db.outbound, 3)
	assert.Equal(t, 5, db.tokenCount())
}

func TestDispatchIDsWinOverTag(t *testing.T) {
	db := newMemDB()
	picked := db.addContact(model.Contact{Phone: "+14155550100", FirstName: "Ann"})
	db.addContact(model.Contact{Phone: "+14155550101", Tags: []string{"agent"}})
	sender := &fakeSender{}

	res, err := newDispatcher(db, sender).Dispatch(context.Background(), service.SendRequest{
		ContactIDs: []string{picked, "not-a-uuid"}, Tag: "agent", Campaign: "fall", Message: "Hi {first}",
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.Sent)
	assert.Equal(t, "+14155550100", res.Results[0].Contact)
	assert.Equal(t, picked, res.Results[0].ContactID)
	assert.Equal(t, "+14155550100", sender.sent[0].To)
}

func TestDispatchRendersLinkAndRecordsAudit(t *testing.T) {
	db := newMemDB()
	id := db.addContact(model.Contact{Phone: "+14155550100", Tags: []string{"agent"}})
	sender := &fakeSender{}

	res, err := newDispatcher(db, sender).Dispatch(context.Background(), service.SendRequest{
		Tag: "agent", Campaign: "fall", Message: "Hi {first}, join {link} {unknown}",
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.Sent)

	require.Len(t, db.outbound, 1)
	msg := db.outbound[0]
	assert.Equal(t, id, msg.ContactID)
	assert.Equal(t, "fall", msg.CampaignName)
	assert.Equal(t, res.Results[0].SID, msg.ProviderMessageID)
	assert.Len(t, msg.LinkToken, token.Length)
	assert.Equal(t, "Hi there, join "+linkBase+"?token="+msg.LinkToken+" {unknown}", sender.sent[0].Body)
	assert.Equal(t, sender.sent[0].Body, msg.Body)
}

func TestDispatchAuditFailureStillReportsSent(t *testing.T) {
	db := newMemDB()
	db.addContact(model.Contact{Phone: "+14155550100", Tags: []string{"agent"}})
	db.failOutbound = true
	sender := &fakeSender{}

	res, err := newDispatcher(db, sender).Dispatch(context.Background(), service.SendRequest{
		Tag: "agent", Campaign: "fall", Message: "Hi",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	assert.Empty(t, res.Failures)
}

func TestDispatchScheduled(t *testing.T) {
	db := newMemDB()
	db.addContact(model.Contact{Phone: "+14155550100", Tags: []string{"agent"}})
	sender := &fakeSender{}
	at := time.Now().Add(time.Hour)

	res, err := newDispatcher(db, sender).Dispatch(context.Background(), service.SendRequest{
		Tag: "agent", Campaign: "fall", Message: "Hi", ScheduledAt: &at,
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.ScheduledCampaignID)
	assert.Zero(t, sender.callCount())
	assert.Zero(t, db.tokenCount())

	sc := db.scheduled[res.ScheduledCampaignID]
	assert.Equal(t, model.ScheduledPending, sc.Status)
	assert.True(t, sc.ScheduledAt.Equal(at))

	var stored service.SendRequest
	require.NoError(t, json.Unmarshal(sc.CampaignPayload, &stored))
	assert.Nil(t, stored.ScheduledAt)
	assert.Equal(t, "agent", stored.Tag)
	assert.False(t, strings.Contains(string(sc.CampaignPayload), "scheduledAt"))
}

// hangupSender simulates the caller going away right after the provider accepts the message.
type hangupSender struct {
	fakeSender
	cancel context.CancelFunc
}

func (s *hangupSender) Send(ctx context.Context, to, body string) (sms.Receipt, error) {
	receipt, err := s.fakeSender.Send(ctx, to, body)
	s.cancel()
	return receipt, err
}

func TestDispatchAuditSurvivesCallerCancel(t *testing.T) {
	db := newMemDB()
	db.addContact(model.Contact{Phone: "+14155550100", Tags: []string{"agent"}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d := newDispatcher(db, nil)
	d.Sender = &hangupSender{cancel: cancel}

	res, err := d.Dispatch(ctx, service.SendRequest{Tag: "agent", Campaign: "fall", Message: "Hi"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	require.Len(t, db.outbound, 1)
	assert.Equal(t, res.Results[0].SID, db.outbound[0].ProviderMessageID)
}
