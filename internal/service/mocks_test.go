package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/leadsms-backend/internal/errors"
	"github.com/unclebandit/leadsms-backend/internal/model"
	"github.com/unclebandit/leadsms-backend/internal/repository"
	"github.com/unclebandit/leadsms-backend/internal/sms"
)

// memDB is an in-memory stand-in for the PostgreSQL tables the services touch.
type memDB struct {
	mu   sync.Mutex
	txMu sync.Mutex

	contacts  map[string]*model.Contact
	tokens    map[string]*model.RegistrationToken
	accounts  map[string]model.Account
	outbound  []model.OutboundMessage
	inbound   []model.InboundMessage
	scheduled map[string]*model.ScheduledCampaign

	optOutChanges int
	failMarkUsed  bool
	failOutbound  bool
	failInbound   bool
	failOptOut    bool
}

func newMemDB() *memDB {
	return &memDB{
		contacts:  map[string]*model.Contact{},
		tokens:    map[string]*model.RegistrationToken{},
		accounts:  map[string]model.Account{},
		scheduled: map[string]*model.ScheduledCampaign{},
	}
}

func (m *memDB) addContact(c model.Contact) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = uuid.NewString()
	m.contacts[c.ID] = &c
	return c.ID
}

func (m *memDB) contact(id string) model.Contact {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.contacts[id]
}

func (m *memDB) tokenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tokens)
}

func (m *memDB) accountCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.accounts)
}

func (m *memDB) byPhone(phone string) *model.Contact {
	for _, c := range m.contacts {
		if phone != "" && c.Phone == phone {
			return c
		}
	}
	return nil
}

// ---- contacts ----

type contactRepo struct{ db *memDB }

var _ repository.ContactRepositoryInterface = contactRepo{}

func sendable(c *model.Contact) bool {
	return !c.OptedOut && c.Phone != ""
}

func (r contactRepo) ListSendableByIDs(_ context.Context, ids []string) ([]model.Contact, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []model.Contact{}
	for _, id := range ids {
		if c, ok := r.db.contacts[id]; ok && sendable(c) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r contactRepo) ListSendableByTag(_ context.Context, tag string) ([]model.Contact, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []model.Contact{}
	for _, c := range r.db.contacts {
		if !sendable(c) {
			continue
		}
		for _, t := range c.Tags {
			if t == tag {
				out = append(out, *c)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r contactRepo) UpsertByPhone(_ context.Context, phone string) (string, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if c := r.db.byPhone(phone); c != nil {
		return c.ID, nil
	}
	c := &model.Contact{ID: uuid.NewString(), Phone: phone}
	r.db.contacts[c.ID] = c
	return c.ID, nil
}

func (r contactRepo) MarkOptedOut(_ context.Context, id string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.failOptOut {
		return false, errors.New("connection reset")
	}
	c := r.db.contacts[id]
	if c.OptedOut {
		return false, nil
	}
	now := time.Now()
	c.OptedOut, c.OptedOutAt = true, &now
	r.db.optOutChanges++
	return true, nil
}

func (r contactRepo) ClearOptOut(_ context.Context, id string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c := r.db.contacts[id]
	if !c.OptedOut {
		return false, nil
	}
	c.OptedOut, c.OptedOutAt = false, nil
	return true, nil
}

func (r contactRepo) GetByID(_ context.Context, id string) (*model.Contact, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.contacts[id]
	if !ok {
		return nil, appErrors.NotFound("contact not found")
	}
	cp := *c
	return &cp, nil
}

// ---- tokens, messages ----

type tokenStore struct{ db *memDB }

func (s tokenStore) Create(_ context.Context, token, contactID, campaign string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.tokens[token]; ok {
		return errors.New("duplicate token")
	}
	s.db.tokens[token] = &model.RegistrationToken{Token: token, ContactID: contactID, Campaign: campaign, CreatedAt: time.Now()}
	return nil
}

type outboundRepo struct{ db *memDB }

// Create fails on a done context the way database/sql does.
func (r outboundRepo) Create(ctx context.Context, msg *model.OutboundMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.failOutbound {
		return errors.New("connection reset")
	}
	msg.ID = len(r.db.outbound) + 1
	r.db.outbound = append(r.db.outbound, *msg)
	return nil
}

type inboundRepo struct{ db *memDB }

func (r inboundRepo) Create(_ context.Context, msg *model.InboundMessage) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.failInbound {
		return errors.New("connection reset")
	}
	msg.ID = len(r.db.inbound) + 1
	r.db.inbound = append(r.db.inbound, *msg)
	return nil
}

// ---- scheduled campaigns ----

type scheduledRepo struct{ db *memDB }

var _ repository.ScheduledCampaignRepositoryInterface = scheduledRepo{}

func (r scheduledRepo) Create(_ context.Context, c *model.ScheduledCampaign) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now()
	cp := *c
	r.db.scheduled[c.ID] = &cp
	return nil
}

func (r scheduledRepo) GetByID(_ context.Context, id string) (*model.ScheduledCampaign, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.scheduled[id]
	if !ok {
		return nil, appErrors.NotFound("scheduled campaign not found")
	}
	cp := *c
	return &cp, nil
}

func (r scheduledRepo) ClaimDue(_ context.Context, now, staleBefore time.Time, limit int) ([]string, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	ids := []string{}
	for id, c := range r.db.scheduled {
		if len(ids) == limit {
			break
		}
		due := c.Status == model.ScheduledPending && !c.ScheduledAt.After(now)
		stale := c.Status == model.ScheduledQueued && c.UpdatedAt != nil && c.UpdatedAt.Before(staleBefore)
		if due || stale {
			c.Status = model.ScheduledQueued
			c.UpdatedAt = &now
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r scheduledRepo) StartSending(_ context.Context, id string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c := r.db.scheduled[id]
	if c.Status != model.ScheduledQueued {
		return false, nil
	}
	c.Status = model.ScheduledSending
	return true, nil
}

func (r scheduledRepo) Requeue(_ context.Context, ids []string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, id := range ids {
		if c := r.db.scheduled[id]; c.Status == model.ScheduledQueued {
			c.Status = model.ScheduledPending
		}
	}
	return nil
}

func (r scheduledRepo) MarkSent(_ context.Context, id string, result json.RawMessage) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c := r.db.scheduled[id]
	c.Status, c.Result = model.ScheduledSent, result
	return nil
}

func (r scheduledRepo) MarkFailed(_ context.Context, id string, lastError string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c := r.db.scheduled[id]
	c.Status, c.LastError = model.ScheduledFailed, lastError
	return nil
}

func (r scheduledRepo) status(id string) model.ScheduledStatus {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.db.scheduled[id].Status
}

// ---- registration transaction ----

// regStore serializes transactions like the token row lock does and
// restores a snapshot when fn fails.
type regStore struct{ db *memDB }

func (s regStore) WithTx(_ context.Context, fn func(tx repository.RegistrationTx) error) error {
	s.db.txMu.Lock()
	defer s.db.txMu.Unlock()

	snap := s.db.snapshot()
	if err := fn(memTx{db: s.db}); err != nil {
		s.db.restore(snap)
		return err
	}
	return nil
}

type memSnapshot struct {
	contacts map[string]model.Contact
	tokens   map[string]model.RegistrationToken
	accounts map[string]model.Account
}

func (m *memDB) snapshot() memSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := memSnapshot{
		contacts: map[string]model.Contact{},
		tokens:   map[string]model.RegistrationToken{},
		accounts: map[string]model.Account{},
	}
	for k, v := range m.contacts {
		s.contacts[k] = *v
	}
	for k, v := range m.tokens {
		s.tokens[k] = *v
	}
	for k, v := range m.accounts {
		s.accounts[k] = v
	}
	return s
}

func (m *memDB) restore(s memSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contacts = map[string]*model.Contact{}
	for k, v := range s.contacts {
		v := v
		m.contacts[k] = &v
	}
	m.tokens = map[string]*model.RegistrationToken{}
	for k, v := range s.tokens {
		v := v
		m.tokens[k] = &v
	}
	m.accounts = s.accounts
}

type memTx struct{ db *memDB }

func (t memTx) LockToken(_ context.Context, token string) (*model.RegistrationToken, error) {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	rt, ok := t.db.tokens[token]
	if !ok {
		return nil, appErrors.NotFound("registration token not found")
	}
	cp := *rt
	return &cp, nil
}

func (t memTx) CreateAccount(_ context.Context, a *model.Account) error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	if _, ok := t.db.accounts[a.Email]; ok {
		return appErrors.EmailRegistered(a.Email)
	}
	a.InvitedAt = time.Now()
	t.db.accounts[a.Email] = *a
	return nil
}

func (t memTx) LinkContact(_ context.Context, contactID string, c *model.Contact) (bool, error) {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	existing, ok := t.db.contacts[contactID]
	if !ok {
		return false, nil
	}
	existing.FirstName, existing.LastName = c.FirstName, c.LastName
	existing.Email, existing.BrokerageName = c.Email, c.BrokerageName
	if existing.Phone == "" {
		existing.Phone = c.Phone
	}
	existing.Registered, existing.UserID = true, c.UserID
	c.ID = contactID
	return true, nil
}

func (t memTx) CreateRegisteredContact(_ context.Context, c *model.Contact) error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	if existing := t.db.byPhone(c.Phone); existing != nil {
		id := existing.ID
		*existing = *c
		existing.ID = id
		c.ID = id
		return nil
	}
	c.ID = uuid.NewString()
	c.Registered = true
	cp := *c
	t.db.contacts[c.ID] = &cp
	return nil
}

func (t memTx) MarkTokenUsed(_ context.Context, token string) error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	if t.db.failMarkUsed {
		return errors.New("deadlock detected")
	}
	rt := t.db.tokens[token]
	if rt.Used {
		return appErrors.TokenUsed()
	}
	now := time.Now()
	rt.Used, rt.UsedAt = true, &now
	return nil
}

// ---- collaborators ----

type sentSMS struct {
	To   string
	Body string
}

type fakeSender struct {
	mu      sync.Mutex
	failFor map[string]bool
	sent    []sentSMS
	calls   int
}

func (s *fakeSender) Send(_ context.Context, to, body string) (sms.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failFor[to] {
		return sms.Receipt{}, appErrors.Upstream("twilio rejected message", fmt.Errorf("21211 invalid 'To' number %s", to))
	}
	s.sent = append(s.sent, sentSMS{To: to, Body: body})
	return sms.Receipt{SID: fmt.Sprintf("SM%03d", len(s.sent)), Status: "queued"}, nil
}

func (s *fakeSender) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakeInviter struct {
	mu      sync.Mutex
	err     error
	invited []model.Account
}

func (f *fakeInviter) Invite(_ context.Context, a model.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invited = append(f.invited, a)
	return f.err
}

type fakeDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (d *fakeDeduper) FirstSeen(_ context.Context, sid string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen == nil {
		d.seen = map[string]bool{}
	}
	if d.seen[sid] {
		return false, nil
	}
	d.seen[sid] = true
	return true, nil
}

func (d *fakeDeduper) Forget(_ context.Context, sid string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, sid)
	return nil
}
