package main

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/leadsms-backend/internal/model"
	"github.com/unclebandit/leadsms-backend/internal/queue"
	"github.com/unclebandit/leadsms-backend/internal/service"
)

// MockScheduledRepo stores scheduled campaigns in memory
type MockScheduledRepo struct {
	rows map[string]*model.ScheduledCampaign
	mu   sync.Mutex
}

func (m *MockScheduledRepo) Create(_ context.Context, c *model.ScheduledCampaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[c.ID] = c
	return nil
}

func (m *MockScheduledRepo) GetByID(_ context.Context, id string) (*model.ScheduledCampaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.rows[id]
	return &cp, nil
}

func (m *MockScheduledRepo) ClaimDue(_ context.Context, now, _ time.Time, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, c := range m.rows {
		if c.Status == model.ScheduledPending && !c.ScheduledAt.After(now) && len(ids) < limit {
			c.Status = model.ScheduledQueued
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *MockScheduledRepo) StartSending(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows[id].Status != model.ScheduledQueued {
		return false, nil
	}
	m.rows[id].Status = model.ScheduledSending
	return true, nil
}

func (m *MockScheduledRepo) Requeue(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		m.rows[id].Status = model.ScheduledPending
	}
	return nil
}

func (m *MockScheduledRepo) MarkSent(_ context.Context, id string, result json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[id].Status = model.ScheduledSent
	m.rows[id].Result = result
	return nil
}

func (m *MockScheduledRepo) MarkFailed(_ context.Context, id string, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[id].Status = model.ScheduledFailed
	m.rows[id].LastError = lastError
	return nil
}

func (m *MockScheduledRepo) status(id string) model.ScheduledStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id].Status
}

// Mock dispatcher always sends to one contact
type MockDispatcher struct {
	mu  sync.Mutex
	got []service.SendRequest
}

func (d *MockDispatcher) Dispatch(_ context.Context, req service.SendRequest) (*service.SendResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.got = append(d.got, req)
	return &service.SendResult{Sent: 1, Results: []service.SendOutcome{{Contact: "+14155552671", ContactID: "c1", SID: "SM1"}}}, nil
}

func TestWorker(t *testing.T) {
	payload, _ := json.Marshal(service.SendRequest{Tag: "agent", Campaign: "fall", Message: "Hi {first}"})
	repo := &MockScheduledRepo{
		rows: map[string]*model.ScheduledCampaign{
			"sc1": {ID: "sc1", Status: model.ScheduledPending, ScheduledAt: time.Now().Add(-time.Minute), CampaignPayload: payload},
		},
	}
	dispatcher := &MockDispatcher{}
	q := queue.NewInMemoryQueue(zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler, err := startPipeline(ctx, "@every 1s", 10, time.Minute, q, repo, dispatcher, zerolog.Nop())
	require.NoError(t, err)
	defer scheduler.Stop()

	// Wait until the sweep has run and the worker processed the campaign
	require.Eventually(t, func() bool {
		return repo.status("sc1") == model.ScheduledSent
	}, 5*time.Second, 50*time.Millisecond)

	dispatcher.mu.Lock()
	defer dispatcher.mu.Unlock()
	require.Len(t, dispatcher.got, 1)
	assert.Equal(t, "fall", dispatcher.got[0].Campaign)
}
