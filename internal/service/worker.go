package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/unclebandit/leadsms-backend/internal/model"
	"github.com/unclebandit/leadsms-backend/internal/queue"
	"github.com/unclebandit/leadsms-backend/internal/repository"
)

// CampaignDispatcher is the part of Dispatcher the worker needs
type CampaignDispatcher interface {
	Dispatch(ctx context.Context, req SendRequest) (*SendResult, error)
}

// Worker runs scheduled campaigns handed over by the scheduler through the queue
type Worker struct {
	Repo       repository.ScheduledCampaignRepositoryInterface
	Dispatcher CampaignDispatcher
	Log        zerolog.Logger
}

// Constructor
func NewWorker(repo repository.ScheduledCampaignRepositoryInterface, dispatcher CampaignDispatcher, log zerolog.Logger) *Worker {
	return &Worker{
		Repo:       repo,
		Dispatcher: dispatcher,
		Log:        log,
	}
}

// Start subscribes the worker to due scheduled campaigns
func (w *Worker) Start(ctx context.Context, q queue.Queue) error {
	return q.Subscribe(queue.TopicScheduledCampaigns, func(body []byte) error {
		return w.Handle(ctx, body)
	})
}

// Handle runs one scheduled campaign. Only lookup failures are returned for redelivery;
// once dispatch starts the outcome is recorded and never retried, since part of
// the batch may already have been sent.
func (w *Worker) Handle(ctx context.Context, body []byte) error {
	id := string(body)
	sc, err := w.Repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load scheduled campaign %s: %w", id, err)
	}
	if sc.Status != model.ScheduledQueued {
		w.Log.Info().Str("scheduled_campaign_id", id).Str("status", string(sc.Status)).Msg("skipping scheduled campaign not in queued state")
		return nil
	}
	started, err := w.Repo.StartSending(ctx, id)
	if err != nil {
		return err
	}
	if !started {
		w.Log.Info().Str("scheduled_campaign_id", id).Msg("scheduled campaign already picked up by another delivery")
		return nil
	}

	var req SendRequest
	if err := json.Unmarshal(sc.CampaignPayload, &req); err != nil {
		return w.fail(ctx, id, fmt.Errorf("decode payload: %w", err))
	}
	req.ScheduledAt = nil

	res, err := w.Dispatcher.Dispatch(ctx, req)
	if err != nil {
		return w.fail(ctx, id, err)
	}
	result, err := json.Marshal(res)
	if err != nil {
		return w.fail(ctx, id, fmt.Errorf("encode result: %w", err))
	}
	if err := w.Repo.MarkSent(ctx, id, result); err != nil {
		w.Log.Error().Err(err).Str("scheduled_campaign_id", id).Msg("failed to record scheduled campaign result")
		return nil
	}
	w.Log.Info().Str("scheduled_campaign_id", id).Int("sent", res.Sent).Int("failed", len(res.Failures)).Msg("scheduled campaign sent")
	return nil
}

func (w *Worker) fail(ctx context.Context, id string, cause error) error {
	w.Log.Error().Err(cause).Str("scheduled_campaign_id", id).Msg("scheduled campaign failed")
	if err := w.Repo.MarkFailed(ctx, id, cause.Error()); err != nil {
		w.Log.Error().Err(err).Str("scheduled_campaign_id", id).Msg("failed to record scheduled campaign failure")
	}
	return nil
}
