package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/unclebandit/leadsms-backend/internal/queue"
	"github.com/unclebandit/leadsms-backend/internal/repository"
)

// CampaignScheduler periodically claims due scheduled campaigns and queues them for the worker.
type CampaignScheduler struct {
	Repo  repository.ScheduledCampaignRepositoryInterface
	Queue queue.Queue
	Batch int
	// Lease is how long a row may sit in queued before a sweep claims it again.
	Lease time.Duration
	Log   zerolog.Logger
	Now   func() time.Time

	cron *cron.Cron
}

// Start registers the sweep on spec, a cron expression or descriptor such as "@every 1m".
func (s *CampaignScheduler) Start(ctx context.Context, spec string) error {
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	s.cron = cron.New(cron.WithParser(parser))
	_, err := s.cron.AddFunc(spec, func() {
		if _, err := s.Sweep(ctx); err != nil {
			s.Log.Error().Err(err).Msg("scheduled campaign sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid scheduler spec %q: %w", spec, err)
	}
	s.cron.Start()
	s.Log.Info().Str("spec", spec).Msg("campaign scheduler started")
	return nil
}

// Stop halts the schedule and waits for a running sweep.
func (s *CampaignScheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// Sweep claims due campaigns and publishes their ids. Ids that fail to publish go back to pending.
func (s *CampaignScheduler) Sweep(ctx context.Context) (int, error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	batch := s.Batch
	if batch < 1 {
		batch = 20
	}

	lease := s.Lease
	if lease <= 0 {
		lease = 10 * time.Minute
	}

	at := now().UTC()
	ids, err := s.Repo.ClaimDue(ctx, at, at.Add(-lease), batch)
	if err != nil {
		return 0, err
	}

	var unpublished []string
	for _, id := range ids {
		if err := s.Queue.Publish(ctx, queue.TopicScheduledCampaigns, []byte(id)); err != nil {
			s.Log.Warn().Err(err).Str("scheduled_campaign_id", id).Msg("publish failed, returning to pending")
			unpublished = append(unpublished, id)
		}
	}
	if len(unpublished) > 0 {
		if err := s.Repo.Requeue(ctx, unpublished); err != nil {
			return len(ids) - len(unpublished), fmt.Errorf("requeue unpublished campaigns: %w", err)
		}
	}
	if len(ids) > 0 {
		s.Log.Info().Int("claimed", len(ids)).Int("published", len(ids)-len(unpublished)).Msg("scheduled campaigns queued")
	}
	return len(ids) - len(unpublished), nil
}
