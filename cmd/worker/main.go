package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/unclebandit/leadsms-backend/internal/app"
	"github.com/unclebandit/leadsms-backend/internal/config"
	"github.com/unclebandit/leadsms-backend/internal/db"
	"github.com/unclebandit/leadsms-backend/internal/logger"
	"github.com/unclebandit/leadsms-backend/internal/queue"
	"github.com/unclebandit/leadsms-backend/internal/repository"
	"github.com/unclebandit/leadsms-backend/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("info", "json")
		boot.Fatal().Err(err).Msg("failed to load config")
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to DB
	conn, err := db.Open(ctx, cfg.Database, logger.Component(log, "db"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to DB")
	}
	defer conn.Close()

	sender, err := app.NewSender(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build SMS sender")
	}

	// Connect to RabbitMQ, or run in-process without it
	q, err := app.NewQueue(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to queue")
	}
	defer q.Close()

	repo := &repository.ScheduledCampaignRepository{DB: conn}
	scheduler, err := startPipeline(ctx, cfg.SchedulerSpec, cfg.SchedulerBatch, cfg.SchedulerLease, q, repo, app.NewDispatcher(cfg, conn, sender, log), log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start worker")
	}
	defer scheduler.Stop()

	log.Info().Str("spec", cfg.SchedulerSpec).Msg("worker running, waiting for scheduled campaigns")
	<-ctx.Done()
	log.Info().Msg("worker shutting down")
}

// startPipeline subscribes the consumer before the first sweep can publish.
func startPipeline(
	ctx context.Context,
	spec string,
	batch int,
	lease time.Duration,
	q queue.Queue,
	repo repository.ScheduledCampaignRepositoryInterface,
	dispatcher service.CampaignDispatcher,
	log zerolog.Logger,
) (*service.CampaignScheduler, error) {
	worker := service.NewWorker(repo, dispatcher, logger.Component(log, "worker"))
	if err := worker.Start(ctx, q); err != nil {
		return nil, err
	}

	scheduler := &service.CampaignScheduler{
		Repo:  repo,
		Queue: q,
		Batch: batch,
		Lease: lease,
		Log:   logger.Component(log, "scheduler"),
	}
	if err := scheduler.Start(ctx, spec); err != nil {
		return nil, err
	}
	return scheduler, nil
}
