// Package app builds the collaborators shared by the server and worker processes.
package app

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"

	"github.com/unclebandit/leadsms-backend/internal/cache"
	"github.com/unclebandit/leadsms-backend/internal/config"
	"github.com/unclebandit/leadsms-backend/internal/logger"
	"github.com/unclebandit/leadsms-backend/internal/mailer"
	"github.com/unclebandit/leadsms-backend/internal/queue"
	"github.com/unclebandit/leadsms-backend/internal/repository"
	"github.com/unclebandit/leadsms-backend/internal/service"
	"github.com/unclebandit/leadsms-backend/internal/sms"
	"github.com/unclebandit/leadsms-backend/internal/token"
)

// NewSender returns the rate-limited Twilio sender.
func NewSender(cfg *config.Config, log zerolog.Logger) (sms.Sender, error) {
	twilio, err := sms.NewTwilioSender(cfg.Twilio, logger.Component(log, "twilio"))
	if err != nil {
		return nil, err
	}
	return sms.NewRateLimitedSender(twilio, cfg.SendRatePerSecond, cfg.SendBurst), nil
}

func NewDispatcher(cfg *config.Config, conn *sql.DB, sender sms.Sender, log zerolog.Logger) *service.Dispatcher {
	return &service.Dispatcher{
		Contacts:    &repository.ContactRepository{DB: conn},
		Tokens:      token.NewIssuer(&repository.TokenRepository{DB: conn}, logger.Component(log, "token")),
		Sender:      sender,
		Outbound:    &repository.OutboundMessageRepository{DB: conn},
		Scheduled:   &repository.ScheduledCampaignRepository{DB: conn},
		LinkBase:    cfg.PublicBaseURL + cfg.RegistrationPath,
		Concurrency: cfg.SendConcurrency,
		Log:         logger.Component(log, "dispatcher"),
	}
}

// NewQueue connects to RabbitMQ when AMQP_URL is set and falls back to the in-memory queue.
func NewQueue(cfg *config.Config, log zerolog.Logger) (queue.Queue, error) {
	qlog := logger.Component(log, "queue")
	if cfg.AMQPURL == "" {
		qlog.Warn().Msg("AMQP_URL not set, using in-memory queue")
		return queue.NewInMemoryQueue(qlog), nil
	}
	return queue.DialAMQP(cfg.AMQPURL, qlog)
}

// NewDeduper returns nil when Redis is not configured. The returned func closes the client.
func NewDeduper(ctx context.Context, cfg *config.Config, log zerolog.Logger) (service.Deduper, func() error, error) {
	if cfg.RedisAddr == "" {
		log.Info().Msg("REDIS_ADDR not set, inbound duplicate detection disabled")
		return nil, func() error { return nil }, nil
	}
	client, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		return nil, nil, err
	}
	return cache.NewRedisDeduper(client, 24*time.Hour), client.Close, nil
}

// NewInviter returns nil when SMTP is not configured, which disables registration.
func NewInviter(cfg *config.Config, log zerolog.Logger) service.Inviter {
	inviter, err := mailer.NewSMTPInviter(cfg.SMTP, cfg.PublicBaseURL)
	if err != nil {
		log.Warn().Err(err).Msg("registration disabled: SMTP is not configured")
		return nil
	}
	return inviter
}
