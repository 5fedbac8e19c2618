package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/unclebandit/leadsms-backend/internal/app"
	"github.com/unclebandit/leadsms-backend/internal/auth"
	"github.com/unclebandit/leadsms-backend/internal/config"
	"github.com/unclebandit/leadsms-backend/internal/controller"
	"github.com/unclebandit/leadsms-backend/internal/db"
	"github.com/unclebandit/leadsms-backend/internal/diagnostic"
	"github.com/unclebandit/leadsms-backend/internal/handler"
	"github.com/unclebandit/leadsms-backend/internal/logger"
	"github.com/unclebandit/leadsms-backend/internal/repository"
	"github.com/unclebandit/leadsms-backend/internal/service"
	"github.com/unclebandit/leadsms-backend/internal/sms"
)

func provideConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func provideLogger(cfg *config.Config) zerolog.Logger {
	return logger.New(cfg.LogLevel, cfg.LogFormat)
}

func provideDB(lc fx.Lifecycle, cfg *config.Config, log zerolog.Logger) (*sql.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	conn, err := db.Open(ctx, cfg.Database, logger.Component(log, "db"))
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return conn.Close() },
	})
	return conn, nil
}

func provideSender(cfg *config.Config, log zerolog.Logger) (sms.Sender, error) {
	return app.NewSender(cfg, log)
}

func provideDeduper(lc fx.Lifecycle, cfg *config.Config, log zerolog.Logger) (service.Deduper, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	deduper, closeFn, err := app.NewDeduper(ctx, cfg, logger.Component(log, "cache"))
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return closeFn() },
	})
	return deduper, nil
}

func provideInviter(cfg *config.Config, log zerolog.Logger) service.Inviter {
	return app.NewInviter(cfg, logger.Component(log, "mailer"))
}

type routerParams struct {
	fx.In

	Config  *config.Config
	Log     zerolog.Logger
	DB      *sql.DB
	Sender  sms.Sender
	Deduper service.Deduper `optional:"true"`
	Inviter service.Inviter `optional:"true"`
}

func provideRouter(p routerParams) http.Handler {
	cfg, log := p.Config, p.Log

	if !cfg.Webhook.AuthEnabled() {
		log.Warn().Msg("WEBHOOK_USER/WEBHOOK_PASSWORD not set, inbound webhook accepts unauthenticated calls")
	}
	if cfg.OperatorJWTSecret == "" {
		log.Warn().Msg("OPERATOR_JWT_SECRET not set, operator endpoints will reject every request")
	}

	smsController := &controller.SMSController{
		Dispatcher: app.NewDispatcher(cfg, p.DB, p.Sender, log),
		Log:        logger.Component(log, "sms"),
	}
	inboundController := &controller.InboundController{
		Receiver: &service.InboundReceiver{
			Contacts: &repository.ContactRepository{DB: p.DB},
			Messages: &repository.InboundMessageRepository{DB: p.DB},
			Dedupe:   p.Deduper,
			Region:   cfg.DefaultRegion,
			Log:      logger.Component(log, "inbound"),
		},
		User:     cfg.Webhook.User,
		Password: cfg.Webhook.Password,
		Log:      logger.Component(log, "webhook"),
	}
	registrationController := &controller.RegistrationController{
		Finalizer: &service.RegistrationService{
			Store:   &repository.RegistrationStore{DB: p.DB},
			Inviter: p.Inviter,
			Region:  cfg.DefaultRegion,
			Log:     logger.Component(log, "registration"),
		},
		Log: logger.Component(log, "registration"),
	}
	diagnosticController := &controller.DiagnosticController{
		Simulator: diagnostic.NewSimulator(cfg.Webhook.URL, cfg.Webhook.User, cfg.Webhook.Password, cfg.Twilio.FromNumber),
		Log:       logger.Component(log, "diagnostic"),
	}
	campaignHandler := &handler.CampaignHandler{
		Outbound:  &repository.OutboundMessageRepository{DB: p.DB},
		Tokens:    &repository.TokenRepository{DB: p.DB},
		Scheduled: &repository.ScheduledCampaignRepository{DB: p.DB},
		Log:       logger.Component(log, "campaigns"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logger.RequestLogger(logger.Component(log, "http")))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := p.DB.PingContext(req.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	})

	// Provider and registrant routes
	r.Post("/webhooks/sms/inbound", inboundController.Receive)
	r.Post("/register-with-token", registrationController.RegisterWithToken)

	// Operator routes
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireOperator(cfg.OperatorJWTSecret, logger.Component(log, "auth")))
		r.Post("/sms/send-batch", smsController.SendBatch)
		r.Post("/internal/simulate-inbound", diagnosticController.SimulateInbound)
		r.Get("/campaigns/{name}/stats", campaignHandler.GetCampaignStats)
		r.Get("/scheduled-campaigns/{id}", campaignHandler.GetScheduledCampaign)
	})

	return r
}

func startServer(lc fx.Lifecycle, cfg *config.Config, log zerolog.Logger, router http.Handler, shutdowner fx.Shutdowner) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				log.Info().Str("addr", cfg.HTTPAddr).Msg("server running")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error().Err(err).Msg("server failed")
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
