// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	appErrors "github.com/unclebandit/leadsms-backend/internal/errors"
)

type Config struct {
	HTTPAddr  string `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	Database DatabaseConfig `envPrefix:"DB_"`
	Twilio   TwilioConfig   `envPrefix:"TWILIO_"`
	Webhook  WebhookConfig  `envPrefix:"WEBHOOK_"`
	SMTP     SMTPConfig     `envPrefix:"SMTP_"`

	// Registration links are PublicBaseURL + RegistrationPath + "?token=...".
	PublicBaseURL    string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:5173"`
	RegistrationPath string `env:"REGISTRATION_PATH" envDefault:"/register"`
	DefaultRegion    string `env:"DEFAULT_REGION" envDefault:"US"`

	SendRatePerSecond float64 `env:"SEND_RATE_PER_SECOND" envDefault:"10"`
	SendBurst         int     `env:"SEND_BURST" envDefault:"1"`
	SendConcurrency   int     `env:"SEND_CONCURRENCY" envDefault:"4"`

	AMQPURL       string `env:"AMQP_URL"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	OperatorJWTSecret string `env:"OPERATOR_JWT_SECRET"`
	SchedulerSpec     string `env:"SCHEDULER_SPEC" envDefault:"@every 1m"`
	SchedulerBatch    int    `env:"SCHEDULER_BATCH" envDefault:"20"`

	// SchedulerLease bounds how long a queued campaign waits before it is claimed again.
	SchedulerLease time.Duration `env:"SCHEDULER_LEASE" envDefault:"10m"`
}

type DatabaseConfig struct {
	User     string `env:"USER" envDefault:"postgres"`
	Password string `env:"PASSWORD"`
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     int    `env:"PORT" envDefault:"5432"`
	Name     string `env:"NAME" envDefault:"leadsms"`
	SSLMode  string `env:"SSLMODE" envDefault:"disable"`
}

// DSN builds the lib/pq connection URL with credentials escaped.
func (c DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

type TwilioConfig struct {
	AccountSID          string `env:"ACCOUNT_SID"`
	AuthToken           string `env:"AUTH_TOKEN"`
	FromNumber          string `env:"FROM_NUMBER"`
	MessagingServiceSID string `env:"MESSAGING_SERVICE_SID"`
}

type WebhookConfig struct {
	User     string `env:"USER"`
	Password string `env:"PASSWORD"`
	// URL is where diagnostic simulations are forwarded.
	URL string `env:"URL" envDefault:"http://localhost:8080/webhooks/sms/inbound"`
}

// AuthEnabled reports whether inbound webhook calls must carry Basic credentials.
func (c WebhookConfig) AuthEnabled() bool {
	return c.User != "" && c.Password != ""
}

type SMTPConfig struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT" envDefault:"587"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	From     string `env:"FROM"`
}

func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.From != ""
}

// Load reads .env when present, then parses the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, relying on OS environment variables")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	return cfg, nil
}

// Validate checks the settings every SMS-sending process needs.
func (c *Config) Validate() error {
	var missing []string
	if c.Twilio.AccountSID == "" {
		missing = append(missing, "TWILIO_ACCOUNT_SID")
	}
	if c.Twilio.AuthToken == "" {
		missing = append(missing, "TWILIO_AUTH_TOKEN")
	}
	if c.Twilio.FromNumber == "" && c.Twilio.MessagingServiceSID == "" {
		missing = append(missing, "TWILIO_FROM_NUMBER or TWILIO_MESSAGING_SERVICE_SID")
	}
	if len(missing) > 0 {
		return appErrors.NotConfigured("sms provider is not configured: missing " + strings.Join(missing, ", "))
	}
	if c.SendConcurrency < 1 {
		return appErrors.BadRequest("SEND_CONCURRENCY must be at least 1")
	}
	return nil
}
