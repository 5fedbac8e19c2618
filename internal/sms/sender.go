// Package sms sends text messages through the SMS provider.
package sms

import (
	"context"

	"golang.org/x/time/rate"
)

// Sender delivers one message and returns the provider's message id and status.
type Sender interface {
	Send(ctx context.Context, to, body string) (Receipt, error)
}

type Receipt struct {
	SID    string
	Status string
}

// RateLimitedSender throttles calls to the wrapped Sender.
type RateLimitedSender struct {
	Next    Sender
	Limiter *rate.Limiter
}

func NewRateLimitedSender(next Sender, perSecond float64, burst int) *RateLimitedSender {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &RateLimitedSender{Next: next, Limiter: rate.NewLimiter(limit, burst)}
}

func (s *RateLimitedSender) Send(ctx context.Context, to, body string) (Receipt, error) {
	if err := s.Limiter.Wait(ctx); err != nil {
		return Receipt{}, err
	}
	return s.Next.Send(ctx, to, body)
}
