package controller

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/unclebandit/leadsms-backend/internal/diagnostic"
	"github.com/unclebandit/leadsms-backend/internal/service"
)

const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

type InboundService interface {
	Receive(ctx context.Context, req service.InboundRequest) (*service.InboundOutcome, error)
}

// InboundController serves the provider's inbound SMS webhook
type InboundController struct {
	Receiver InboundService
	User     string
	Password string
	Log      zerolog.Logger
}

func (c *InboundController) authEnabled() bool {
	return c.User != "" && c.Password != ""
}

// Receive always acknowledges with empty TwiML unless Basic auth fails.
func (c *InboundController) Receive(w http.ResponseWriter, r *http.Request) {
	authenticated := false
	if c.authEnabled() {
		user, pass, ok := r.BasicAuth()
		if !ok || !secureEqual(user, c.User) || !secureEqual(pass, c.Password) {
			c.Log.Warn().Str("remote_addr", r.RemoteAddr).Bool("credentials_present", ok).Msg("webhook call rejected")
			w.Header().Set("WWW-Authenticate", `Basic realm="sms-webhook"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		authenticated = true
	} else {
		c.Log.Debug().Msg("webhook auth not configured, accepting unauthenticated call")
	}

	simulated := r.Header.Get(diagnostic.Header) == "1"
	if simulated && !authenticated {
		c.Log.Warn().Str("remote_addr", r.RemoteAddr).Msg("ignoring diagnostic marker on unauthenticated call")
		simulated = false
	}

	if err := r.ParseForm(); err != nil {
		c.Log.Warn().Err(err).Msg("unreadable webhook form")
		ackTwiML(w)
		return
	}
	req := service.InboundRequest{
		From:       r.PostForm.Get("From"),
		To:         r.PostForm.Get("To"),
		Body:       r.PostForm.Get("Body"),
		MessageSid: r.PostForm.Get("MessageSid"),
		Params:     r.PostForm,
		Diagnostic: simulated,
	}
	if _, err := c.Receiver.Receive(r.Context(), req); err != nil {
		c.Log.Error().Err(err).Str("sid", req.MessageSid).Msg("inbound message processing failed")
	}
	ackTwiML(w)
}

func ackTwiML(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(emptyTwiML))
}

func secureEqual(a, b string) bool {
	ha := sha256.Sum256([]byte(a))
	hb := sha256.Sum256([]byte(b))
	return subtle.ConstantTimeCompare(ha[:], hb[:]) == 1
}
