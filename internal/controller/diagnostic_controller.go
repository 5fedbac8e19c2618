package controller

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/unclebandit/leadsms-backend/internal/auth"
	"github.com/unclebandit/leadsms-backend/internal/diagnostic"
	appErrors "github.com/unclebandit/leadsms-backend/internal/errors"
)

type InboundSimulator interface {
	Simulate(ctx context.Context, from, body string) (*diagnostic.Result, error)
}

type DiagnosticController struct {
	Simulator InboundSimulator
	Log       zerolog.Logger
}

// SimulateInbound replays an inbound SMS through the real webhook.
func (c *DiagnosticController) SimulateInbound(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FromNumber string `json:"from_number"`
		Body       string `json:"body"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, c.Log, err)
		return
	}
	if strings.TrimSpace(body.FromNumber) == "" {
		writeError(w, c.Log, appErrors.MissingFields("from_number"))
		return
	}

	res, err := c.Simulator.Simulate(r.Context(), body.FromNumber, body.Body)
	if err != nil {
		writeError(w, c.Log, appErrors.Upstream("webhook simulation failed", err))
		return
	}
	c.Log.Info().
		Str("operator", auth.Operator(r.Context())).
		Str("sid", res.MessageSid).
		Int("webhook_status", res.Status).
		Msg("inbound simulated")
	writeJSON(w, http.StatusOK, res)
}
