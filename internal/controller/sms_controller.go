package controller

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/unclebandit/leadsms-backend/internal/auth"
	"github.com/unclebandit/leadsms-backend/internal/service"
)

type BatchDispatcher interface {
	Dispatch(ctx context.Context, req service.SendRequest) (*service.SendResult, error)
}

type SMSController struct {
	Dispatcher BatchDispatcher
	Log        zerolog.Logger
}

// SendBatch sends a campaign now, or stores it when scheduledAt is given.
func (c *SMSController) SendBatch(w http.ResponseWriter, r *http.Request) {
	var body service.SendRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, c.Log, err)
		return
	}

	c.Log.Info().
		Str("operator", auth.Operator(r.Context())).
		Str("campaign", body.Campaign).
		Int("contact_ids", len(body.ContactIDs)).
		Str("tag", body.Tag).
		Msg("send-batch requested")

	result, err := c.Dispatcher.Dispatch(r.Context(), body)
	if err != nil {
		writeError(w, c.Log, err)
		return
	}

	if result.ScheduledCampaignID != "" {
		writeJSON(w, http.StatusAccepted, map[string]string{"scheduledCampaignId": result.ScheduledCampaignID})
		return
	}
	writeJSON(w, http.StatusOK, result)
}
