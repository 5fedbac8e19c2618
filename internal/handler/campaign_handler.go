// internal/handler/campaign_handler.go
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	appErrors "github.com/unclebandit/leadsms-backend/internal/errors"
	"github.com/unclebandit/leadsms-backend/internal/model"
)

type OutboundStats interface {
	StatusCounts(ctx context.Context, campaign string) (map[string]int, error)
}

type TokenStats interface {
	Stats(ctx context.Context, campaign string) (issued, used int, err error)
}

type ScheduledLookup interface {
	GetByID(ctx context.Context, id string) (*model.ScheduledCampaign, error)
}

// CampaignHandler holds the dependencies for campaign reporting endpoints
type CampaignHandler struct {
	Outbound  OutboundStats
	Tokens    TokenStats
	Scheduled ScheduledLookup
	Log       zerolog.Logger
}

type CampaignStats struct {
	Campaign     string         `json:"campaign"`
	Total        int            `json:"total"`
	Statuses     map[string]int `json:"statuses"`
	TokensIssued int            `json:"tokens_issued"`
	TokensUsed   int            `json:"tokens_used"`
}

// GetCampaignStats returns outbound counts by provider status and token usage for a campaign
func (h *CampaignHandler) GetCampaignStats(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		http.Error(w, "campaign name is required", http.StatusBadRequest)
		return
	}

	counts, err := h.Outbound.StatusCounts(r.Context(), name)
	if err != nil {
		h.Log.Error().Err(err).Str("campaign", name).Msg("failed to fetch outbound stats")
		http.Error(w, "failed to fetch campaign stats", http.StatusInternalServerError)
		return
	}
	issued, used, err := h.Tokens.Stats(r.Context(), name)
	if err != nil {
		h.Log.Error().Err(err).Str("campaign", name).Msg("failed to fetch token stats")
		http.Error(w, "failed to fetch campaign stats", http.StatusInternalServerError)
		return
	}

	stats := CampaignStats{Campaign: name, Statuses: counts, TokensIssued: issued, TokensUsed: used}
	for _, n := range counts {
		stats.Total += n
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// GetScheduledCampaign returns one scheduled campaign with its status and result
func (h *CampaignHandler) GetScheduledCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		http.Error(w, "invalid scheduled campaign id", http.StatusBadRequest)
		return
	}

	sc, err := h.Scheduled.GetByID(r.Context(), id)
	if err != nil {
		if appErrors.KindOf(err) == appErrors.KindNotFound {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		h.Log.Error().Err(err).Str("scheduled_campaign_id", id).Msg("failed to fetch scheduled campaign")
		http.Error(w, "failed to fetch scheduled campaign", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sc)
}
