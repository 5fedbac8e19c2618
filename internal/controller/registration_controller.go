package controller

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/unclebandit/leadsms-backend/internal/service"
)

type Finalizer interface {
	Finalize(ctx context.Context, reg service.Registration) (*service.RegistrationResult, error)
}

type RegistrationController struct {
	Finalizer Finalizer
	Log       zerolog.Logger
}

func (c *RegistrationController) RegisterWithToken(w http.ResponseWriter, r *http.Request) {
	var body service.Registration
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, c.Log, err)
		return
	}

	result, err := c.Finalizer.Finalize(r.Context(), body)
	if err != nil {
		writeError(w, c.Log, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"userId":  result.UserID,
	})
}
