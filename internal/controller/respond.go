package controller

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	appErrors "github.com/unclebandit/leadsms-backend/internal/errors"
)

type errorBody struct {
	Error  string         `json:"error"`
	Kind   appErrors.Kind `json:"kind"`
	Reason string         `json:"reason,omitempty"`
	Fields []string       `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps typed errors onto their status; anything else is a 500 with a generic body.
func writeError(w http.ResponseWriter, log zerolog.Logger, err error) {
	appErr, ok := appErrors.As(err)
	if !ok {
		log.Error().Err(err).Msg("unhandled error")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error", Kind: "Internal"})
		return
	}
	if appErr.Kind == appErrors.KindUpstreamFailure {
		log.Error().Err(err).Msg("upstream failure")
	}
	writeJSON(w, appErr.HTTPStatus(), errorBody{
		Error:  appErr.Message,
		Kind:   appErr.Kind,
		Reason: appErr.Reason,
		Fields: appErr.Fields,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return appErrors.BadRequest("invalid JSON body: " + err.Error())
	}
	return nil
}
