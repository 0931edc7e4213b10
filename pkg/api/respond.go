package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/voisinsolidaire/voisin/pkg/core/services"
	"github.com/voisinsolidaire/voisin/pkg/db"
)

type errorResponse struct {
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err as a French message with a stable code
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{
		Error:  services.UserMessage(err),
		Code:   services.ErrorCode(err),
		Fields: services.FieldMessages(err),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, db.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, db.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, db.ErrAlreadyRegistered),
		errors.Is(err, db.ErrMissionFull),
		errors.Is(err, db.ErrMissionClosed),
		errors.Is(err, db.ErrInvalidTransition):
		return http.StatusConflict
	}

	var be *db.BackendError
	if errors.As(err, &be) && be.Status >= 400 {
		return be.Status
	}
	return http.StatusInternalServerError
}

// decodeJSON reads the request body into v
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w: %w", err, db.ErrValidation)
	}
	return nil
}
