package api

import (
	"net/http"

	"github.com/voisinsolidaire/voisin/pkg/core/services"
	"github.com/voisinsolidaire/voisin/pkg/db"
)

// getProfile returns the caller's profile.
// GET /api/me/profile
func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.backend(r).GetProfile(r.Context(), Claims(r.Context()).UserID())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// updateProfile replaces the caller's editable profile fields and returns the
// stored profile.
// PUT /api/me/profile
func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	var profile db.Profile
	if err := decodeJSON(r, &profile); err != nil {
		writeError(w, err)
		return
	}
	profile.ID = Claims(r.Context()).UserID()

	backend := s.backend(r)
	if err := services.UpdateProfile(r.Context(), backend, s.logger, &profile); err != nil {
		writeError(w, err)
		return
	}

	saved, err := backend.GetProfile(r.Context(), profile.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}
