package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/voisinsolidaire/voisin/pkg/core/discovery"
	"github.com/voisinsolidaire/voisin/pkg/core/services"
	"github.com/voisinsolidaire/voisin/pkg/db"
)

// queryParams reads typed query parameters, keeping the first parse error
type queryParams struct {
	values url.Values
	err    error
}

func (p *queryParams) str(key string) string {
	return p.values.Get(key)
}

func (p *queryParams) int(key string) int {
	raw := p.values.Get(key)
	if raw == "" || p.err != nil {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.err = fmt.Errorf("invalid %s %q: %w", key, raw, db.ErrValidation)
	}
	return v
}

func (p *queryParams) float(key string) float64 {
	raw := p.values.Get(key)
	if raw == "" || p.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.err = fmt.Errorf("invalid %s %q: %w", key, raw, db.ErrValidation)
	}
	return v
}

func (p *queryParams) bool(key string) bool {
	raw := p.values.Get(key)
	if raw == "" || p.err != nil {
		return false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.err = fmt.Errorf("invalid %s %q: %w", key, raw, db.ErrValidation)
	}
	return v
}

type missionsResponse struct {
	Missions []db.Mission `json:"missions"`
	Page     int          `json:"page"`
	HasMore  bool         `json:"has_more"`
}

// listMissions serves the explorer: one backend page filtered locally.
// GET /api/missions
func (s *Server) listMissions(w http.ResponseWriter, r *http.Request) {
	p := &queryParams{values: r.URL.Query()}
	q := db.MissionQuery{
		Category:      p.str("category"),
		DateFrom:      p.str("date_from"),
		DateTo:        p.str("date_to"),
		AssociationID: p.str("association_id"),
		Page:          p.int("page"),
		PageSize:      s.cfg.PageSize,
	}
	criteria := discovery.Criteria{
		Query:       p.str("q"),
		Category:    p.str("category"),
		DurationMax: p.int("duration"),
		UrgencyOnly: p.bool("urgent"),
		DistanceMax: p.float("distance"),
	}
	if p.err != nil {
		writeError(w, p.err)
		return
	}

	availability, err := discovery.ParseAvailability(p.str("availability"))
	if err != nil {
		writeError(w, fmt.Errorf("%w: %w", db.ErrValidation, err))
		return
	}
	criteria.Availability = availability

	backend := s.backend(r)
	viewer := s.viewerProfile(r, backend)

	result, err := services.SearchMissions(r.Context(), backend, s.logger, q, criteria, viewer, s.now().In(s.cfg.Location()))
	if err != nil {
		writeError(w, err)
		return
	}

	missions := result.Missions
	if missions == nil {
		missions = []db.Mission{}
	}
	writeJSON(w, http.StatusOK, missionsResponse{
		Missions: missions,
		Page:     result.Page,
		HasMore:  result.Fetched == s.cfg.PageSize,
	})
}

// viewerProfile returns the caller's profile for distance annotation, or nil
func (s *Server) viewerProfile(r *http.Request, backend db.Backend) *db.Profile {
	claims := Claims(r.Context())
	if claims == nil {
		return nil
	}
	profile, err := backend.GetProfile(r.Context(), claims.UserID())
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			s.logger.Warn("Failed to load viewer profile", zap.String("user_id", claims.UserID()), zap.Error(err))
		}
		return nil
	}
	return profile
}

// nearbyMissions runs a geospatial search.
// GET /api/missions/nearby?lat=&lon=&distance=
func (s *Server) nearbyMissions(w http.ResponseWriter, r *http.Request) {
	p := &queryParams{values: r.URL.Query()}
	q := db.NearbyQuery{
		Lat:         p.float("lat"),
		Lon:         p.float("lon"),
		DistanceKm:  p.float("distance"),
		Category:    p.str("category"),
		DateFrom:    p.str("date_from"),
		DateTo:      p.str("date_to"),
		DurationMax: p.int("duration_max"),
		Language:    p.str("language"),
	}
	if p.err != nil {
		writeError(w, p.err)
		return
	}

	missions, err := services.NearbyMissions(r.Context(), s.backend(r), s.logger, q)
	if err != nil {
		writeError(w, err)
		return
	}
	if missions == nil {
		missions = []db.Mission{}
	}
	writeJSON(w, http.StatusOK, missionsResponse{Missions: missions})
}

// getMission returns one mission.
// GET /api/missions/{id}
func (s *Server) getMission(w http.ResponseWriter, r *http.Request) {
	mission, err := s.backend(r).GetMission(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mission)
}

// createMission stores a draft posted by the calling association.
// POST /api/missions
func (s *Server) createMission(w http.ResponseWriter, r *http.Request) {
	var mission db.Mission
	if err := decodeJSON(r, &mission); err != nil {
		writeError(w, err)
		return
	}
	mission.AssociationID = Claims(r.Context()).UserID()
	if mission.ID == "" {
		mission.ID = newID()
	}

	if err := services.SaveDraft(r.Context(), s.backend(r), s.logger, &mission); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, mission)
}

// publishMission publishes a draft.
// POST /api/missions/{id}/publish
func (s *Server) publishMission(w http.ResponseWriter, r *http.Request) {
	s.setMissionStatus(w, r, db.MissionPublished)
}

// cancelMission withdraws a draft or published mission.
// POST /api/missions/{id}/cancel
func (s *Server) cancelMission(w http.ResponseWriter, r *http.Request) {
	s.setMissionStatus(w, r, db.MissionCancelled)
}

func (s *Server) setMissionStatus(w http.ResponseWriter, r *http.Request, status db.MissionStatus) {
	backend := s.backend(r)
	if err := s.requireOwner(r, backend); err != nil {
		writeError(w, err)
		return
	}

	mission, err := services.SetMissionStatus(r.Context(), backend, s.logger, chi.URLParam(r, "id"), status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mission)
}

// requireOwner checks that the calling association posted the mission
func (s *Server) requireOwner(r *http.Request, backend db.Backend) error {
	mission, err := backend.GetMission(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	if mission.AssociationID != Claims(r.Context()).UserID() {
		return fmt.Errorf("mission %s belongs to another association: %w", mission.ID, db.ErrUnauthorized)
	}
	return nil
}
