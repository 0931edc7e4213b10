package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/voisinsolidaire/voisin/pkg/core/registration"
	"github.com/voisinsolidaire/voisin/pkg/core/services"
	"github.com/voisinsolidaire/voisin/pkg/db"
)

func newID() string {
	return uuid.New().String()
}

type registrationResponse struct {
	Registration *db.MissionRegistration `json:"registration"`
	Mission      *db.Mission             `json:"mission,omitempty"`
	Actions      []registration.Action   `json:"actions"`
}

func newRegistrationResponse(reg *db.MissionRegistration, mission *db.Mission) registrationResponse {
	return registrationResponse{
		Registration: reg,
		Mission:      mission,
		Actions:      registration.AvailableActions(reg),
	}
}

// register signs the caller up.
// POST /api/missions/{id}/registrations
func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	mission, reg, err := services.RegisterVolunteer(r.Context(), s.backend(r), s.logger,
		chi.URLParam(r, "id"), Claims(r.Context()).UserID())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newRegistrationResponse(reg, mission))
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// cancelRegistration withdraws the caller. The body is optional.
// DELETE /api/missions/{id}/registrations
func (s *Server) cancelRegistration(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, err)
		return
	}

	mission, reg, err := services.CancelRegistration(r.Context(), s.backend(r), s.logger,
		chi.URLParam(r, "id"), Claims(r.Context()).UserID(), req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newRegistrationResponse(reg, mission))
}

type feedbackRequest struct {
	Comment string `json:"comment"`
	Rating  int    `json:"rating"`
}

// leaveFeedback rates a completed mission.
// POST /api/missions/{id}/feedback
func (s *Server) leaveFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	reg, err := services.LeaveFeedback(r.Context(), s.backend(r), s.logger,
		chi.URLParam(r, "id"), Claims(r.Context()).UserID(),
		services.Feedback{Comment: req.Comment, Rating: req.Rating})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newRegistrationResponse(reg, nil))
}

// myRegistrations lists the caller's registrations with their missions.
// GET /api/me/registrations
func (s *Server) myRegistrations(w http.ResponseWriter, r *http.Request) {
	views, err := services.ListUserRegistrations(r.Context(), s.backend(r), s.logger, Claims(r.Context()).UserID())
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]registrationResponse, len(views))
	for i := range views {
		out[i] = registrationResponse{
			Registration: &views[i].Registration,
			Mission:      views[i].Mission,
			Actions:      views[i].Actions,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"registrations": out})
}

// missionRegistrations lists a mission's registrations for its association.
// GET /api/missions/{id}/registrations
func (s *Server) missionRegistrations(w http.ResponseWriter, r *http.Request) {
	backend := s.backend(r)
	if err := s.requireOwner(r, backend); err != nil {
		writeError(w, err)
		return
	}

	regs, err := backend.ListMissionRegistrations(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if regs == nil {
		regs = []db.MissionRegistration{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"registrations": regs})
}

type confirmRequest struct {
	UserIDs []string `json:"user_ids"`
}

type failedItem struct {
	ID    string `json:"id"`
	Error string `json:"error"`
	Code  string `json:"code"`
}

type confirmResponse struct {
	Confirmed    []db.MissionRegistration `json:"confirmed"`
	Failed       []failedItem             `json:"failed"`
	EmailsSent   int                      `json:"emails_sent"`
	EmailsFailed []failedItem             `json:"emails_failed,omitempty"`
}

// confirmVolunteers confirms pending volunteers, emailing them when a mailer is configured.
// POST /api/missions/{id}/confirm
func (s *Server) confirmVolunteers(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	backend := s.backend(r)
	if err := s.requireOwner(r, backend); err != nil {
		writeError(w, err)
		return
	}

	result, err := services.ConfirmVolunteers(r.Context(), backend, backend, s.mailer, s.logger,
		chi.URLParam(r, "id"), req.UserIDs)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := confirmResponse{
		Confirmed: result.Confirmed,
		Failed:    []failedItem{},
	}
	if resp.Confirmed == nil {
		resp.Confirmed = []db.MissionRegistration{}
	}
	for _, f := range result.Failed {
		resp.Failed = append(resp.Failed, failedItem{
			ID:    f.UserID,
			Error: services.UserMessage(f.Error),
			Code:  services.ErrorCode(f.Error),
		})
	}
	if result.Emails != nil {
		resp.EmailsSent = len(result.Emails.Sent)
		for _, f := range result.Emails.Failed {
			resp.EmailsFailed = append(resp.EmailsFailed, failedItem{
				ID:    f.UserID,
				Error: f.Error,
				Code:  "email_failed",
			})
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// completeMission closes a mission and completes confirmed registrations.
// POST /api/missions/{id}/complete
func (s *Server) completeMission(w http.ResponseWriter, r *http.Request) {
	backend := s.backend(r)
	if err := s.requireOwner(r, backend); err != nil {
		writeError(w, err)
		return
	}

	mission, regs, err := services.CompleteMission(r.Context(), backend, s.logger, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if regs == nil {
		regs = []db.MissionRegistration{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"mission": mission, "completed": regs})
}

// exportRoster writes the mission roster to the configured sheet.
// POST /api/missions/{id}/roster
func (s *Server) exportRoster(w http.ResponseWriter, r *http.Request) {
	if s.publisher == nil {
		writeJSON(w, http.StatusNotImplemented, errorResponse{
			Error: "L'export vers Google Sheets n'est pas configuré.",
			Code:  "roster_disabled",
		})
		return
	}

	backend := s.backend(r)
	if err := s.requireOwner(r, backend); err != nil {
		writeError(w, err)
		return
	}

	roster, err := services.ExportRoster(r.Context(), backend, backend, s.publisher, s.cfg, s.logger, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, roster)
}
