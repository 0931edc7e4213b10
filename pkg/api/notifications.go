package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/voisinsolidaire/voisin/pkg/core/notifications"
	"github.com/voisinsolidaire/voisin/pkg/db"
)

type inboxResponse struct {
	Notifications []db.Notification `json:"notifications"`
	UnreadCount   int               `json:"unread_count"`
}

func newInboxResponse(inbox *notifications.Inbox) inboxResponse {
	items := inbox.Items()
	if items == nil {
		items = []db.Notification{}
	}
	return inboxResponse{Notifications: items, UnreadCount: inbox.UnreadCount()}
}

// loadInbox fetches the caller's notifications
func (s *Server) loadInbox(r *http.Request) (*notifications.Inbox, error) {
	inbox := notifications.NewInbox(s.backend(r), s.logger, Claims(r.Context()).UserID())
	if err := inbox.Load(r.Context()); err != nil {
		return nil, err
	}
	return inbox, nil
}

// listNotifications returns the caller's notifications, newest first.
// GET /api/notifications
func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	inbox, err := s.loadInbox(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newInboxResponse(inbox))
}

// markRead flags one of the caller's notifications as read.
// POST /api/notifications/{id}/read
func (s *Server) markRead(w http.ResponseWriter, r *http.Request) {
	inbox, err := s.loadInbox(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := inbox.MarkRead(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newInboxResponse(inbox))
}

// markAllRead flags every notification of the caller as read.
// POST /api/notifications/read-all
func (s *Server) markAllRead(w http.ResponseWriter, r *http.Request) {
	inbox, err := s.loadInbox(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := inbox.MarkAllRead(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newInboxResponse(inbox))
}
