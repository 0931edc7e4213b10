package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/voisinsolidaire/voisin/internal/config"
	"github.com/voisinsolidaire/voisin/pkg/core/services"
	"github.com/voisinsolidaire/voisin/pkg/db"
)

const (
	requestTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

// BackendFunc returns the backend to use for a request made with accessToken.
// The PostgREST backend scopes each request to the caller's token.
type BackendFunc func(accessToken string) db.Backend

// Server serves the JSON API
type Server struct {
	cfg        *config.Config
	backendFor BackendFunc
	mailer     services.EmailSender
	publisher  services.RosterPublisher
	logger     *zap.Logger
	now        func() time.Time
}

// Option customises a Server
type Option func(*Server)

// WithMailer enables confirmation emails
func WithMailer(m services.EmailSender) Option {
	return func(s *Server) { s.mailer = m }
}

// WithRosterPublisher enables roster export
func WithRosterPublisher(p services.RosterPublisher) Option {
	return func(s *Server) { s.publisher = p }
}

// WithClock overrides the time source used by the explorer filters
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer creates a server
func NewServer(cfg *config.Config, backendFor BackendFunc, logger *zap.Logger, opts ...Option) *Server {
	s := &Server{
		cfg:        cfg,
		backendFor: backendFor,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes builds the router
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(Authenticate(s.cfg.JWTSecret, s.cfg.BackendVerifiesTokens()))

		r.Get("/missions", s.listMissions)
		r.Get("/missions/nearby", s.nearbyMissions)
		r.Get("/missions/{id}", s.getMission)

		r.Group(func(r chi.Router) {
			r.Use(RequireUser)

			r.Post("/missions/{id}/registrations", s.register)
			r.Delete("/missions/{id}/registrations", s.cancelRegistration)
			r.Post("/missions/{id}/feedback", s.leaveFeedback)

			r.Get("/me/profile", s.getProfile)
			r.Put("/me/profile", s.updateProfile)
			r.Get("/me/registrations", s.myRegistrations)

			r.Get("/notifications", s.listNotifications)
			r.Post("/notifications/read-all", s.markAllRead)
			r.Post("/notifications/{id}/read", s.markRead)
		})

		r.Group(func(r chi.Router) {
			r.Use(RequireAssociation)

			r.Post("/missions", s.createMission)
			r.Post("/missions/{id}/publish", s.publishMission)
			r.Post("/missions/{id}/cancel", s.cancelMission)
			r.Get("/missions/{id}/registrations", s.missionRegistrations)
			r.Post("/missions/{id}/confirm", s.confirmVolunteers)
			r.Post("/missions/{id}/complete", s.completeMission)
			r.Post("/missions/{id}/roster", s.exportRoster)
		})
	})

	return r
}

// backend returns the backend scoped to the request's caller
func (s *Server) backend(r *http.Request) db.Backend {
	return s.backendFor(AccessToken(r.Context()))
}

// Run serves on the configured address until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: requestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
