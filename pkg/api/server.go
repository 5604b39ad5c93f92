// Package api exposes the scheduling core over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/jakechorley/drop-in-shifts/pkg/core/materializer"
	"github.com/jakechorley/drop-in-shifts/pkg/core/model"
	"github.com/jakechorley/drop-in-shifts/pkg/core/reconciler"
	"github.com/jakechorley/drop-in-shifts/pkg/metrics"
)

// Weeks materializes week views and resolves (template, date) pairs
type Weeks interface {
	MaterializeWeek(ctx context.Context, day time.Time) (*materializer.WeekView, error)
	Resolve(ctx context.Context, templateID int64, date time.Time) (int64, error)
}

// Shifts is the assignment state machine
type Shifts interface {
	Board(ctx context.Context, instanceID int64) (*reconciler.Board, error)
	RequestShift(ctx context.Context, actor model.Profile, instanceID int64) (*reconciler.Result, error)
	JoinShift(ctx context.Context, actor model.Profile, instanceID int64, slot int) (*reconciler.Result, error)
	Approve(ctx context.Context, admin model.Profile, assignmentID int64) (*reconciler.Result, error)
	Deny(ctx context.Context, admin model.Profile, assignmentID int64, reason string) (*reconciler.Result, error)
	AdminAssign(ctx context.Context, admin model.Profile, instanceID int64, volunteerID string, slot int) (*reconciler.Result, error)
	AdminRemove(ctx context.Context, admin model.Profile, assignmentID int64) (*reconciler.Result, error)
	Drop(ctx context.Context, actor model.Profile, assignmentID int64, reason string) (*reconciler.Result, error)
	SetNotes(ctx context.Context, admin model.Profile, assignmentID int64, notes string) (*reconciler.Result, error)
	SavePattern(ctx context.Context, actor model.Profile, in reconciler.PatternInput) (*reconciler.PatternResult, error)
	DeletePattern(ctx context.Context, actor model.Profile, patternID int64) (int, error)
}

// Store covers the reads and self-service writes handlers make directly
type Store interface {
	GetProfile(ctx context.Context, id string) (*model.Profile, error)
	ListPatterns(ctx context.Context, volunteerID string) ([]model.RecurringAssignment, error)
	SetNotificationPreference(ctx context.Context, userID string, pref model.NotificationPreference) error
	SavePushSubscription(ctx context.Context, sub model.PushSubscription) (*model.PushSubscription, error)
	Ping(ctx context.Context) error
}

// Events is the change feed streamed to browsers
type Events interface {
	Subscribe(ctx context.Context) (<-chan model.ChangeEvent, error)
}

// Deps are the collaborators of a Server. Events and Metrics may be nil.
type Deps struct {
	Weeks    Weeks
	Shifts   Shifts
	Store    Store
	Events   Events
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
	Location *time.Location
	// VAPIDPublicKey is handed to browsers so they can subscribe to push
	VAPIDPublicKey string
}

type Server struct {
	deps     Deps
	tokens   *TokenVerifier
	validate *validator.Validate
	logger   *zap.Logger
	mux      *chi.Mux
}

func NewServer(deps Deps, tokens *TokenVerifier) *Server {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	s := &Server{
		deps:     deps,
		tokens:   tokens,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   deps.Logger,
		mux:      chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.Use(s.requestID)
	s.mux.Use(s.recoverer)
	s.mux.Use(s.observe)

	s.mux.Get("/healthz", s.healthz)
	s.mux.Method(http.MethodGet, "/metrics", s.deps.Metrics.Handler())

	s.mux.Group(func(r chi.Router) {
		r.Use(s.auth)

		r.Get("/weeks/{date}", s.getWeek)
		r.Get("/events", s.streamEvents)

		r.Route("/instances", func(r chi.Router) {
			r.Post("/resolve", s.resolveInstance)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/slots", s.getSlots)
				r.Post("/request", s.requestShift)
				r.Post("/join", s.joinShift)
				r.With(s.requireAdmin).Post("/assign", s.assignShift)
			})
		})

		r.Route("/assignments/{id}", func(r chi.Router) {
			r.Post("/drop", s.dropAssignment)
			r.Group(func(r chi.Router) {
				r.Use(s.requireAdmin)
				r.Post("/approve", s.approveAssignment)
				r.Post("/deny", s.denyAssignment)
				r.Post("/remove", s.removeAssignment)
				r.Put("/notes", s.setNotes)
			})
		})

		r.Route("/patterns", func(r chi.Router) {
			r.Get("/", s.listPatterns)
			r.Post("/", s.createPattern)
			r.Delete("/{id}", s.deletePattern)
		})

		r.Route("/me", func(r chi.Router) {
			r.Get("/", s.getMe)
			r.Put("/notification-preference", s.updatePreference)
			r.Post("/push-subscriptions", s.registerSubscription)
		})
	})
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.deps.Store.Ping(ctx); err != nil {
		s.logger.Warn("Health check failed", zap.Error(err))
		s.writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// ServerConfig holds the listener settings for Run
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, cfg ServerConfig) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      s,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", cfg.Addr))
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

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
