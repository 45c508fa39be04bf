// Package api exposes puzzle sessions, layout verification and the
// leaderboard over HTTP and WebSocket.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MJE43/lightgrid/internal/layout"
	"github.com/MJE43/lightgrid/internal/puzzle"
	"github.com/MJE43/lightgrid/internal/store"
)

// TokenVerifier checks an admin token
type TokenVerifier interface {
	Verify(presented string) bool
}

// Options configures a Server. Zero values select the defaults.
type Options struct {
	Tokens         TokenVerifier
	AllowedOrigins []string
	RequestTimeout time.Duration
	AutoplayBudget int
	// Lookup resolves layout sources for verification. Defaults to layout.Get.
	Lookup func(id string) (layout.Source, bool)
	// Sources lists the registered layout sources. Defaults to layout.List.
	Sources func() []layout.Spec
	Logger  *log.Logger
}

// Server handles HTTP requests
type Server struct {
	db             store.DB
	manager        *puzzle.Manager
	tokens         TokenVerifier
	lookup         func(id string) (layout.Source, bool)
	sources        func() []layout.Spec
	errorHandler   *ErrorHandler
	logger         *log.Logger
	securityLogger *SecurityLogger
	requestTimeout time.Duration
	autoplayBudget int
	allowedOrigins []string
	anyOrigin      bool
	startTime      time.Time
}

// NewServer creates a new API server
func NewServer(db store.DB, manager *puzzle.Manager, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[API] ", log.LstdFlags|log.Lshortfile)
	}
	securityLogger := NewSecurityLogger()

	s := &Server{
		db:             db,
		manager:        manager,
		tokens:         opts.Tokens,
		lookup:         opts.Lookup,
		sources:        opts.Sources,
		errorHandler:   NewErrorHandler(logger, securityLogger),
		logger:         logger,
		securityLogger: securityLogger,
		requestTimeout: opts.RequestTimeout,
		autoplayBudget: opts.AutoplayBudget,
		allowedOrigins: opts.AllowedOrigins,
		startTime:      time.Now(),
	}
	if s.lookup == nil {
		s.lookup = layout.Get
	}
	if s.sources == nil {
		s.sources = layout.List
	}
	if s.requestTimeout <= 0 {
		s.requestTimeout = 30 * time.Second
	}
	for _, o := range s.allowedOrigins {
		if o == "*" {
			s.anyOrigin = true
		}
	}
	return s
}

// SecurityLogger exposes the audit logger for startup and shutdown lines
func (s *Server) SecurityLogger() *SecurityLogger { return s.securityLogger }

// Routes sets up the HTTP routes with proper middleware
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.SecurityLoggingMiddleware)
	r.Use(s.errorHandler.RecoveryHandler)
	r.Use(s.CORSMiddleware)

	r.Get("/health", s.handleHealthCheck)
	r.Get("/health/ready", s.handleReadiness)
	r.Get("/health/live", s.handleLiveness)

	r.Route("/api/v1", func(r chi.Router) {
		// Sockets outlive the request timeout.
		r.Get("/sessions/{id}/ws", s.handleSessionSocket)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.requestTimeout))

			r.Get("/games", s.handleListGames)
			r.Get("/levels", s.handleListLevels)
			r.Post("/verify", s.handleVerify)

			r.Post("/sessions", s.handleCreateSession)
			r.Get("/sessions/{id}", s.handleGetSession)
			r.Post("/sessions/{id}/rotate", s.handleRotate)
			r.Post("/sessions/{id}/expire", s.handleExpire)
			r.Post("/sessions/{id}/reset", s.handleReset)
			r.Post("/sessions/{id}/autoplay", s.handleAutoplay)

			r.Get("/leaderboard", s.handleLeaderboard)
			r.With(s.AdminOnly).Delete("/leaderboard", s.handleClearLeaderboard)
			r.Get("/results/{id}", s.handleGetResult)
		})
	})

	return r
}

// writeJSON writes a JSON response with proper headers
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Engine-Version", EngineVersion)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Printf("response_encode_failed status=%d err=%v", status, err)
	}
}
