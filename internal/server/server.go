// Package server provides HTTP server setup, routing, and middleware.
package server

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"blogapi/internal/apperr"
	"blogapi/internal/auth"
	"blogapi/internal/config"
	"blogapi/internal/health"
	"blogapi/internal/logging"
)

// Deps are the optional collaborators of the server.
type Deps struct {
	// DB is pinged by /ready; nil when no database is configured.
	DB health.Pinger

	// Sessions verifies session tokens; nil leaves every request anonymous.
	Sessions *auth.Verifier
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	cfg    *config.Config
	logs   *logging.Service
	errs   *ErrorResponder
	health *health.Handler
	deps   Deps
	router chi.Router
	srv    *http.Server
}

// New creates a new Server with all routes configured.
func New(cfg *config.Config, logs *logging.Service, deps Deps) *Server {
	s := &Server{
		cfg:    cfg,
		logs:   logs,
		errs:   NewErrorResponder(logs),
		health: &health.Handler{DB: deps.DB},
		deps:   deps,
	}
	s.router = s.buildRouter()
	s.srv = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

// buildRouter configures the middleware chain and routes. The error
// responder sits behind every route, including the fallbacks.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(RequestID)
	if s.cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(RequestLogger(s.logs))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{RequestIDHeader},
	}))
	r.Use(auth.WithSession(s.deps.Sessions))
	r.Use(middleware.GetHead)

	r.Method(http.MethodGet, "/health", s.errs.Handle(s.health.Liveness))
	r.Method(http.MethodGet, "/ready", s.errs.Handle(s.health.Readiness))

	r.NotFound(s.errs.Handle(notFound).ServeHTTP)
	r.MethodNotAllowed(s.errs.Handle(s.methodNotAllowed).ServeHTTP)

	return r
}

var routeMethods = []string{
	http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
	http.MethodPatch, http.MethodDelete, http.MethodOptions,
}

// methodNotAllowed lists the methods the path does answer in Allow. GET
// routes also answer HEAD through middleware.GetHead.
func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) error {
	var allowed []string
	for _, m := range routeMethods {
		if s.router.Match(chi.NewRouteContext(), m, r.URL.Path) {
			allowed = append(allowed, m)
			if m == http.MethodGet && !slices.Contains(allowed, http.MethodHead) {
				allowed = append(allowed, http.MethodHead)
			}
		}
	}
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	return apperr.New(http.StatusMethodNotAllowed, "Method Not Allowed - "+r.Method+" "+r.URL.Path)
}

// Handler returns the HTTP handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	s.logs.Info().
		Str("listen_addr", s.srv.Addr).
		Str("env", s.cfg.Env).
		Bool("database", s.deps.DB != nil).
		Bool("sessions", s.deps.Sessions != nil).
		Msg("Starting server")

	return s.srv.ListenAndServe()
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
