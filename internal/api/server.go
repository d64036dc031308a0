// Package api provides the HTTP server for the Shelfline GraphQL API.
package api

import (
	"encoding/json/v2"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	gql "github.com/shelflineapp/shelfline-server/internal/graphql"
	"github.com/shelflineapp/shelfline-server/internal/store"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	store   *store.Store
	graphql *gql.Handler
	router  *chi.Mux
	logger  *slog.Logger
	name    string
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(st *store.Store, graphqlHandler *gql.Handler, name string, logger *slog.Logger) *Server {
	s := &Server{
		store:   st,
		graphql: graphqlHandler,
		router:  chi.NewRouter(),
		logger:  logger,
		name:    name,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupMiddleware configures the middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))

	// GraphQL clients run in browsers; auth rides in the Authorization header,
	// so credentials stay off and any origin is fine.
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealthCheck)

	// Single GraphQL endpoint; subscription clients connect here with a
	// websocket upgrade.
	s.router.Handle("/graphql", s.graphql)
}

// handleHealthCheck returns server health status with catalog counts.
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	books, err := s.store.Books.Count(r.Context())
	if err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unhealthy",
		})
		return
	}

	authors, _ := s.store.Authors.Count(r.Context())

	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"name":    s.name,
		"books":   books,
		"authors": authors,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.MarshalWrite(w, body); err != nil && s.logger != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}
