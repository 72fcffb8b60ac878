package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vKaizen/graduation-backend/pkg/goals"
	"github.com/vKaizen/graduation-backend/pkg/httputil"
	"github.com/vKaizen/graduation-backend/pkg/observability"
	"github.com/vKaizen/graduation-backend/pkg/sections"
	"github.com/vKaizen/graduation-backend/pkg/workspaces"
)

// Server represents the workspace API server
type Server struct {
	router  *mux.Router
	logger  *observability.Logger
	metrics *observability.Metrics

	workspaceHandlers *WorkspaceHandlers
	sectionHandlers   *SectionHandlers
	goalHandlers      *GoalHandlers
}

// NewServer creates a new API server wired to the given services
func NewServer(
	workspaceService *workspaces.PostgresService,
	sectionService *sections.PostgresService,
	goalService *goals.PostgresService,
	logger *observability.Logger,
	metrics *observability.Metrics,
) *Server {
	s := &Server{
		router:            mux.NewRouter(),
		logger:            logger,
		metrics:           metrics,
		workspaceHandlers: NewWorkspaceHandlers(workspaceService, metrics),
		sectionHandlers:   NewSectionHandlers(sectionService, metrics),
		goalHandlers:      NewGoalHandlers(goalService),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	if s.metrics != nil {
		s.router.Use(s.instrument)
	}
	s.workspaceHandlers.RegisterRoutes(s.router)
	s.sectionHandlers.RegisterRoutes(s.router)
	s.goalHandlers.RegisterRoutes(s.router)
}

// instrument records request count and duration per route. The route
// template, not the raw URL, labels the series so path parameters do not
// explode cardinality.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				path = tmpl
			}
		}
		s.metrics.InstrumentHandler(path, next).ServeHTTP(w, r)
	})
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// RouteRegistrar is an interface for types that can register routes
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

// RegisterRoutes registers routes from a RouteRegistrar
func (s *Server) RegisterRoutes(registrar RouteRegistrar) {
	registrar.RegisterRoutes(s.router)
}

// Use wraps the router with middleware, outermost first
func (s *Server) Use(middlewares ...httputil.Middleware) http.Handler {
	return httputil.Chain(middlewares...)(s)
}
