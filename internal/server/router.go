package server

import (
	"net/http"

	"github.com/agentstation/statuspage/internal/server/handlers"
	"github.com/agentstation/statuspage/internal/server/middleware"
)

// setupRouter creates the HTTP handler with routes and middleware.
func (s *Server) setupRouter() http.Handler {
	mux := http.NewServeMux()

	h := handlers.New(
		s.store,
		s.hub,
		s.bridge,
		s.cache,
		s.upgrader,
		s.logger,
	)

	s.registerRoutes(mux, h)

	return s.applyMiddleware(mux)
}

// registerRoutes registers all HTTP routes.
func (s *Server) registerRoutes(mux *http.ServeMux, h *handlers.Handlers) {
	// Favicon handler (return 204 No Content to avoid 404 logs)
	mux.HandleFunc("GET /favicon.ico", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// Public health endpoints (no auth required)
	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("GET /api/health", h.HandleHealth)
	mux.HandleFunc("GET /api/ready", h.HandleReady)
	mux.HandleFunc("GET /api/stats", h.HandleStats)

	// Public status page
	mux.HandleFunc("GET /api/public/status", h.HandlePublicStatus)

	// Organizations
	mux.HandleFunc("GET /api/organizations", h.HandleListOrganizations)
	mux.HandleFunc("POST /api/organizations", h.HandleCreateOrganization)

	// Services
	mux.HandleFunc("GET /api/services", h.HandleListServices)
	mux.HandleFunc("POST /api/services", h.HandleCreateService)
	mux.HandleFunc("GET /api/services/{id}", h.HandleGetService)
	mux.HandleFunc("PUT /api/services/{id}", h.HandleUpdateService)
	mux.HandleFunc("DELETE /api/services/{id}", h.HandleDeleteService)

	// Incidents
	mux.HandleFunc("GET /api/incidents", h.HandleListIncidents)
	mux.HandleFunc("POST /api/incidents", h.HandleCreateIncident)
	mux.HandleFunc("GET /api/incidents/{id}", h.HandleGetIncident)
	mux.HandleFunc("PUT /api/incidents/{id}", h.HandleUpdateIncident)
	mux.HandleFunc("DELETE /api/incidents/{id}", h.HandleDeleteIncident)
	mux.HandleFunc("POST /api/incidents/{id}/updates", h.HandleAddIncidentUpdate)

	// Maintenance
	mux.HandleFunc("GET /api/maintenance", h.HandleListMaintenance)
	mux.HandleFunc("POST /api/maintenance", h.HandleCreateMaintenance)
	mux.HandleFunc("GET /api/maintenance/{id}", h.HandleGetMaintenance)
	mux.HandleFunc("PUT /api/maintenance/{id}", h.HandleUpdateMaintenance)
	mux.HandleFunc("DELETE /api/maintenance/{id}", h.HandleDeleteMaintenance)

	// Teams and members
	mux.HandleFunc("GET /api/teams", h.HandleListTeams)
	mux.HandleFunc("POST /api/teams", h.HandleCreateTeam)
	mux.HandleFunc("PUT /api/teams/{teamId}", h.HandleUpdateTeam)
	mux.HandleFunc("DELETE /api/teams/{teamId}", h.HandleDeleteTeam)
	mux.HandleFunc("POST /api/teams/{teamId}/members", h.HandleAddMember)
	mux.HandleFunc("PUT /api/teams/{teamId}/members/{memberId}", h.HandleUpdateMemberRole)
	mux.HandleFunc("PATCH /api/teams/{teamId}/members/{memberId}", h.HandleMemberAction)
	mux.HandleFunc("DELETE /api/teams/{teamId}/members/{memberId}", h.HandleRemoveMember)

	// Real-time endpoints
	mux.HandleFunc("GET "+s.config.WSPath, h.HandleWebSocket)
	mux.HandleFunc("GET "+s.config.WSPath+"/stream", h.HandleSSE)
}

// applyMiddleware wraps handler with middleware chain.
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	cfg := s.config

	// Rate limiting (if enabled)
	if cfg.RateLimit > 0 {
		rateLimiter := middleware.NewRateLimiter(cfg.RateLimit, s.logger)
		handler = middleware.RateLimit(rateLimiter)(handler)
	}

	// Authentication (if enabled)
	if cfg.AuthEnabled {
		authConfig := middleware.DefaultAuthConfig()
		authConfig.Enabled = true
		authConfig.HeaderName = cfg.AuthHeader
		authConfig.PublicPaths = append(authConfig.PublicPaths, cfg.WSPath, cfg.WSPath+"/stream")
		handler = middleware.Auth(authConfig, s.logger)(handler)
	}

	// CORS (enabled explicitly or implied by an origin list)
	if cfg.CORSEnabled || len(cfg.CORSOrigins) > 0 {
		corsConfig := middleware.DefaultCORSConfig()
		if len(cfg.CORSOrigins) > 0 {
			corsConfig.AllowedOrigins = cfg.CORSOrigins
			corsConfig.AllowAll = false
		} else {
			corsConfig.AllowAll = true
		}
		handler = middleware.CORS(corsConfig)(handler)
	}

	// Logging and recovery (always enabled)
	handler = middleware.Logger(s.logger)(handler)
	handler = middleware.Recovery(s.logger)(handler)

	return handler
}
