package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kinshipapp/gatekeeper/pkg/csrf"
	"github.com/kinshipapp/gatekeeper/pkg/identity"
	"github.com/kinshipapp/gatekeeper/pkg/middleware"
	"github.com/kinshipapp/gatekeeper/pkg/observability"
	"github.com/kinshipapp/gatekeeper/pkg/ratelimit"
)

// Server exposes guarded RPC endpoints
type Server struct {
	router   *mux.Router
	composer *middleware.Composer
	issuer   *csrf.Issuer
	logger   *observability.Logger
}

// NewServer creates the API server and registers the built-in token
// issuance endpoints.
func NewServer(composer *middleware.Composer, issuer *csrf.Issuer, logger *observability.Logger) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		composer: composer,
		issuer:   issuer,
		logger:   logger,
	}
	s.registerTokenEndpoints()
	return s
}

// Router returns the underlying router for the HTTP server
func (s *Server) Router() *mux.Router {
	return s.router
}

// Handle registers a guarded RPC endpoint under /rpc/<name>
func (s *Server) Handle(cfg middleware.EndpointConfig, handler http.Handler) {
	s.router.Handle("/rpc/"+cfg.Name, s.composer.Wrap(cfg, handler)).Methods(http.MethodPost)
}

func (s *Server) registerTokenEndpoints() {
	s.Handle(middleware.EndpointConfig{
		Name:      "issueSessionToken",
		AuthLevel: identity.LevelNone,
		RateLimit: &ratelimit.Config{
			Category:      ratelimit.CategoryAuth,
			MaxRequests:   10,
			WindowSeconds: 300,
		},
	}, http.HandlerFunc(s.handleIssueSessionToken))

	s.Handle(middleware.EndpointConfig{
		Name:      "issueAuthenticatedToken",
		AuthLevel: identity.LevelAuth,
		RateLimit: &ratelimit.Config{
			Category:      ratelimit.CategoryAuth,
			MaxRequests:   10,
			WindowSeconds: 300,
		},
	}, http.HandlerFunc(s.handleIssueAuthenticatedToken))
}

// HealthRouter builds the router for the health/metrics port
func HealthRouter(health *observability.HealthChecker, registry *prometheus.Registry) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", health.Liveness).Methods(http.MethodGet)
	router.HandleFunc("/readyz", health.Readiness).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler(registry)).Methods(http.MethodGet)
	return router
}
