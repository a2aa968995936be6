package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tripmesh/tripmesh/internal/metrics"
)

// RouterDeps bundles the handlers and middleware dependencies the router
// wires together.
type RouterDeps struct {
	Discovery    *DiscoveryHandler
	Negotiation  *NegotiationHandler
	Coordination *CoordinationHandler
	Health       *HealthHandler
	Collector    *metrics.Collector
	Gatherer     prometheus.Gatherer
	Logger       *zap.Logger
}

// NewRouter assembles the full HTTP API with request-ID, logging, and
// metrics middleware applied to every route.
func NewRouter(deps RouterDeps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/agents", deps.Discovery.HandleRegisterAgent)
	mux.HandleFunc("DELETE /api/agents", deps.Discovery.HandleRemoveAgent)
	mux.HandleFunc("GET /api/agents", deps.Discovery.HandleListAgents)
	mux.HandleFunc("POST /api/discover-agents", deps.Discovery.HandleDiscoverAgents)
	mux.HandleFunc("POST /api/test-agent", deps.Discovery.HandleTestAgent)
	mux.HandleFunc("GET /api/ecosystem-status", deps.Discovery.HandleEcosystemStatus)

	mux.HandleFunc("POST /api/negotiate-budget", deps.Negotiation.HandleNegotiateBudget)

	mux.HandleFunc("POST /api/coordinate", deps.Coordination.HandleCoordinate)
	mux.HandleFunc("GET /api/task-types", deps.Coordination.HandleTaskTypes)

	mux.HandleFunc("GET /health", deps.Health.HandleHealth)
	mux.HandleFunc("GET /ready", deps.Health.HandleReady)
	mux.HandleFunc("GET /version", deps.Health.HandleVersion)

	if deps.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var handler http.Handler = mux
	if deps.Collector != nil {
		handler = Metrics(deps.Collector)(handler)
	}
	handler = Logging(logger)(handler)
	handler = RequestID(handler)
	return handler
}
