package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/tripmesh/tripmesh/discovery"
	"github.com/tripmesh/tripmesh/types"
)

// DiscoveryHandler serves agent registration, discovery cycles, and
// capability lookups.
type DiscoveryHandler struct {
	registry *discovery.Registry
	service  *discovery.Service
	logger   *zap.Logger
}

// NewDiscoveryHandler creates the discovery handler.
func NewDiscoveryHandler(registry *discovery.Registry, service *discovery.Service, logger *zap.Logger) *DiscoveryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DiscoveryHandler{
		registry: registry,
		service:  service,
		logger:   logger.With(zap.String("component", "discovery_handler")),
	}
}

// RegisterAgentRequest is the body of POST /api/agents.
type RegisterAgentRequest struct {
	AgentID      string                 `json:"agent_id"`
	Name         string                 `json:"name"`
	Endpoint     string                 `json:"endpoint"`
	Capabilities []discovery.Capability `json:"capabilities,omitempty"`
}

// HandleRegisterAgent registers an agent endpoint. The agent's advertised
// capabilities and status are refreshed on the next probe.
func (h *DiscoveryHandler) HandleRegisterAgent(w http.ResponseWriter, r *http.Request) {
	var req RegisterAgentRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	record := &discovery.AgentRecord{
		AgentID:      req.AgentID,
		Name:         req.Name,
		Endpoint:     req.Endpoint,
		Capabilities: req.Capabilities,
	}
	if err := h.registry.Register(r.Context(), record); err != nil {
		WriteErrorFrom(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, map[string]string{"agent_id": req.AgentID})
}

// HandleRemoveAgent removes an agent by ID, taken from the "agent_id"
// query parameter.
func (h *DiscoveryHandler) HandleRemoveAgent(w http.ResponseWriter, r *http.Request) {
	agentID := r.URL.Query().Get("agent_id")
	if agentID == "" {
		WriteError(w, r, types.NewError(types.ErrValidation, "agent_id query parameter is required"), h.logger)
		return
	}
	if err := h.registry.Remove(r.Context(), agentID); err != nil {
		WriteErrorFrom(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, map[string]string{"agent_id": agentID})
}

// HandleDiscoverAgents runs an on-demand discovery cycle and returns the
// resulting ecosystem snapshot.
func (h *DiscoveryHandler) HandleDiscoverAgents(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.service.Discover(r.Context())
	if err != nil {
		WriteErrorFrom(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, snapshot)
}

// HandleListAgents lists registered agents. With a "capability" query
// parameter only agents advertising that tag are returned, ordered by
// ascending probe latency.
func (h *DiscoveryHandler) HandleListAgents(w http.ResponseWriter, r *http.Request) {
	if tag := r.URL.Query().Get("capability"); tag != "" {
		agents, err := h.service.FindByCapability(r.Context(), discovery.Capability(tag))
		if err != nil {
			WriteErrorFrom(w, r, err, h.logger)
			return
		}
		WriteSuccess(w, r, agents)
		return
	}

	snapshot, err := h.service.Snapshot(r.Context())
	if err != nil {
		WriteErrorFrom(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, snapshot.ActiveAgents)
}

// HandleTestAgent probes a single agent on demand, outside the refresh
// cycle, and returns the connectivity report.
func (h *DiscoveryHandler) HandleTestAgent(w http.ResponseWriter, r *http.Request) {
	agentID := r.URL.Query().Get("agent_id")
	if agentID == "" {
		WriteError(w, r, types.NewError(types.ErrValidation, "agent_id query parameter is required"), h.logger)
		return
	}
	report, err := h.service.TestAgent(r.Context(), agentID)
	if err != nil {
		WriteErrorFrom(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, report)
}

// HandleEcosystemStatus returns the extended operator status report.
func (h *DiscoveryHandler) HandleEcosystemStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.Status(r.Context())
	if err != nil {
		WriteErrorFrom(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, status)
}
