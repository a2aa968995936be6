package discovery

import (
	"time"
)

// AgentStatus represents the last-known health of a registered agent.
type AgentStatus string

const (
	// StatusUnknown indicates the agent has been registered but never probed.
	StatusUnknown AgentStatus = "UNKNOWN"
	// StatusHealthy indicates the last probe succeeded.
	StatusHealthy AgentStatus = "HEALTHY"
	// StatusDegraded indicates the agent answered but self-reported reduced capacity.
	StatusDegraded AgentStatus = "DEGRADED"
	// StatusUnreachable indicates the last probe timed out or failed at the
	// transport level. The record is retained: "known but down" is distinct
	// from "never seen".
	StatusUnreachable AgentStatus = "UNREACHABLE"
)

// Capability is a tag identifying a kind of subtask an agent can perform,
// e.g. "hotel_search" or "budget_negotiation".
type Capability string

// Well-known capability tags provided by the specialist agents.
const (
	CapabilityFlightSearch        Capability = "flight_search"
	CapabilityHotelSearch         Capability = "hotel_search"
	CapabilityActivitySearch      Capability = "activity_search"
	CapabilityItineraryGeneration Capability = "itinerary_generation"
	CapabilityBudgetNegotiation   Capability = "budget_negotiation"
)

// AgentRecord is the registry's last-known state for one specialist agent.
// Records are owned by the registry: it hands out copies, and all mutations
// go through registry operations so readers never observe a partial write.
type AgentRecord struct {
	// AgentID uniquely identifies the agent within the registry.
	AgentID string `json:"agent_id"`

	// Name is the agent's human-readable name.
	Name string `json:"name"`

	// Endpoint is the agent's base URL.
	Endpoint string `json:"endpoint"`

	// Capabilities is the set of capability tags the agent advertises.
	Capabilities []Capability `json:"capabilities"`

	// LastSeen is the time of the last successful probe (or registration).
	LastSeen time.Time `json:"last_seen"`

	// Status is the agent's last-known health.
	Status AgentStatus `json:"status"`

	// LatencyMS is the last observed probe latency in milliseconds.
	LatencyMS float64 `json:"latency_ms"`
}

// HasCapability reports whether the record advertises the given tag.
func (r *AgentRecord) HasCapability(tag Capability) bool {
	for _, c := range r.Capabilities {
		if c == tag {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the record.
func (r *AgentRecord) Clone() *AgentRecord {
	cp := *r
	cp.Capabilities = make([]Capability, len(r.Capabilities))
	copy(cp.Capabilities, r.Capabilities)
	return &cp
}

// EcosystemHealth is the derived snapshot returned by a discovery cycle.
// It is recomputed on every request and never persisted.
type EcosystemHealth struct {
	// TotalDiscovered is the count of non-stale registry records.
	TotalDiscovered int `json:"total_discovered"`

	// ActiveAgents is the current agent set, ordered by name.
	ActiveAgents []AgentRecord `json:"active_agents"`

	// OverallHealthScore is in [0, 100]; a deterministic function of
	// ActiveAgents. Zero when no agents are registered.
	OverallHealthScore float64 `json:"overall_health_score"`
}

// ActiveCount returns the number of agents currently healthy or degraded.
func (e *EcosystemHealth) ActiveCount() int {
	active := 0
	for i := range e.ActiveAgents {
		switch e.ActiveAgents[i].Status {
		case StatusHealthy, StatusDegraded:
			active++
		}
	}
	return active
}

// ProbeResult is the outcome of one liveness check against an agent.
type ProbeResult struct {
	// AgentID is the probed agent.
	AgentID string `json:"agent_id"`

	// Status is the health derived from the probe.
	Status AgentStatus `json:"status"`

	// LatencyMS is the observed round-trip latency, valid on success.
	LatencyMS float64 `json:"latency_ms"`

	// Capabilities is the capability set the agent reported, valid on success.
	Capabilities []Capability `json:"capabilities,omitempty"`

	// Message carries the failure reason for unreachable agents.
	Message string `json:"message,omitempty"`

	// CheckedAt is when the probe completed.
	CheckedAt time.Time `json:"checked_at"`
}

// Healthy reports whether the probe reached the agent at all.
func (p *ProbeResult) Healthy() bool {
	return p.Status == StatusHealthy || p.Status == StatusDegraded
}
