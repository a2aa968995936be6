package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// AgentCardPath is the well-known path every specialist agent serves its
// agent card on.
const AgentCardPath = "/.well-known/agent"

// Prober performs liveness checks against specialist agents.
type Prober interface {
	// Probe checks the agent's liveness endpoint. It never returns an
	// error: transport failures and timeouts are encoded as a result
	// with StatusUnreachable.
	Probe(ctx context.Context, record *AgentRecord) ProbeResult
}

// ProberConfig holds configuration for the HTTP prober.
type ProberConfig struct {
	// Timeout bounds a single probe round trip.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// DefaultProberConfig returns a ProberConfig with sensible defaults.
func DefaultProberConfig() *ProberConfig {
	return &ProberConfig{
		Timeout: 3 * time.Second,
	}
}

// agentCard is the liveness document served by each agent at AgentCardPath.
type agentCard struct {
	AgentID      string       `json:"agent_id"`
	Name         string       `json:"name"`
	Capabilities []Capability `json:"capabilities"`
	Status       string       `json:"status"`
}

// HTTPProber probes agents over their HTTP agent-card endpoint.
type HTTPProber struct {
	client *http.Client
	config *ProberConfig
	logger *zap.Logger
}

// NewHTTPProber creates an HTTP prober.
func NewHTTPProber(config *ProberConfig, logger *zap.Logger) *HTTPProber {
	if config == nil {
		config = DefaultProberConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPProber{
		client: &http.Client{Timeout: config.Timeout},
		config: config,
		logger: logger.With(zap.String("component", "health_prober")),
	}
}

// Probe issues one liveness check with the configured timeout.
func (p *HTTPProber) Probe(ctx context.Context, record *AgentRecord) ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	url := strings.TrimRight(record.Endpoint, "/") + AgentCardPath

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return p.unreachable(record, fmt.Sprintf("build request: %v", err))
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return p.unreachable(record, fmt.Sprintf("probe failed: %v", err))
	}
	defer resp.Body.Close()

	latency := time.Since(start)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return p.unreachable(record, fmt.Sprintf("probe returned status %d", resp.StatusCode))
	}

	var card agentCard
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return p.unreachable(record, fmt.Sprintf("decode agent card: %v", err))
	}

	status := StatusHealthy
	if strings.EqualFold(card.Status, string(StatusDegraded)) {
		status = StatusDegraded
	}

	p.logger.Debug("agent probed",
		zap.String("agent_id", record.AgentID),
		zap.String("status", string(status)),
		zap.Duration("latency", latency),
	)

	return ProbeResult{
		AgentID:      record.AgentID,
		Status:       status,
		LatencyMS:    float64(latency.Microseconds()) / 1000.0,
		Capabilities: card.Capabilities,
		CheckedAt:    time.Now(),
	}
}

func (p *HTTPProber) unreachable(record *AgentRecord, reason string) ProbeResult {
	return ProbeResult{
		AgentID:   record.AgentID,
		Status:    StatusUnreachable,
		Message:   reason,
		CheckedAt: time.Now(),
	}
}
