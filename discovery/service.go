package discovery

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// ServiceConfig holds configuration for the discovery service.
type ServiceConfig struct {
	// MaxConcurrentProbes bounds probe fan-out within one discovery cycle.
	MaxConcurrentProbes int `json:"max_concurrent_probes" yaml:"max_concurrent_probes"`

	// RefreshInterval is the period of the background refresh loop.
	RefreshInterval time.Duration `json:"refresh_interval" yaml:"refresh_interval"`

	// ProbesPerSecond rate-limits probe dispatch so refresh cycles do not
	// burst against a large agent population.
	ProbesPerSecond float64 `json:"probes_per_second" yaml:"probes_per_second"`

	// EssentialCapabilities are the tags the ecosystem status report checks
	// coverage for.
	EssentialCapabilities []Capability `json:"essential_capabilities" yaml:"essential_capabilities"`
}

// DefaultServiceConfig returns a ServiceConfig with sensible defaults.
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		MaxConcurrentProbes: 8,
		RefreshInterval:     60 * time.Second,
		ProbesPerSecond:     20,
		EssentialCapabilities: []Capability{
			CapabilityFlightSearch,
			CapabilityHotelSearch,
			CapabilityActivitySearch,
			CapabilityItineraryGeneration,
		},
	}
}

// Observer receives instrumentation events from the discovery service:
// one call per probe and one per completed cycle. The metrics collector
// satisfies it.
type Observer interface {
	RecordProbe(status string, duration time.Duration)
	RecordDiscoveryCycle(discovered, active int, healthScore float64, swept int)
}

// Service is the public-facing discovery aggregator: it probes the
// registered agent population and returns a registry snapshot together
// with a computed ecosystem health score.
type Service struct {
	registry *Registry
	prober   Prober
	config   *ServiceConfig
	logger   *zap.Logger
	limiter  *rate.Limiter

	// OnCycle, when set, is invoked with the snapshot produced by every
	// completed discovery cycle (on-demand and background alike).
	OnCycle func(*EcosystemHealth)

	// Observer, when set, receives per-probe and per-cycle measurements.
	// Set before Start, like OnCycle.
	Observer Observer

	mu      sync.Mutex
	running bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewService creates a discovery service over the registry and prober.
func NewService(registry *Registry, prober Prober, config *ServiceConfig, logger *zap.Logger) *Service {
	if config == nil {
		config = DefaultServiceConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxConcurrentProbes <= 0 {
		config.MaxConcurrentProbes = 1
	}
	limit := rate.Inf
	if config.ProbesPerSecond > 0 {
		limit = rate.Limit(config.ProbesPerSecond)
	}
	return &Service{
		registry: registry,
		prober:   prober,
		config:   config,
		logger:   logger.With(zap.String("component", "discovery_service")),
		limiter:  rate.NewLimiter(limit, config.MaxConcurrentProbes),
	}
}

// Discover sweeps stale records, probes every registered agent with
// bounded concurrency, and returns the resulting ecosystem snapshot.
//
// Each probe runs independently under its own timeout, so a single agent
// failure only lowers that agent's contribution. When ctx expires before
// every probe returns, agents that did not answer in time are left
// unreachable and the best available snapshot is still returned. Only a
// registry store fault aborts the cycle.
func (s *Service) Discover(ctx context.Context) (*EcosystemHealth, error) {
	start := time.Now()

	swept, err := s.registry.Sweep(ctx)
	if err != nil {
		return nil, err
	}

	records, err := s.registry.List(ctx)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.MaxConcurrentProbes)
	for _, record := range records {
		record := record
		g.Go(func() error {
			if err := s.limiter.Wait(gctx); err != nil {
				// Deadline hit before this probe was dispatched; the agent
				// did not answer in time.
				s.recordProbe(StatusUnreachable, 0)
				return s.registry.SetProbeResult(ctx, ProbeResult{
					AgentID:   record.AgentID,
					Status:    StatusUnreachable,
					Message:   "discovery deadline exceeded before probe",
					CheckedAt: time.Now(),
				})
			}
			probeStart := time.Now()
			result := s.prober.Probe(gctx, record)
			s.recordProbe(result.Status, time.Since(probeStart))
			return s.registry.SetProbeResult(ctx, result)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Info("discovery cycle complete",
		zap.Int("total_discovered", snapshot.TotalDiscovered),
		zap.Float64("health_score", snapshot.OverallHealthScore),
		zap.Int("swept", swept),
		zap.Duration("elapsed", time.Since(start)),
	)

	if s.Observer != nil {
		s.Observer.RecordDiscoveryCycle(snapshot.TotalDiscovered, snapshot.ActiveCount(),
			snapshot.OverallHealthScore, swept)
	}
	if s.OnCycle != nil {
		s.OnCycle(snapshot)
	}
	return snapshot, nil
}

func (s *Service) recordProbe(status AgentStatus, duration time.Duration) {
	if s.Observer != nil {
		s.Observer.RecordProbe(string(status), duration)
	}
}

// Snapshot assembles the ecosystem view from the registry's current state
// without probing anyone.
func (s *Service) Snapshot(ctx context.Context) (*EcosystemHealth, error) {
	records, err := s.registry.List(ctx)
	if err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })

	agents := make([]AgentRecord, 0, len(records))
	for _, record := range records {
		agents = append(agents, *record)
	}
	return &EcosystemHealth{
		TotalDiscovered:    len(records),
		ActiveAgents:       agents,
		OverallHealthScore: HealthScore(records),
	}, nil
}

// FindByCapability returns agents advertising the given tag, ordered by
// ascending probe latency. It reads the registry's last-known state and
// does not probe.
func (s *Service) FindByCapability(ctx context.Context, tag Capability) ([]*AgentRecord, error) {
	records, err := s.registry.List(ctx)
	if err != nil {
		return nil, err
	}

	matches := make([]*AgentRecord, 0)
	for _, record := range records {
		if record.HasCapability(tag) {
			matches = append(matches, record)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].LatencyMS != matches[j].LatencyMS {
			return matches[i].LatencyMS < matches[j].LatencyMS
		}
		return matches[i].AgentID < matches[j].AgentID
	})
	return matches, nil
}

// ConnectivityReport is the result of an on-demand connectivity test
// against one registered agent.
type ConnectivityReport struct {
	AgentID      string       `json:"agent_id"`
	AgentName    string       `json:"agent_name,omitempty"`
	Reachable    bool         `json:"reachable"`
	Status       AgentStatus  `json:"status"`
	LatencyMS    float64      `json:"latency_ms,omitempty"`
	Capabilities []Capability `json:"capabilities,omitempty"`
	Message      string       `json:"message,omitempty"`
	TestedAt     time.Time    `json:"tested_at"`
}

// TestAgent probes a single registered agent immediately, outside the
// refresh cycle, and applies the result to its record. Unknown agents are
// an agent-not-found error; an unreachable agent is a normal report, not
// an error.
func (s *Service) TestAgent(ctx context.Context, agentID string) (*ConnectivityReport, error) {
	record, err := s.registry.Get(ctx, agentID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result := s.prober.Probe(ctx, record)
	s.recordProbe(result.Status, time.Since(start))

	if err := s.registry.SetProbeResult(ctx, result); err != nil {
		return nil, err
	}

	return &ConnectivityReport{
		AgentID:      record.AgentID,
		AgentName:    record.Name,
		Reachable:    result.Healthy(),
		Status:       result.Status,
		LatencyMS:    result.LatencyMS,
		Capabilities: result.Capabilities,
		Message:      result.Message,
		TestedAt:     result.CheckedAt,
	}, nil
}

// EcosystemStatus is the extended status report for operators: capability
// coverage, distribution, and redundancy on top of the health snapshot.
type EcosystemStatus struct {
	TotalRegistered        int                `json:"total_registered"`
	ActiveAgents           int                `json:"active_agents"`
	InactiveAgents         int                `json:"inactive_agents"`
	OverallHealthScore     float64            `json:"overall_health_score"`
	CapabilityDistribution map[Capability]int `json:"capability_distribution"`
	EssentialCovered       int                `json:"essential_covered"`
	EssentialTotal         int                `json:"essential_total"`
	CoordinationReady      bool               `json:"coordination_ready"`
	RedundancyLevel        string             `json:"redundancy_level"`
	Recommendations        []string           `json:"recommendations,omitempty"`
}

// Status builds the extended ecosystem status report from the registry's
// current state.
func (s *Service) Status(ctx context.Context) (*EcosystemStatus, error) {
	records, err := s.registry.List(ctx)
	if err != nil {
		return nil, err
	}

	status := &EcosystemStatus{
		TotalRegistered:        len(records),
		OverallHealthScore:     HealthScore(records),
		CapabilityDistribution: make(map[Capability]int),
		EssentialTotal:         len(s.config.EssentialCapabilities),
	}
	for _, record := range records {
		if record.Status == StatusHealthy || record.Status == StatusDegraded {
			status.ActiveAgents++
		} else {
			status.InactiveAgents++
		}
		for _, tag := range record.Capabilities {
			status.CapabilityDistribution[tag]++
		}
	}
	for _, tag := range s.config.EssentialCapabilities {
		if status.CapabilityDistribution[tag] > 0 {
			status.EssentialCovered++
		}
	}
	status.CoordinationReady = status.EssentialCovered == status.EssentialTotal && status.ActiveAgents > 0
	status.RedundancyLevel = redundancyLevel(status.CapabilityDistribution)
	status.Recommendations = recommendations(status)
	return status, nil
}

// redundancyLevel grades how much of the capability surface has more than
// one provider: none (no capabilities), then low, medium (>= 40%
// redundant), high (>= 70%).
func redundancyLevel(distribution map[Capability]int) string {
	if len(distribution) == 0 {
		return "none"
	}
	redundant := 0
	for _, providers := range distribution {
		if providers > 1 {
			redundant++
		}
	}
	ratio := float64(redundant) / float64(len(distribution))
	switch {
	case ratio >= 0.7:
		return "high"
	case ratio >= 0.4:
		return "medium"
	default:
		return "low"
	}
}

// recommendations lists operator actions that would improve the ecosystem.
func recommendations(status *EcosystemStatus) []string {
	var recs []string
	if status.ActiveAgents < 3 {
		recs = append(recs, "start more agents for better redundancy")
	}
	if status.CapabilityDistribution[CapabilityBudgetNegotiation] == 0 {
		recs = append(recs, "add budget negotiation capability for cost optimization")
	}
	if len(status.CapabilityDistribution) < 8 {
		recs = append(recs, "expand capability coverage for more comprehensive trip planning")
	}
	return recs
}

// Start launches the background refresh loop. Each cycle runs Discover
// bounded by the refresh interval. A stopped service can be started again.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.running = true
	s.done = make(chan struct{})

	s.wg.Add(1)
	go s.refreshLoop(s.done)

	s.logger.Info("discovery service started",
		zap.Duration("refresh_interval", s.config.RefreshInterval))
	return nil
}

// Stop terminates the background refresh loop.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	close(s.done)
	s.wg.Wait()
	s.logger.Info("discovery service stopped")
	return nil
}

func (s *Service) refreshLoop(done <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.config.RefreshInterval)
			if _, err := s.Discover(ctx); err != nil {
				s.logger.Error("background discovery cycle failed", zap.Error(err))
			}
			cancel()
		case <-done:
			return
		}
	}
}
