package discovery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tripmesh/tripmesh/types"
)

// stubProber returns canned results per agent ID.
type stubProber struct {
	mu      sync.Mutex
	results map[string]ProbeResult
	probes  int
}

func (p *stubProber) Probe(_ context.Context, record *AgentRecord) ProbeResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.probes++
	if result, ok := p.results[record.AgentID]; ok {
		result.CheckedAt = time.Now()
		return result
	}
	return ProbeResult{
		AgentID:   record.AgentID,
		Status:    StatusUnreachable,
		Message:   "no stub result",
		CheckedAt: time.Now(),
	}
}

func registerEcosystem(t *testing.T, registry *Registry) {
	t.Helper()
	ctx := context.Background()
	for _, record := range []*AgentRecord{
		{AgentID: "flight-booking-agent", Name: "FlightBookingAgent", Endpoint: "http://localhost:8001",
			Capabilities: []Capability{CapabilityFlightSearch}},
		{AgentID: "hotel-booking-agent", Name: "HotelBookingAgent", Endpoint: "http://localhost:8002",
			Capabilities: []Capability{CapabilityHotelSearch, CapabilityBudgetNegotiation}},
		{AgentID: "activity-planning-agent", Name: "ActivityPlanningAgent", Endpoint: "http://localhost:8003",
			Capabilities: []Capability{CapabilityActivitySearch}},
	} {
		require.NoError(t, registry.Register(ctx, record))
	}
}

func TestServiceDiscoverMixedEcosystem(t *testing.T) {
	registry := newTestRegistry(t)
	registerEcosystem(t, registry)

	prober := &stubProber{results: map[string]ProbeResult{
		"flight-booking-agent": {AgentID: "flight-booking-agent", Status: StatusHealthy, LatencyMS: 12,
			Capabilities: []Capability{CapabilityFlightSearch}},
		"hotel-booking-agent": {AgentID: "hotel-booking-agent", Status: StatusHealthy, LatencyMS: 20,
			Capabilities: []Capability{CapabilityHotelSearch, CapabilityBudgetNegotiation}},
		// activity agent intentionally missing: probed as unreachable.
	}}

	service := NewService(registry, prober, DefaultServiceConfig(), zap.NewNop())

	snapshot, err := service.Discover(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, snapshot.TotalDiscovered)
	assert.InDelta(t, 66.7, snapshot.OverallHealthScore, 0.05)
	assert.Equal(t, 3, prober.probes)

	// Ordered by name.
	require.Len(t, snapshot.ActiveAgents, 3)
	assert.Equal(t, "ActivityPlanningAgent", snapshot.ActiveAgents[0].Name)
	assert.Equal(t, "FlightBookingAgent", snapshot.ActiveAgents[1].Name)
	assert.Equal(t, "HotelBookingAgent", snapshot.ActiveAgents[2].Name)

	// The unreachable agent is downgraded, not removed.
	record, err := registry.Get(context.Background(), "activity-planning-agent")
	require.NoError(t, err)
	assert.Equal(t, StatusUnreachable, record.Status)
}

func TestServiceDiscoverEmptyRegistry(t *testing.T) {
	service := NewService(newTestRegistry(t), &stubProber{}, DefaultServiceConfig(), zap.NewNop())

	snapshot, err := service.Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, snapshot.TotalDiscovered)
	assert.Equal(t, 0.0, snapshot.OverallHealthScore)
}

// faultyStore fails every read to simulate a registry fault.
type faultyStore struct{ MemoryStore }

func (s *faultyStore) LoadAll(context.Context) ([]*AgentRecord, error) {
	return nil, errors.New("store unavailable")
}

func TestServiceDiscoverRegistryFaultIsFatal(t *testing.T) {
	registry := NewRegistry(&faultyStore{MemoryStore{records: map[string]*AgentRecord{}}},
		DefaultRegistryConfig(), zap.NewNop())
	service := NewService(registry, &stubProber{}, DefaultServiceConfig(), zap.NewNop())

	_, err := service.Discover(context.Background())
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrRegistryFault))
}

func TestServiceFindByCapabilityOrdersByLatency(t *testing.T) {
	registry := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, registry.Register(ctx, &AgentRecord{
		AgentID: "hotel-a", Name: "A", Endpoint: "http://a",
		Capabilities: []Capability{CapabilityHotelSearch}, Status: StatusHealthy, LatencyMS: 80,
	}))
	require.NoError(t, registry.Register(ctx, &AgentRecord{
		AgentID: "hotel-b", Name: "B", Endpoint: "http://b",
		Capabilities: []Capability{CapabilityHotelSearch}, Status: StatusHealthy, LatencyMS: 15,
	}))
	require.NoError(t, registry.Register(ctx, &AgentRecord{
		AgentID: "flight-c", Name: "C", Endpoint: "http://c",
		Capabilities: []Capability{CapabilityFlightSearch}, Status: StatusHealthy, LatencyMS: 5,
	}))

	service := NewService(registry, &stubProber{}, DefaultServiceConfig(), zap.NewNop())

	matches, err := service.FindByCapability(ctx, CapabilityHotelSearch)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "hotel-b", matches[0].AgentID)
	assert.Equal(t, "hotel-a", matches[1].AgentID)
}

func TestServiceStatusReport(t *testing.T) {
	registry := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, registry.Register(ctx, &AgentRecord{
		AgentID: "flight", Name: "F", Endpoint: "http://f",
		Capabilities: []Capability{CapabilityFlightSearch}, Status: StatusHealthy,
	}))
	require.NoError(t, registry.Register(ctx, &AgentRecord{
		AgentID: "hotel", Name: "H", Endpoint: "http://h",
		Capabilities: []Capability{CapabilityHotelSearch}, Status: StatusUnreachable,
	}))

	service := NewService(registry, &stubProber{}, DefaultServiceConfig(), zap.NewNop())

	status, err := service.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, status.TotalRegistered)
	assert.Equal(t, 1, status.ActiveAgents)
	assert.Equal(t, 1, status.InactiveAgents)
	assert.Equal(t, 2, status.EssentialCovered) // flight_search + hotel_search present
	assert.Equal(t, 4, status.EssentialTotal)
	assert.False(t, status.CoordinationReady)
}

func TestServiceOnCycleHook(t *testing.T) {
	registry := newTestRegistry(t)
	registerEcosystem(t, registry)
	service := NewService(registry, &stubProber{}, DefaultServiceConfig(), zap.NewNop())

	var got *EcosystemHealth
	service.OnCycle = func(snapshot *EcosystemHealth) { got = snapshot }

	_, err := service.Discover(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 3, got.TotalDiscovered)
}

func TestServiceStartStop(t *testing.T) {
	registry := newTestRegistry(t)
	service := NewService(registry, &stubProber{}, &ServiceConfig{
		MaxConcurrentProbes: 2,
		RefreshInterval:     10 * time.Millisecond,
		ProbesPerSecond:     100,
	}, zap.NewNop())

	require.NoError(t, service.Start(context.Background()))
	time.Sleep(35 * time.Millisecond)
	require.NoError(t, service.Stop(context.Background()))

	// Stop is idempotent.
	require.NoError(t, service.Stop(context.Background()))
}

// captureObserver records instrumentation calls for assertions.
type captureObserver struct {
	mu     sync.Mutex
	probes []string
	cycles []struct {
		discovered, active, swept int
		score                     float64
	}
}

func (o *captureObserver) RecordProbe(status string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.probes = append(o.probes, status)
}

func (o *captureObserver) RecordDiscoveryCycle(discovered, active int, score float64, swept int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cycles = append(o.cycles, struct {
		discovered, active, swept int
		score                     float64
	}{discovered, active, swept, score})
}

func TestServiceObserverReceivesProbesAndCycle(t *testing.T) {
	registry := newTestRegistry(t)
	registerEcosystem(t, registry)
	ctx := context.Background()

	// One stale record for the sweep to remove before probing.
	require.NoError(t, registry.Register(ctx, &AgentRecord{
		AgentID: "retired-agent", Name: "Retired", Endpoint: "http://localhost:8009",
		LastSeen: time.Now().Add(-time.Hour),
	}))

	prober := &stubProber{results: map[string]ProbeResult{
		"flight-booking-agent": {AgentID: "flight-booking-agent", Status: StatusHealthy, LatencyMS: 12},
		"hotel-booking-agent":  {AgentID: "hotel-booking-agent", Status: StatusHealthy, LatencyMS: 20},
	}}
	service := NewService(registry, prober, DefaultServiceConfig(), zap.NewNop())

	observer := &captureObserver{}
	service.Observer = observer

	_, err := service.Discover(ctx)
	require.NoError(t, err)

	observer.mu.Lock()
	defer observer.mu.Unlock()

	// The stale record was swept, so only three agents were probed.
	assert.Len(t, observer.probes, 3)
	healthy := 0
	for _, status := range observer.probes {
		if status == string(StatusHealthy) {
			healthy++
		}
	}
	assert.Equal(t, 2, healthy)

	require.Len(t, observer.cycles, 1)
	cycle := observer.cycles[0]
	assert.Equal(t, 3, cycle.discovered)
	assert.Equal(t, 2, cycle.active)
	assert.Equal(t, 1, cycle.swept)
	assert.InDelta(t, 66.7, cycle.score, 0.05)
}

func TestServiceRestartResumesRefreshLoop(t *testing.T) {
	registry := newTestRegistry(t)
	registerEcosystem(t, registry)
	service := NewService(registry, &stubProber{}, &ServiceConfig{
		MaxConcurrentProbes: 2,
		RefreshInterval:     10 * time.Millisecond,
		ProbesPerSecond:     1000,
	}, zap.NewNop())

	var mu sync.Mutex
	cycles := 0
	service.OnCycle = func(*EcosystemHealth) {
		mu.Lock()
		cycles++
		mu.Unlock()
	}

	ctx := context.Background()
	require.NoError(t, service.Start(ctx))
	time.Sleep(35 * time.Millisecond)
	require.NoError(t, service.Stop(ctx))

	mu.Lock()
	afterFirstRun := cycles
	mu.Unlock()
	require.Greater(t, afterFirstRun, 0)

	require.NoError(t, service.Start(ctx))
	time.Sleep(35 * time.Millisecond)
	require.NoError(t, service.Stop(ctx))

	mu.Lock()
	afterSecondRun := cycles
	mu.Unlock()
	assert.Greater(t, afterSecondRun, afterFirstRun)
}

func TestServiceTestAgent(t *testing.T) {
	registry := newTestRegistry(t)
	registerEcosystem(t, registry)
	ctx := context.Background()

	prober := &stubProber{results: map[string]ProbeResult{
		"flight-booking-agent": {AgentID: "flight-booking-agent", Status: StatusHealthy, LatencyMS: 8,
			Capabilities: []Capability{CapabilityFlightSearch}},
	}}
	service := NewService(registry, prober, DefaultServiceConfig(), zap.NewNop())

	report, err := service.TestAgent(ctx, "flight-booking-agent")
	require.NoError(t, err)
	assert.True(t, report.Reachable)
	assert.Equal(t, StatusHealthy, report.Status)
	assert.Equal(t, 8.0, report.LatencyMS)
	assert.Equal(t, "FlightBookingAgent", report.AgentName)

	// The test result lands on the record like any probe.
	record, err := registry.Get(ctx, "flight-booking-agent")
	require.NoError(t, err)
	assert.Equal(t, StatusHealthy, record.Status)

	// An unreachable agent is a report, not an error.
	report, err = service.TestAgent(ctx, "activity-planning-agent")
	require.NoError(t, err)
	assert.False(t, report.Reachable)
	assert.Equal(t, StatusUnreachable, report.Status)
	assert.NotEmpty(t, report.Message)

	// Unknown agents are an error.
	_, err = service.TestAgent(ctx, "ghost-agent")
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrAgentNotFound))
}

func TestServiceStatusRedundancyAndRecommendations(t *testing.T) {
	registry := newTestRegistry(t)
	ctx := context.Background()
	service := NewService(registry, &stubProber{}, DefaultServiceConfig(), zap.NewNop())

	// Empty registry: nothing redundant, everything recommended.
	status, err := service.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "none", status.RedundancyLevel)
	assert.Len(t, status.Recommendations, 3)

	// Two providers for hotel_search out of two capabilities: medium.
	for _, record := range []*AgentRecord{
		{AgentID: "hotel-a", Name: "A", Endpoint: "http://a", Status: StatusHealthy,
			Capabilities: []Capability{CapabilityHotelSearch}},
		{AgentID: "hotel-b", Name: "B", Endpoint: "http://b", Status: StatusHealthy,
			Capabilities: []Capability{CapabilityHotelSearch}},
		{AgentID: "flight-c", Name: "C", Endpoint: "http://c", Status: StatusHealthy,
			Capabilities: []Capability{CapabilityFlightSearch}},
	} {
		require.NoError(t, registry.Register(ctx, record))
	}

	status, err = service.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "medium", status.RedundancyLevel)
	assert.Contains(t, status.Recommendations, "add budget negotiation capability for cost optimization")
	assert.NotContains(t, status.Recommendations, "start more agents for better redundancy")
}
