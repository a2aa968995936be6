package coordination

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tripmesh/tripmesh/discovery"
	"github.com/tripmesh/tripmesh/types"
)

// fakeAgentSource serves canned capability lookups, latency-sorted like
// the discovery service.
type fakeAgentSource struct {
	byCapability map[discovery.Capability][]*discovery.AgentRecord
	err          error
}

func (f *fakeAgentSource) FindByCapability(_ context.Context, tag discovery.Capability) ([]*discovery.AgentRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byCapability[tag], nil
}

func healthyAgent(id string, tag discovery.Capability, latencyMS float64) *discovery.AgentRecord {
	return &discovery.AgentRecord{
		AgentID:      id,
		Name:         id,
		Endpoint:     "http://" + id,
		Capabilities: []discovery.Capability{tag},
		Status:       discovery.StatusHealthy,
		LatencyMS:    latencyMS,
	}
}

func fullEcosystem() *fakeAgentSource {
	return &fakeAgentSource{byCapability: map[discovery.Capability][]*discovery.AgentRecord{
		discovery.CapabilityFlightSearch:        {healthyAgent("flight-booking-agent", discovery.CapabilityFlightSearch, 10)},
		discovery.CapabilityHotelSearch:         {healthyAgent("hotel-booking-agent", discovery.CapabilityHotelSearch, 20)},
		discovery.CapabilityActivitySearch:      {healthyAgent("activity-planning-agent", discovery.CapabilityActivitySearch, 30)},
		discovery.CapabilityItineraryGeneration: {healthyAgent("gemini-ai-agent", discovery.CapabilityItineraryGeneration, 40)},
	}}
}

func TestCoordinateAllHealthy(t *testing.T) {
	engine := NewEngine(fullEcosystem(), DefaultConfig(), zap.NewNop())

	verdict, err := engine.Coordinate(context.Background(), CompositeTask{
		TaskType:     TaskComprehensiveTripPlanning,
		Requirements: map[string]any{"budget": 1200.0, "travelers": 2},
	})
	require.NoError(t, err)

	assert.Equal(t, StageComplete, verdict.Stage)
	assert.NotEmpty(t, verdict.TaskID)
	assert.Equal(t, 1.0, verdict.SuccessProbability)

	require.Len(t, verdict.Plan, 4)
	assert.Equal(t, discovery.CapabilityFlightSearch, verdict.Plan[0].Capability)
	assert.Equal(t, "flight-booking-agent", verdict.Plan[0].AgentID)
	assert.Equal(t, discovery.CapabilityItineraryGeneration, verdict.Plan[3].Capability)
	assert.Equal(t, "gemini-ai-agent", verdict.Plan[3].AgentID)

	// 3s + 2.5s + 2s + 5s baselines plus 10+20+30+40ms of probe latency.
	expected := 12500*time.Millisecond + 100*time.Millisecond
	assert.Equal(t, expected, verdict.EstimatedExecutionTime)
}

func TestCoordinateMissingCapabilityHitsFloor(t *testing.T) {
	// No itinerary_generation agent registered: the verdict completes at
	// the probability floor instead of erroring.
	source := fullEcosystem()
	delete(source.byCapability, discovery.CapabilityItineraryGeneration)

	engine := NewEngine(source, DefaultConfig(), zap.NewNop())

	verdict, err := engine.Coordinate(context.Background(), CompositeTask{
		TaskType: TaskComprehensiveTripPlanning,
	})
	require.NoError(t, err)

	assert.Equal(t, StageComplete, verdict.Stage)
	assert.LessOrEqual(t, verdict.SuccessProbability, DefaultConfig().ProbabilityFloor)
	assert.Greater(t, verdict.SuccessProbability, 0.0)

	require.Len(t, verdict.Plan, 4)
	missing := verdict.Plan[3]
	assert.Equal(t, discovery.CapabilityItineraryGeneration, missing.Capability)
	assert.False(t, missing.Covered())
}

func TestCoordinateProbabilityMonotoneInMissingCount(t *testing.T) {
	config := DefaultConfig()
	previous := 1.1
	source := fullEcosystem()

	for _, tag := range []discovery.Capability{
		discovery.CapabilityItineraryGeneration,
		discovery.CapabilityActivitySearch,
		discovery.CapabilityHotelSearch,
	} {
		delete(source.byCapability, tag)
		engine := NewEngine(source, config, zap.NewNop())
		verdict, err := engine.Coordinate(context.Background(), CompositeTask{
			TaskType: TaskComprehensiveTripPlanning,
		})
		require.NoError(t, err)
		assert.Less(t, verdict.SuccessProbability, previous)
		previous = verdict.SuccessProbability
	}
}

func TestCoordinateDegradedFallback(t *testing.T) {
	source := fullEcosystem()
	degraded := healthyAgent("backup-gemini", discovery.CapabilityItineraryGeneration, 5)
	degraded.Status = discovery.StatusDegraded
	source.byCapability[discovery.CapabilityItineraryGeneration] = []*discovery.AgentRecord{degraded}

	engine := NewEngine(source, DefaultConfig(), zap.NewNop())

	verdict, err := engine.Coordinate(context.Background(), CompositeTask{
		TaskType: TaskComprehensiveTripPlanning,
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.6, verdict.SuccessProbability, 1e-9)
	assert.Equal(t, "backup-gemini", verdict.Plan[3].AgentID)
	assert.InDelta(t, 0.6, verdict.Plan[3].Confidence, 1e-9)
}

func TestCoordinatePrefersHealthyOverFasterDegraded(t *testing.T) {
	fastDegraded := healthyAgent("fast-degraded", discovery.CapabilityFlightSearch, 1)
	fastDegraded.Status = discovery.StatusDegraded
	slowHealthy := healthyAgent("slow-healthy", discovery.CapabilityFlightSearch, 500)

	source := fullEcosystem()
	// Latency-sorted, as FindByCapability returns them.
	source.byCapability[discovery.CapabilityFlightSearch] = []*discovery.AgentRecord{fastDegraded, slowHealthy}

	engine := NewEngine(source, DefaultConfig(), zap.NewNop())
	verdict, err := engine.Coordinate(context.Background(), CompositeTask{
		TaskType: TaskComprehensiveTripPlanning,
	})
	require.NoError(t, err)
	assert.Equal(t, "slow-healthy", verdict.Plan[0].AgentID)
	assert.Equal(t, 1.0, verdict.SuccessProbability)
}

func TestCoordinatePicksLowestLatencyHealthy(t *testing.T) {
	a := healthyAgent("hotel-fast", discovery.CapabilityHotelSearch, 8)
	b := healthyAgent("hotel-slow", discovery.CapabilityHotelSearch, 90)

	source := fullEcosystem()
	source.byCapability[discovery.CapabilityHotelSearch] = []*discovery.AgentRecord{a, b}

	engine := NewEngine(source, DefaultConfig(), zap.NewNop())
	verdict, err := engine.Coordinate(context.Background(), CompositeTask{
		TaskType: TaskComprehensiveTripPlanning,
	})
	require.NoError(t, err)
	assert.Equal(t, "hotel-fast", verdict.Plan[1].AgentID)
}

func TestCoordinateUnsupportedTask(t *testing.T) {
	engine := NewEngine(fullEcosystem(), DefaultConfig(), zap.NewNop())

	_, err := engine.Coordinate(context.Background(), CompositeTask{TaskType: "time_travel"})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrUnsupportedTask))
}

func TestCoordinateRegistryFaultPropagates(t *testing.T) {
	source := &fakeAgentSource{err: types.NewError(types.ErrRegistryFault, "store unavailable")}
	engine := NewEngine(source, DefaultConfig(), zap.NewNop())

	_, err := engine.Coordinate(context.Background(), CompositeTask{
		TaskType: TaskComprehensiveTripPlanning,
	})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrRegistryFault))
}

func TestDecompose(t *testing.T) {
	capabilities, err := Decompose(TaskComprehensiveTripPlanning)
	require.NoError(t, err)
	assert.Equal(t, []discovery.Capability{
		discovery.CapabilityFlightSearch,
		discovery.CapabilityHotelSearch,
		discovery.CapabilityActivitySearch,
		discovery.CapabilityItineraryGeneration,
	}, capabilities)

	_, err = Decompose("unknown")
	assert.True(t, types.IsCode(err, types.ErrUnsupportedTask))

	// Callers must not be able to mutate the decomposition table.
	capabilities[0] = "mutated"
	again, err := Decompose(TaskComprehensiveTripPlanning)
	require.NoError(t, err)
	assert.Equal(t, discovery.CapabilityFlightSearch, again[0])
}

func TestSupportedTaskTypes(t *testing.T) {
	taskTypes := SupportedTaskTypes()
	assert.Len(t, taskTypes, 4)
	assert.Contains(t, taskTypes, TaskComprehensiveTripPlanning)
	assert.Contains(t, taskTypes, TaskBudgetOptimization)
}
