package coordination

import (
	"sort"
	"time"

	"github.com/tripmesh/tripmesh/discovery"
	"github.com/tripmesh/tripmesh/types"
)

// TaskType identifies a supported composite task.
type TaskType string

// Supported composite task types.
const (
	TaskComprehensiveTripPlanning TaskType = "comprehensive_trip_planning"
	TaskBudgetOptimization        TaskType = "budget_optimization"
	TaskDisruptionHandling        TaskType = "disruption_handling"
	TaskItineraryGeneration       TaskType = "itinerary_generation"
)

// taskDecompositions maps each composite task type to its fixed, ordered
// sequence of required capability tags.
var taskDecompositions = map[TaskType][]discovery.Capability{
	TaskComprehensiveTripPlanning: {
		discovery.CapabilityFlightSearch,
		discovery.CapabilityHotelSearch,
		discovery.CapabilityActivitySearch,
		discovery.CapabilityItineraryGeneration,
	},
	TaskBudgetOptimization: {
		discovery.CapabilityBudgetNegotiation,
		"price_optimization",
		"cost_analysis",
	},
	TaskDisruptionHandling: {
		"disruption_handling",
		"alternative_planning",
		"real_time_updates",
	},
	TaskItineraryGeneration: {
		discovery.CapabilityItineraryGeneration,
		"schedule_optimization",
		"ai_recommendations",
	},
}

// capabilityBaselines holds the fixed per-capability execution time
// baselines used by the estimate; capabilities without an entry use
// defaultBaseline.
var capabilityBaselines = map[discovery.Capability]time.Duration{
	discovery.CapabilityFlightSearch:        3 * time.Second,
	discovery.CapabilityHotelSearch:         2500 * time.Millisecond,
	discovery.CapabilityActivitySearch:      2 * time.Second,
	discovery.CapabilityItineraryGeneration: 5 * time.Second,
}

const defaultBaseline = time.Second

// Decompose maps a task type to its ordered capability requirements.
// Unknown task types are an unsupported-task error, fatal to that
// coordination request.
func Decompose(taskType TaskType) ([]discovery.Capability, error) {
	capabilities, ok := taskDecompositions[taskType]
	if !ok {
		return nil, types.NewErrorf(types.ErrUnsupportedTask,
			"unsupported task type %q", taskType)
	}
	out := make([]discovery.Capability, len(capabilities))
	copy(out, capabilities)
	return out, nil
}

// SupportedTaskTypes lists the task types the engine can decompose,
// sorted for stable output.
func SupportedTaskTypes() []TaskType {
	out := make([]TaskType, 0, len(taskDecompositions))
	for taskType := range taskDecompositions {
		out = append(out, taskType)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// baseline returns the execution time baseline for a capability.
func baseline(capability discovery.Capability) time.Duration {
	if d, ok := capabilityBaselines[capability]; ok {
		return d
	}
	return defaultBaseline
}
