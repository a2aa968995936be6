package coordination

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/tripmesh/tripmesh/discovery"
)

// Stage is a step in the per-task coordination state machine. Every task
// passes through all stages in order; no transition skips one.
type Stage string

const (
	StageReceived            Stage = "RECEIVED"
	StageDecomposed          Stage = "DECOMPOSED"
	StageAgentsSelected      Stage = "AGENTS_SELECTED"
	StageFeasibilityComputed Stage = "FEASIBILITY_COMPUTED"
	StageComplete            Stage = "COMPLETE"
)

// Config holds the feasibility model parameters.
type Config struct {
	// DegradedConfidence is the per-subtask confidence factor when only a
	// degraded agent is available for a capability.
	DegradedConfidence float64 `json:"degraded_confidence" yaml:"degraded_confidence"`

	// ProbabilityFloor caps the success probability of a plan with at
	// least one uncovered capability. The floor is not a hard zero because
	// partial plans may still be attempted.
	ProbabilityFloor float64 `json:"probability_floor" yaml:"probability_floor"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DegradedConfidence: 0.6,
		ProbabilityFloor:   0.1,
	}
}

// CompositeTask is the input to one coordination run; read-only for the
// engine's lifetime.
type CompositeTask struct {
	// TaskType selects the decomposition.
	TaskType TaskType `json:"task_type"`

	// Requirements carries caller-provided task parameters (budget,
	// traveler count, dates). The engine passes them through to the plan;
	// execution against the selected agents interprets them.
	Requirements map[string]any `json:"requirements,omitempty"`
}

// Assignment binds one required capability to the selected agent.
// An empty AgentID means no eligible agent was found for the capability.
type Assignment struct {
	Capability discovery.Capability `json:"capability"`
	AgentID    string               `json:"agent_id,omitempty"`
	AgentName  string               `json:"agent_name,omitempty"`
	Confidence float64              `json:"confidence"`
	LatencyMS  float64              `json:"latency_ms,omitempty"`
}

// Covered reports whether an agent was selected for the capability.
func (a *Assignment) Covered() bool { return a.AgentID != "" }

// Verdict is the feasibility estimate produced for a composite task.
// The engine does not execute bookings; execution is delegated to the
// selected agents by the caller.
type Verdict struct {
	TaskID                 string        `json:"task_id"`
	TaskType               TaskType      `json:"task_type"`
	Stage                  Stage         `json:"stage"`
	SuccessProbability     float64       `json:"success_probability"`
	EstimatedExecutionTime time.Duration `json:"estimated_execution_time"`
	Plan                   []Assignment  `json:"subtask_plan"`
}

// AgentSource supplies capability lookups from the discovery layer.
// *discovery.Service satisfies it.
type AgentSource interface {
	FindByCapability(ctx context.Context, tag discovery.Capability) ([]*discovery.AgentRecord, error)
}

// Engine orchestrates composite tasks over the discovered agent population.
type Engine struct {
	agents AgentSource
	config *Config
	logger *zap.Logger
	tracer trace.Tracer
}

// NewEngine creates a coordination engine.
func NewEngine(agents AgentSource, config *Config, logger *zap.Logger) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		agents: agents,
		config: config,
		logger: logger.With(zap.String("component", "coordination_engine")),
		tracer: otel.Tracer("github.com/tripmesh/tripmesh/coordination"),
	}
}

// Coordinate runs the full state machine for one composite task and
// returns its feasibility verdict.
//
// A capability with no eligible agent lowers the verdict to the
// probability floor instead of failing the request. The only error paths
// are an unknown task type and a registry fault.
func (e *Engine) Coordinate(ctx context.Context, task CompositeTask) (*Verdict, error) {
	ctx, span := e.tracer.Start(ctx, "coordination.Coordinate",
		trace.WithAttributes(attribute.String("task_type", string(task.TaskType))))
	defer span.End()

	verdict := &Verdict{
		TaskID:   uuid.NewString(),
		TaskType: task.TaskType,
		Stage:    StageReceived,
	}

	capabilities, err := Decompose(task.TaskType)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	e.transition(verdict, StageDecomposed)

	plan, err := e.selectAgents(ctx, capabilities)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	verdict.Plan = plan
	e.transition(verdict, StageAgentsSelected)

	verdict.SuccessProbability = e.successProbability(plan)
	verdict.EstimatedExecutionTime = estimateExecutionTime(plan)
	e.transition(verdict, StageFeasibilityComputed)

	e.transition(verdict, StageComplete)
	span.SetAttributes(
		attribute.String("task_id", verdict.TaskID),
		attribute.Float64("success_probability", verdict.SuccessProbability),
	)
	e.logger.Info("coordination complete",
		zap.String("task_id", verdict.TaskID),
		zap.String("task_type", string(task.TaskType)),
		zap.Float64("success_probability", verdict.SuccessProbability),
		zap.Duration("estimated_execution_time", verdict.EstimatedExecutionTime),
	)
	return verdict, nil
}

func (e *Engine) transition(verdict *Verdict, next Stage) {
	e.logger.Debug("task stage transition",
		zap.String("task_id", verdict.TaskID),
		zap.String("from", string(verdict.Stage)),
		zap.String("to", string(next)),
	)
	verdict.Stage = next
}

// selectAgents picks, per required capability, the lowest-latency healthy
// agent; degraded agents are eligible only when no healthy one advertises
// the capability.
func (e *Engine) selectAgents(ctx context.Context, capabilities []discovery.Capability) ([]Assignment, error) {
	plan := make([]Assignment, 0, len(capabilities))
	for _, capability := range capabilities {
		candidates, err := e.agents.FindByCapability(ctx, capability)
		if err != nil {
			return nil, err
		}

		assignment := Assignment{Capability: capability, Confidence: e.config.ProbabilityFloor}
		if selected := pick(candidates); selected != nil {
			assignment.AgentID = selected.AgentID
			assignment.AgentName = selected.Name
			assignment.LatencyMS = selected.LatencyMS
			if selected.Status == discovery.StatusHealthy {
				assignment.Confidence = 1.0
			} else {
				assignment.Confidence = e.config.DegradedConfidence
			}
		} else {
			e.logger.Warn("no eligible agent for capability",
				zap.String("capability", string(capability)))
		}
		plan = append(plan, assignment)
	}
	return plan, nil
}

// pick returns the best candidate: candidates arrive latency-sorted, so
// the first healthy one wins, then the first degraded one.
func pick(candidates []*discovery.AgentRecord) *discovery.AgentRecord {
	var degraded *discovery.AgentRecord
	for _, candidate := range candidates {
		switch candidate.Status {
		case discovery.StatusHealthy:
			return candidate
		case discovery.StatusDegraded:
			if degraded == nil {
				degraded = candidate
			}
		}
	}
	return degraded
}

// successProbability is the product of per-subtask confidence factors.
// An uncovered capability contributes the floor factor, so one miss caps
// the verdict at the floor and each further miss lowers it monotonically.
func (e *Engine) successProbability(plan []Assignment) float64 {
	probability := 1.0
	for i := range plan {
		probability *= plan[i].Confidence
	}
	return probability
}

// estimateExecutionTime sums the per-capability baselines plus one
// observed probe round trip per covered subtask.
func estimateExecutionTime(plan []Assignment) time.Duration {
	total := time.Duration(0)
	for i := range plan {
		total += baseline(plan[i].Capability)
		if plan[i].Covered() {
			total += time.Duration(plan[i].LatencyMS * float64(time.Millisecond))
		}
	}
	return total
}
