package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/tripmesh/tripmesh/coordination"
	"github.com/tripmesh/tripmesh/internal/metrics"
)

// CoordinationHandler serves composite task coordination requests.
type CoordinationHandler struct {
	engine    *coordination.Engine
	collector *metrics.Collector
	logger    *zap.Logger
}

// NewCoordinationHandler creates the coordination handler. The collector
// may be nil.
func NewCoordinationHandler(engine *coordination.Engine, collector *metrics.Collector, logger *zap.Logger) *CoordinationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CoordinationHandler{
		engine:    engine,
		collector: collector,
		logger:    logger.With(zap.String("component", "coordination_handler")),
	}
}

// HandleCoordinate produces a feasibility verdict for a composite task.
func (h *CoordinationHandler) HandleCoordinate(w http.ResponseWriter, r *http.Request) {
	var task coordination.CompositeTask
	if err := DecodeJSONBody(w, r, &task, h.logger); err != nil {
		return
	}

	verdict, err := h.engine.Coordinate(r.Context(), task)
	if err != nil {
		if h.collector != nil {
			h.collector.RecordCoordination(string(task.TaskType), "error", 0)
		}
		WriteErrorFrom(w, r, err, h.logger)
		return
	}

	if h.collector != nil {
		h.collector.RecordCoordination(string(task.TaskType), "complete", verdict.SuccessProbability)
	}
	WriteSuccess(w, r, verdict)
}

// HandleTaskTypes lists the composite task types the engine can decompose.
func (h *CoordinationHandler) HandleTaskTypes(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, coordination.SupportedTaskTypes())
}
