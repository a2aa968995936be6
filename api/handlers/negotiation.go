package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/tripmesh/tripmesh/internal/metrics"
	"github.com/tripmesh/tripmesh/negotiation"
)

// NegotiationHandler serves budget negotiation requests.
type NegotiationHandler struct {
	engine    *negotiation.Engine
	collector *metrics.Collector
	logger    *zap.Logger
}

// NewNegotiationHandler creates the negotiation handler. The collector
// may be nil.
func NewNegotiationHandler(engine *negotiation.Engine, collector *metrics.Collector, logger *zap.Logger) *NegotiationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NegotiationHandler{
		engine:    engine,
		collector: collector,
		logger:    logger.With(zap.String("component", "negotiation_handler")),
	}
}

// HandleNegotiateBudget runs one negotiation for a resource line-item.
func (h *NegotiationHandler) HandleNegotiateBudget(w http.ResponseWriter, r *http.Request) {
	var req negotiation.Request
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	outcome, err := h.engine.Negotiate(r.Context(), req)
	if err != nil {
		WriteErrorFrom(w, r, err, h.logger)
		return
	}

	if h.collector != nil {
		result := "countered"
		if outcome.Accepted {
			result = "accepted"
		}
		h.collector.RecordNegotiation(result, outcome.Rounds)
	}

	WriteSuccess(w, r, outcome)
}
