package negotiation

import (
	"context"

	"go.uber.org/zap"

	"github.com/tripmesh/tripmesh/types"
)

// Policy holds the tunable parameters of the negotiation protocol.
type Policy struct {
	// BlendFactor is the weight of the requester's budget ceiling when
	// computing a counter-offer, in [0, 1]. Higher values pull the counter
	// toward what the requester can afford.
	BlendFactor float64 `json:"blend_factor" yaml:"blend_factor"`

	// FloorRatio is the resource holder's minimum acceptable price as a
	// fraction of the original asking price. Counters never go below the
	// floor, so they can never be negative.
	FloorRatio float64 `json:"floor_ratio" yaml:"floor_ratio"`

	// MaxRounds bounds the offer/counter-offer exchanges. Each round past
	// the first re-applies the acceptance rule with the previous counter
	// treated as the new ask.
	MaxRounds int `json:"max_rounds" yaml:"max_rounds"`
}

// DefaultPolicy returns the protocol defaults: a single round, counters
// weighted toward the requester's ceiling, and a 15% maximum discount.
func DefaultPolicy() *Policy {
	return &Policy{
		BlendFactor: 0.7,
		FloorRatio:  0.85,
		MaxRounds:   1,
	}
}

// Request is the immutable input to one negotiation run.
type Request struct {
	// ResourceID identifies the resource line-item under negotiation.
	ResourceID string `json:"resource_id"`

	// AvailableBudget is the total budget for all units.
	AvailableBudget float64 `json:"available_budget"`

	// UnitCount is the number of units requested (nights for hotels).
	UnitCount int `json:"unit_count"`

	// AskingPricePerUnit is the counterpart's current ask.
	AskingPricePerUnit float64 `json:"asking_price_per_unit"`
}

// Outcome is the result of one negotiation run. Exactly one of
// FinalPricePerUnit (accepted) or CounterOfferPerUnit (rejected) is set.
// Outcomes are never mutated after creation.
type Outcome struct {
	ResourceID          string   `json:"resource_id"`
	Accepted            bool     `json:"accepted"`
	FinalPricePerUnit   *float64 `json:"final_price_per_unit,omitempty"`
	CounterOfferPerUnit *float64 `json:"counter_offer_per_unit,omitempty"`
	Rounds              int      `json:"rounds"`
}

// Engine executes the bounded-round negotiation protocol. It holds no
// cross-request state: outcomes are pure functions of the request and the
// policy.
type Engine struct {
	policy *Policy
	logger *zap.Logger
}

// NewEngine creates a negotiation engine. Out-of-range policy values are
// clamped to the nearest valid value.
func NewEngine(policy *Policy, logger *zap.Logger) *Engine {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := *policy
	if p.BlendFactor < 0 {
		p.BlendFactor = 0
	}
	if p.BlendFactor > 1 {
		p.BlendFactor = 1
	}
	if p.FloorRatio <= 0 || p.FloorRatio > 1 {
		p.FloorRatio = DefaultPolicy().FloorRatio
	}
	if p.MaxRounds < 1 {
		p.MaxRounds = 1
	}

	return &Engine{
		policy: &p,
		logger: logger.With(zap.String("component", "negotiation_engine")),
	}
}

// Negotiate runs the protocol for a single resource line-item.
//
// Round 1: the ask is accepted outright when it fits the per-unit budget
// ceiling (available_budget / unit_count). Otherwise a counter-offer is
// computed as a blend between the ceiling and the ask, clamped at the
// floor price. Each further round, if configured, re-applies the same
// rule with the previous counter as the new ask.
func (e *Engine) Negotiate(ctx context.Context, req Request) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.UnitCount <= 0 {
		return nil, types.NewErrorf(types.ErrValidation,
			"unit count must be positive, got %d", req.UnitCount)
	}
	if req.AskingPricePerUnit <= 0 {
		return nil, types.NewErrorf(types.ErrValidation,
			"asking price must be positive, got %v", req.AskingPricePerUnit)
	}

	maxAffordable := req.AvailableBudget / float64(req.UnitCount)
	floor := e.policy.FloorRatio * req.AskingPricePerUnit

	ask := req.AskingPricePerUnit
	rounds := 0
	for round := 1; round <= e.policy.MaxRounds; round++ {
		rounds = round

		if ask <= maxAffordable {
			accepted := ask
			e.logger.Info("negotiation accepted",
				zap.String("resource_id", req.ResourceID),
				zap.Float64("final_price_per_unit", accepted),
				zap.Int("rounds", rounds),
			)
			return &Outcome{
				ResourceID:        req.ResourceID,
				Accepted:          true,
				FinalPricePerUnit: &accepted,
				Rounds:            rounds,
			}, nil
		}

		ask = e.counterOffer(maxAffordable, ask, floor)
	}

	counter := ask
	e.logger.Info("negotiation rejected",
		zap.String("resource_id", req.ResourceID),
		zap.Float64("counter_offer_per_unit", counter),
		zap.Int("rounds", rounds),
	)
	return &Outcome{
		ResourceID:          req.ResourceID,
		Accepted:            false,
		CounterOfferPerUnit: &counter,
		Rounds:              rounds,
	}, nil
}

// counterOffer blends the requester's ceiling with the current ask and
// clamps at the floor. A non-positive ceiling means the requester has no
// budget at all; the counter then sits exactly at the floor.
func (e *Engine) counterOffer(maxAffordable, ask, floor float64) float64 {
	if maxAffordable <= 0 {
		return floor
	}
	counter := e.policy.BlendFactor*maxAffordable + (1-e.policy.BlendFactor)*ask
	if counter < floor {
		counter = floor
	}
	return counter
}
