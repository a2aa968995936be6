// Package tripmesh coordinates a population of independently running
// specialist travel agents (flight, hotel, activity, AI reasoning).
//
// The module provides three cooperating subsystems:
//
//   - discovery: an agent registry with health probing and an ecosystem
//     health score computed over the live agent set.
//   - negotiation: a deterministic, bounded-round price negotiation
//     protocol for budget-constrained resource offers.
//   - coordination: a composite-task engine that decomposes a task into
//     capability requirements, selects agents and produces a feasibility
//     verdict (success probability, estimated execution time) before any
//     booking is attempted.
//
// Specialist agents are remote peers reachable over HTTP; tripmesh never
// executes bookings itself.
package tripmesh

// Version is the tripmesh module version, overridden at build time.
var Version = "dev"
