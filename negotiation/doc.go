// Package negotiation implements the bilateral budget negotiation protocol
// between the coordinator and a resource-holding specialist agent.
//
// A negotiation covers a single price-per-unit issue (for hotels, price per
// night) and runs a small fixed number of rounds. Every well-formed request
// produces an accept/reject outcome; the only failure path is input
// validation. Outcomes are deterministic: identical inputs always yield
// identical outcomes, which the coordination engine relies on for a
// reproducible feasibility model.
package negotiation
