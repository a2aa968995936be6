// Package coordination implements the top-level orchestration engine: it
// decomposes a composite task into capability requirements, selects the
// best available specialist agent per requirement from the discovery
// snapshot, and produces a feasibility verdict (success probability and
// estimated execution time) before any execution is committed.
//
// Infeasibility is a normal outcome, not a fault: a task with no eligible
// agent for a required capability completes with its success probability
// capped at the policy floor instead of raising an error. The engine holds
// no cross-request state; verdicts are pure functions of the task and the
// registry snapshot.
package coordination
