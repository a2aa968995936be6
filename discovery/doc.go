// Package discovery provides the agent registry, health probing, and
// ecosystem health aggregation for the tripmesh coordination plane.
//
// The registry holds the last-known state of every specialist agent
// (capabilities, endpoint, health, latency) behind a pluggable Store.
// A Prober checks each agent's liveness endpoint with a bounded timeout,
// and the Service fans probes out concurrently, sweeps stale records, and
// computes a deterministic ecosystem health score over the live agent set.
//
// A failed probe downgrades a single agent to StatusUnreachable and never
// aborts a discovery cycle; only a fault in the backing store does.
package discovery
