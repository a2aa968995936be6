package discovery

// statusWeight is the per-agent contribution to the ecosystem health score.
func statusWeight(status AgentStatus) float64 {
	switch status {
	case StatusHealthy:
		return 1.0
	case StatusDegraded:
		return 0.5
	default:
		// StatusUnreachable and StatusUnknown contribute nothing.
		return 0.0
	}
}

// HealthScore computes the ecosystem health score over the given agent set
// as 100 times the equally-weighted average of per-agent contributions:
// healthy 1.0, degraded 0.5, unreachable or unknown 0.0.
//
// The score is a pure function of the records: identical sets always yield
// the identical score, and the empty set scores 0 rather than NaN.
func HealthScore(records []*AgentRecord) float64 {
	if len(records) == 0 {
		return 0.0
	}
	total := 0.0
	for _, record := range records {
		total += statusWeight(record.Status)
	}
	return total / float64(len(records)) * 100.0
}
