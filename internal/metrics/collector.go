// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector registers and records tripmesh metrics on a caller-supplied
// registerer so the /metrics endpoint and tests can each own a registry.
type Collector struct {
	// HTTP boundary
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Discovery
	probesTotal      *prometheus.CounterVec
	probeDuration    *prometheus.HistogramVec
	discoveryCycles  prometheus.Counter
	agentsDiscovered prometheus.Gauge
	agentsActive     prometheus.Gauge
	ecosystemHealth  prometheus.Gauge
	staleAgentsSwept prometheus.Counter

	// Negotiation
	negotiationsTotal *prometheus.CounterVec
	negotiationRounds prometheus.Histogram

	// Coordination
	coordinationsTotal *prometheus.CounterVec
	successProbability prometheus.Histogram

	logger *zap.Logger
}

// NewCollector creates a metrics collector registered on reg.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.probesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_probes_total",
			Help:      "Total number of agent health probes",
		},
		[]string{"status"},
	)

	c.probeDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_probe_duration_seconds",
			Help:      "Agent health probe round-trip duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"status"},
	)

	c.discoveryCycles = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_cycles_total",
			Help:      "Total number of completed discovery cycles",
		},
	)

	c.agentsDiscovered = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "agents_discovered",
			Help:      "Number of agents in the registry after the last cycle",
		},
	)

	c.agentsActive = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "agents_active",
			Help:      "Number of healthy or degraded agents after the last cycle",
		},
	)

	c.ecosystemHealth = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ecosystem_health_score",
			Help:      "Ecosystem health score on the 0-100 scale",
		},
	)

	c.staleAgentsSwept = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_agents_swept_total",
			Help:      "Total number of agents removed by staleness sweeps",
		},
	)

	c.negotiationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "negotiations_total",
			Help:      "Total number of budget negotiations by result",
		},
		[]string{"result"}, // accepted, countered, rejected
	)

	c.negotiationRounds = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "negotiation_rounds",
			Help:      "Rounds taken per negotiation",
			Buckets:   []float64{1, 2, 3, 4, 5, 8},
		},
	)

	c.coordinationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coordinations_total",
			Help:      "Total number of coordination requests by outcome",
		},
		[]string{"task_type", "outcome"}, // outcome: complete, error
	)

	c.successProbability = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "coordination_success_probability",
			Help:      "Success probability of produced verdicts",
			Buckets:   []float64{0.1, 0.25, 0.5, 0.6, 0.75, 0.9, 1},
		},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// RecordHTTPRequest records one handled HTTP request.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordProbe records one agent health probe.
func (c *Collector) RecordProbe(status string, duration time.Duration) {
	c.probesTotal.WithLabelValues(status).Inc()
	c.probeDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordDiscoveryCycle records the outcome of one discovery cycle.
func (c *Collector) RecordDiscoveryCycle(discovered, active int, healthScore float64, swept int) {
	c.discoveryCycles.Inc()
	c.agentsDiscovered.Set(float64(discovered))
	c.agentsActive.Set(float64(active))
	c.ecosystemHealth.Set(healthScore)
	c.staleAgentsSwept.Add(float64(swept))
}

// RecordNegotiation records one completed negotiation.
func (c *Collector) RecordNegotiation(result string, rounds int) {
	c.negotiationsTotal.WithLabelValues(result).Inc()
	c.negotiationRounds.Observe(float64(rounds))
}

// RecordCoordination records one coordination request.
func (c *Collector) RecordCoordination(taskType, outcome string, probability float64) {
	c.coordinationsTotal.WithLabelValues(taskType, outcome).Inc()
	if outcome == "complete" {
		c.successProbability.Observe(probability)
	}
}

// statusCode buckets an HTTP status code into its class.
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
