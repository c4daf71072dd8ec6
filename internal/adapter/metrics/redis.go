package metrics

import "github.com/prometheus/client_golang/prometheus"

// RedisMetrics holds Prometheus metrics for the Redis fan-out bridge.
type RedisMetrics struct {
	OperationDuration  *prometheus.HistogramVec
	OperationErrors    *prometheus.CounterVec
	CircuitState       prometheus.Gauge
	CircuitTransitions *prometheus.CounterVec
	BridgeMessages     *prometheus.CounterVec
	PublishFallbacks   prometheus.Counter
}

// NewRedisMetrics creates and registers Redis metrics on the given registry.
func NewRedisMetrics(reg prometheus.Registerer) *RedisMetrics {
	m := &RedisMetrics{
		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "redis",
			Name:      "operation_duration_seconds",
			Help:      "Duration of Redis commands in seconds, by command.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"command"}),
		OperationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "redis",
			Name:      "operation_errors_total",
			Help:      "Total number of failed Redis commands, by command.",
		}, []string{"command"}),
		CircuitState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "redis",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open).",
		}),
		CircuitTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "redis",
			Name:      "circuit_breaker_transitions_total",
			Help:      "Total number of circuit breaker state changes, by target state.",
		}, []string{"state"}),
		BridgeMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "redis",
			Name:      "bridge_messages_total",
			Help:      "Total number of bridge messages, by direction.",
		}, []string{"direction"}),
		PublishFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "redis",
			Name:      "publish_fallbacks_total",
			Help:      "Total number of publishes delivered locally because Redis was unavailable.",
		}),
	}

	reg.MustRegister(
		m.OperationDuration, m.OperationErrors, m.CircuitState,
		m.CircuitTransitions, m.BridgeMessages, m.PublishFallbacks,
	)
	return m
}
