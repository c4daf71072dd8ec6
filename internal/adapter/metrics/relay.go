package metrics

import "github.com/prometheus/client_golang/prometheus"

// RelayMetrics holds Prometheus metrics for the group registry and broadcast pipeline.
type RelayMetrics struct {
	Groups           prometheus.Gauge
	Subscribers      prometheus.Gauge
	JoinsRejected    *prometheus.CounterVec
	EventsPublished  *prometheus.CounterVec
	Deliveries       prometheus.Counter
	Evictions        prometheus.Counter
	InboundMessages  *prometheus.CounterVec
	SessionsClosed   *prometheus.CounterVec
	RegistryCmdDepth prometheus.Gauge
}

// NewRelayMetrics creates and registers relay metrics on the given registry.
func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	m := &RelayMetrics{
		Groups: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "groups",
			Help:      "Number of groups with at least one subscriber.",
		}),
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "subscribers",
			Help:      "Number of subscribers across all groups.",
		}),
		JoinsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "joins_rejected_total",
			Help:      "Total number of rejected group joins, by reason.",
		}, []string{"reason"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "events_published_total",
			Help:      "Total number of events published, by event.",
		}, []string{"event"}),
		Deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "deliveries_total",
			Help:      "Total number of frames queued to subscriber outboxes.",
		}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "evictions_total",
			Help:      "Total number of subscribers evicted after a failed delivery.",
		}),
		InboundMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "inbound_messages_total",
			Help:      "Total number of inbound client frames, by kind.",
		}, []string{"kind"}),
		SessionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "sessions_closed_total",
			Help:      "Total number of closed sessions, by reason.",
		}, []string{"reason"}),
		RegistryCmdDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "registry_command_channel_depth",
			Help:      "Pending commands in the registry command channel.",
		}),
	}

	reg.MustRegister(
		m.Groups, m.Subscribers, m.JoinsRejected, m.EventsPublished, m.Deliveries,
		m.Evictions, m.InboundMessages, m.SessionsClosed, m.RegistryCmdDepth,
	)
	return m
}
