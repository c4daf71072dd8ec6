package relay

import (
	"context"
	"log/slog"

	"github.com/pscheid92/missioncontrol/internal/adapter/metrics"
	"github.com/pscheid92/missioncontrol/internal/domain"
	"github.com/pscheid92/missioncontrol/internal/protocol"
)

// Router delivers events to the members of a group on this instance.
type Router struct {
	registry *Registry
	metrics  *metrics.RelayMetrics
}

// NewRouter creates a router over registry. m may be nil.
func NewRouter(registry *Registry, m *metrics.RelayMetrics) *Router {
	return &Router{registry: registry, metrics: m}
}

// Publish encodes event once and delivers it to every current member of group,
// including the sender.
func (r *Router) Publish(ctx context.Context, group domain.GroupKey, event protocol.Event) error {
	data, err := r.Encode(event)
	if err != nil {
		return err
	}
	r.Deliver(ctx, group, data)
	return nil
}

// Encode renders event as a wire frame and counts it as published.
func (r *Router) Encode(event protocol.Event) ([]byte, error) {
	data, err := protocol.Encode(event)
	if err != nil {
		return nil, err
	}
	if r.metrics != nil {
		r.metrics.EventsPublished.WithLabelValues(event.Name()).Inc()
	}
	return data, nil
}

// Deliver hands an already encoded frame to every member of group and returns how many
// accepted it. Members that cannot take the frame are evicted; others are unaffected.
func (r *Router) Deliver(ctx context.Context, group domain.GroupKey, data []byte) int {
	delivered := 0
	for _, sub := range r.registry.Members(group) {
		if err := sub.Deliver(data); err != nil {
			r.evict(ctx, group, sub, err)
			continue
		}
		delivered++
	}

	if r.metrics != nil {
		r.metrics.Deliveries.Add(float64(delivered))
	}
	return delivered
}

func (r *Router) evict(ctx context.Context, group domain.GroupKey, sub Subscriber, cause error) {
	slog.WarnContext(ctx, "Evicting subscriber", "group", group, "subscriber_id", sub.ID(), "error", cause)
	if r.metrics != nil {
		r.metrics.Evictions.Inc()
	}

	r.registry.Leave(group, sub)
	// Close waits for the writer to drain; keep it off the publishing goroutine.
	go sub.Close(ClosePolicy, "slow consumer")
}
