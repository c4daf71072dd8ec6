package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/missioncontrol/internal/adapter/metrics"
	"github.com/pscheid92/missioncontrol/internal/domain"
	"github.com/pscheid92/missioncontrol/internal/protocol"
	"github.com/pscheid92/missioncontrol/internal/relay"
)

type delivery struct {
	group domain.GroupKey
	data  string
}

// recordingDeliverer stands in for the local router.
type recordingDeliverer struct {
	mu         sync.Mutex
	deliveries []delivery
	encoded    []string
}

func (r *recordingDeliverer) Encode(event protocol.Event) ([]byte, error) {
	data, err := protocol.Encode(event)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.encoded = append(r.encoded, event.Name())
	return data, nil
}

func (r *recordingDeliverer) Deliver(_ context.Context, group domain.GroupKey, data []byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, delivery{group: group, data: string(data)})
	return 1
}

func (r *recordingDeliverer) all() []delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]delivery(nil), r.deliveries...)
}

func TestChannelNaming(t *testing.T) {
	assert.Equal(t, "missioncontrol:robot_7", channelFor(domain.RobotGroup(7)))

	group, ok := groupFor("missioncontrol:robot_7")
	assert.True(t, ok)
	assert.Equal(t, domain.GroupKey("robot_7"), group)

	_, ok = groupFor("other:robot_7")
	assert.False(t, ok)
	_, ok = groupFor("missioncontrol:")
	assert.False(t, ok)
}

func TestBridge_PublishFallsBackToLocalDelivery(t *testing.T) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })

	m := metrics.NewRedisMetrics(prometheus.NewRegistry())
	local := &recordingDeliverer{}
	bridge := NewBridge(rdb, local, m)

	err := bridge.Publish(context.Background(), "robot_1", protocol.RobotUpdate{Direction: domain.DirectionUp})
	require.NoError(t, err)

	assert.Equal(t, []delivery{{group: "robot_1", data: `{"direction":"up"}`}}, local.all())
	assert.InDelta(t, 1, testutil.ToFloat64(m.PublishFallbacks), 0)
}

func TestBridge_PublishCountsThroughRouter(t *testing.T) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })

	relayMetrics := metrics.NewRelayMetrics(prometheus.NewRegistry())
	registry := relay.NewRegistry(clockwork.NewRealClock(), 0, relayMetrics)
	t.Cleanup(registry.Stop)

	bridge := NewBridge(rdb, relay.NewRouter(registry, relayMetrics), nil)
	require.NoError(t, bridge.Publish(context.Background(), "robot_1", protocol.RobotUpdate{Direction: domain.DirectionUp}))
	require.NoError(t, bridge.Publish(context.Background(), "robot_1", protocol.MissionUpdate{Mission: []byte(`{"id":1}`)}))

	assert.InDelta(t, 1, testutil.ToFloat64(relayMetrics.EventsPublished.WithLabelValues(protocol.RobotUpdate{}.Name())), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(relayMetrics.EventsPublished.WithLabelValues(protocol.MissionUpdate{}.Name())), 0)
}
