package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/missioncontrol/internal/adapter/metrics"
	"github.com/pscheid92/missioncontrol/internal/domain"
	"github.com/pscheid92/missioncontrol/internal/protocol"
)

const (
	channelPrefix = "missioncontrol:"
	robotPattern  = channelPrefix + "robot_*"
)

// LocalDeliverer encodes events and hands frames to the subscribers of a group on this
// instance. *relay.Router satisfies it.
type LocalDeliverer interface {
	Encode(event protocol.Event) ([]byte, error)
	Deliver(ctx context.Context, group domain.GroupKey, data []byte) int
}

// Bridge publishes events through Redis and delivers what it receives to the local router.
type Bridge struct {
	rdb     *goredis.Client
	local   LocalDeliverer
	metrics *metrics.RedisMetrics
}

// NewBridge creates a bridge. m may be nil.
func NewBridge(rdb *goredis.Client, local LocalDeliverer, m *metrics.RedisMetrics) *Bridge {
	return &Bridge{rdb: rdb, local: local, metrics: m}
}

func channelFor(group domain.GroupKey) string {
	return channelPrefix + string(group)
}

func groupFor(channel string) (domain.GroupKey, bool) {
	group, ok := strings.CutPrefix(channel, channelPrefix)
	return domain.GroupKey(group), ok && group != ""
}

// Publish encodes event and publishes it for every instance. When Redis is unreachable,
// or nobody is subscribed yet, the frame is delivered locally instead.
func (b *Bridge) Publish(ctx context.Context, group domain.GroupKey, event protocol.Event) error {
	data, err := b.local.Encode(event)
	if err != nil {
		return err
	}

	receivers, err := b.rdb.Publish(ctx, channelFor(group), data).Result()
	if err != nil || receivers == 0 {
		if err != nil {
			slog.WarnContext(ctx, "Redis publish failed, delivering locally", "group", group, "error", err)
		}
		if b.metrics != nil {
			b.metrics.PublishFallbacks.Inc()
		}
		b.local.Deliver(ctx, group, data)
		return nil
	}

	if b.metrics != nil {
		b.metrics.BridgeMessages.WithLabelValues("out").Inc()
	}
	return nil
}

// Start subscribes to every robot group and forwards messages until ctx is cancelled.
// It returns once the subscription is confirmed; forwarding runs in the background.
func (b *Bridge) Start(ctx context.Context) error {
	pubsub := b.rdb.PSubscribe(ctx, robotPattern)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", robotPattern, err)
	}

	slog.Info("Redis bridge subscribed", "pattern", robotPattern)
	go b.forward(ctx, pubsub)
	return nil
}

func (b *Bridge) forward(ctx context.Context, pubsub *goredis.PubSub) {
	defer func() { _ = pubsub.Close() }()

	msgCh := pubsub.Channel()
	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			group, ok := groupFor(msg.Channel)
			if !ok {
				slog.Warn("Ignoring message on unexpected channel", "channel", msg.Channel)
				continue
			}
			if b.metrics != nil {
				b.metrics.BridgeMessages.WithLabelValues("in").Inc()
			}
			b.local.Deliver(ctx, group, []byte(msg.Payload))
		case <-ctx.Done():
			if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
				slog.Warn("Redis bridge stopped", "error", err)
			}
			return
		}
	}
}
