package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/pscheid92/missioncontrol/internal/adapter/metrics"
)

func TestMetricsHook_ProcessHook(t *testing.T) {
	m := metrics.NewRedisMetrics(prometheus.NewRegistry())
	hook := NewMetricsHook(m)
	ctx := context.Background()

	ok := hook.ProcessHook(func(context.Context, goredis.Cmder) error { return nil })
	missing := hook.ProcessHook(func(context.Context, goredis.Cmder) error { return goredis.Nil })
	broken := hook.ProcessHook(func(context.Context, goredis.Cmder) error { return errors.New("boom") })

	assert.NoError(t, ok(ctx, goredis.NewIntCmd(ctx, "publish", "c", "m")))
	assert.ErrorIs(t, missing(ctx, goredis.NewStringCmd(ctx, "get", "k")), goredis.Nil)
	assert.Error(t, broken(ctx, goredis.NewIntCmd(ctx, "publish", "c", "m")))

	assert.InDelta(t, 1, testutil.ToFloat64(m.OperationErrors.WithLabelValues("publish")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.OperationErrors.WithLabelValues("get")), 0)
	assert.Equal(t, 2, testutil.CollectAndCount(m.OperationDuration))
}

func TestMetricsHook_NilMetricsPassThrough(t *testing.T) {
	hook := NewMetricsHook(nil)
	ctx := context.Background()

	next := hook.ProcessHook(func(context.Context, goredis.Cmder) error { return errors.New("boom") })
	assert.EqualError(t, next(ctx, goredis.NewIntCmd(ctx, "publish")), "boom")
}
