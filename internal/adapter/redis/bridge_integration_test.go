package redis

import (
	"context"
	"flag"
	"fmt"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/pscheid92/missioncontrol/internal/domain"
	"github.com/pscheid92/missioncontrol/internal/protocol"
)

var testRedisURL string

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start redis container: %v\n", err)
		os.Exit(1)
	}

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get redis endpoint: %v\n", err)
		os.Exit(1)
	}
	testRedisURL = "redis://" + endpoint

	code := m.Run()

	_ = container.Terminate(ctx)
	os.Exit(code)
}

func setupTestClient(t *testing.T) *goredis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	client, err := NewClient(context.Background(), testRedisURL, nil)
	require.NoError(t, err)
	require.NoError(t, client.FlushAll(context.Background()).Err())
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNewClient_Connects(t *testing.T) {
	client := setupTestClient(t)
	require.NoError(t, client.Ping(context.Background()).Err())
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := NewClient(context.Background(), "not a url", nil)
	assert.Error(t, err)
}

func TestBridge_FansOutAcrossInstances(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	localA, localB := &recordingDeliverer{}, &recordingDeliverer{}
	bridgeA := NewBridge(setupTestClient(t), localA, nil)
	bridgeB := NewBridge(setupTestClient(t), localB, nil)
	require.NoError(t, bridgeA.Start(ctx))
	require.NoError(t, bridgeB.Start(ctx))

	require.NoError(t, bridgeA.Publish(ctx, "robot_3", protocol.RobotUpdate{Direction: domain.DirectionLeft}))

	want := []delivery{{group: "robot_3", data: `{"direction":"left"}`}}
	for _, local := range []*recordingDeliverer{localA, localB} {
		assert.Eventually(t, func() bool { return len(local.all()) == 1 }, 2*time.Second, 10*time.Millisecond)
		assert.Equal(t, want, local.all())
	}
}

func TestBridge_IgnoresOtherChannels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := setupTestClient(t)
	local := &recordingDeliverer{}
	require.NoError(t, NewBridge(client, local, nil).Start(ctx))

	require.NoError(t, client.Publish(ctx, "missioncontrol:other", "x").Err())
	require.NoError(t, client.Publish(ctx, "missioncontrol:robot_1", `{"direction":"up"}`).Err())

	assert.Eventually(t, func() bool { return len(local.all()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, domain.GroupKey("robot_1"), local.all()[0].group)
}
