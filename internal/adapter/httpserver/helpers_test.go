package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/missioncontrol/internal/adapter/metrics"
	"github.com/pscheid92/missioncontrol/internal/adapter/sqlite"
	"github.com/pscheid92/missioncontrol/internal/app"
	"github.com/pscheid92/missioncontrol/internal/domain"
	"github.com/pscheid92/missioncontrol/internal/platform/config"
	"github.com/pscheid92/missioncontrol/internal/relay"
)

// stubApp satisfies appService for tests that never reach the application layer.
type stubApp struct {
	appService
}

type testServerOptions struct {
	healthChecks []HealthCheck
	configure    func(*config.Config)
}

type testServerOption func(*testServerOptions)

func withHealthChecks(checks ...HealthCheck) testServerOption {
	return func(o *testServerOptions) { o.healthChecks = checks }
}

func withConfig(fn func(*config.Config)) testServerOption {
	return func(o *testServerOptions) { o.configure = fn }
}

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:                  "development",
		Port:                    "0",
		MaxSubscribersPerGroup:  50,
		MaxWebSocketConnections: 100,
		MaxConnectionsPerIP:     50,
		ConnectionRate:          1000,
		ConnectionBurst:         1000,
	}
}

func newTestServer(t *testing.T, svc appService, opts ...testServerOption) *Server {
	t.Helper()

	var o testServerOptions
	for _, opt := range opts {
		opt(&o)
	}
	cfg := testConfig()
	if o.configure != nil {
		o.configure(cfg)
	}

	registry := relay.NewRegistry(clockwork.NewRealClock(), cfg.MaxSubscribersPerGroup, nil)
	t.Cleanup(registry.Stop)

	srv := NewServer(cfg, svc, RelayDeps{
		Registry:  registry,
		Publisher: relay.NewRouter(registry, nil),
	}, o.healthChecks, nil)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

// stack is a full server backed by a temporary SQLite store and a live relay.
type stack struct {
	server   *Server
	http     *httptest.Server
	store    domain.Store
	registry *relay.Registry
	reg      *prometheus.Registry
}

func newStack(t *testing.T, opts ...testServerOption) *stack {
	t.Helper()

	var o testServerOptions
	for _, opt := range opts {
		opt(&o)
	}
	cfg := testConfig()
	if o.configure != nil {
		o.configure(cfg)
	}

	store, err := sqlite.Open(context.Background(), "file:"+filepath.Join(t.TempDir(), "http.db"), nil)
	require.NoError(t, err)

	reg := metrics.NewRegistry()
	relayMetrics := metrics.NewRelayMetrics(reg)
	registry := relay.NewRegistry(clockwork.NewRealClock(), cfg.MaxSubscribersPerGroup, relayMetrics)

	srv := NewServer(cfg, app.NewService(store), RelayDeps{
		Registry:     registry,
		Publisher:    relay.NewRouter(registry, relayMetrics),
		RelayMetrics: relayMetrics,
		WSMetrics:    metrics.NewWebSocketMetrics(reg),
	}, o.healthChecks, reg)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
		ts.Close()
		registry.Stop()
		_ = store.Close()
	})

	return &stack{server: srv, http: ts, store: store, registry: registry, reg: reg}
}

func (s *stack) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, s.http.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.http.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}
