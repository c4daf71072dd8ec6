package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/missioncontrol/internal/adapter/httpserver"
	"github.com/pscheid92/missioncontrol/internal/adapter/metrics"
	"github.com/pscheid92/missioncontrol/internal/adapter/postgres"
	"github.com/pscheid92/missioncontrol/internal/adapter/redis"
	"github.com/pscheid92/missioncontrol/internal/adapter/sqlite"
	"github.com/pscheid92/missioncontrol/internal/app"
	"github.com/pscheid92/missioncontrol/internal/domain"
	"github.com/pscheid92/missioncontrol/internal/platform/config"
	"github.com/pscheid92/missioncontrol/internal/platform/logging"
	"github.com/pscheid92/missioncontrol/internal/platform/retry"
	"github.com/pscheid92/missioncontrol/internal/platform/version"
	"github.com/pscheid92/missioncontrol/internal/relay"
	"github.com/pscheid92/missioncontrol/internal/session"
)

const (
	connectTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func startupPolicy(what string) retry.Policy {
	p := retry.StartupPolicy
	p.OnRetry = func(attempt int, err error, backoff time.Duration) {
		slog.Warn("Connect failed, retrying", "target", what, "attempt", attempt, "backoff", backoff, "error", err)
	}
	return p
}

func setupStore(cfg *config.Config, reg prometheus.Registerer) domain.Store {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	storeMetrics := metrics.NewStoreMetrics(reg)

	var (
		store domain.Store
		err   error
	)
	switch cfg.StoreDriver() {
	case config.StoreDriverPostgres:
		store, err = retry.Do(ctx, startupPolicy("postgres"), retry.Always, func(ctx context.Context) (domain.Store, error) {
			pool, err := postgres.Connect(ctx, cfg.DatabaseURL, storeMetrics)
			if err != nil {
				return nil, err
			}
			if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
				pool.Close()
				return nil, err
			}
			return postgres.NewStore(pool), nil
		})
	default:
		store, err = retry.Do(ctx, startupPolicy("sqlite"), retry.Always, func(ctx context.Context) (domain.Store, error) {
			s, err := sqlite.Open(ctx, cfg.SQLiteDSN(), storeMetrics)
			if err != nil {
				return nil, err
			}
			return s, nil
		})
	}
	if err != nil {
		slog.Error("Failed to open entity store", "driver", cfg.StoreDriver(), "error", err)
		os.Exit(1)
	}

	slog.Info("Entity store ready", "driver", cfg.StoreDriver())
	return store
}

func setupRedis(cfg *config.Config, m *metrics.RedisMetrics) *goredis.Client {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	client, err := retry.Do(ctx, startupPolicy("redis"), retry.Always, func(ctx context.Context) (*goredis.Client, error) {
		return redis.NewClient(ctx, cfg.RedisURL, m)
	})
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func runGracefulShutdown(srv *httpserver.Server, registry *relay.Registry, stopBridge context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		registry.Stop()
		stopBridge()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "version", version.Get().String(), "env", cfg.AppEnv, "port", cfg.Port)

	reg := metrics.NewRegistry()
	relayMetrics := metrics.NewRelayMetrics(reg)
	wsMetrics := metrics.NewWebSocketMetrics(reg)

	store := setupStore(cfg, reg)
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("Failed to close entity store", "error", err)
		}
	}()

	registry := relay.NewRegistry(clock, cfg.MaxSubscribersPerGroup, relayMetrics)
	router := relay.NewRouter(registry, relayMetrics)

	healthChecks := []httpserver.HealthCheck{{Name: "store", Check: store.Ping}}

	var publisher session.Publisher = router
	bridgeCtx, stopBridge := context.WithCancel(context.Background())
	defer stopBridge()

	if cfg.RedisURL != "" {
		redisMetrics := metrics.NewRedisMetrics(reg)
		redisClient := setupRedis(cfg, redisMetrics)
		defer func() { _ = redisClient.Close() }()

		bridge := redis.NewBridge(redisClient, router, redisMetrics)
		if err := bridge.Start(bridgeCtx); err != nil {
			slog.Error("Failed to start Redis bridge", "error", err)
			os.Exit(1)
		}
		publisher = bridge
		healthChecks = append(healthChecks, httpserver.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
		slog.Info("Cross-instance fan-out enabled")
	}

	appSvc := app.NewService(store)

	srv := httpserver.NewServer(cfg, appSvc, httpserver.RelayDeps{
		Registry:     registry,
		Publisher:    publisher,
		Clock:        clock,
		RelayMetrics: relayMetrics,
		WSMetrics:    wsMetrics,
	}, healthChecks, reg)

	done := runGracefulShutdown(srv, registry, stopBridge)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
