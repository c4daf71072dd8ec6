package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/missioncontrol/internal/adapter/metrics"
	"github.com/pscheid92/missioncontrol/internal/domain"
	"github.com/pscheid92/missioncontrol/internal/platform/config"
	"github.com/pscheid92/missioncontrol/internal/session"
)

type appService interface {
	session.Service

	ListRobots(ctx context.Context) ([]domain.Robot, error)
	GetRobot(ctx context.Context, robotID int64) (*domain.Robot, error)
	CreateRobot(ctx context.Context, robot domain.Robot) (*domain.Robot, error)
	UpdateRobot(ctx context.Context, robot domain.Robot) error
	DeleteRobot(ctx context.Context, robotID int64) error

	ListMissions(ctx context.Context) ([]domain.Mission, error)
	GetMission(ctx context.Context, missionID int64) (*domain.Mission, error)
	CreateMission(ctx context.Context, mission domain.Mission) (*domain.Mission, error)
	ReplaceMission(ctx context.Context, mission domain.Mission) error
	DeleteMission(ctx context.Context, missionID int64) error
}

// RelayDeps is what the websocket endpoint hands to each session.
type RelayDeps struct {
	Registry     session.Registry
	Publisher    session.Publisher
	Clock        clockwork.Clock
	RelayMetrics *metrics.RelayMetrics
	WSMetrics    *metrics.WebSocketMetrics
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	app      appService
	relay    RelayDeps
	limits   *ConnectionLimits
	upgrader websocket.Upgrader

	metricsRegistry *prometheus.Registry
	httpMetrics     *metrics.HTTPMetrics

	// sessionCtx outlives individual requests; Shutdown cancels it so every open
	// socket is closed with "going away".
	sessionCtx    context.Context
	cancelSession context.CancelFunc
	sessions      sync.WaitGroup

	healthChecks []HealthCheck
	startTime    time.Time
}

// NewServer wires the HTTP surface. reg may be nil, in which case /metrics is not
// served and HTTP requests are not instrumented.
func NewServer(cfg *config.Config, app appService, relay RelayDeps, healthChecks []HealthCheck, reg *prometheus.Registry) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	if relay.Clock == nil {
		relay.Clock = clockwork.NewRealClock()
	}

	sessionCtx, cancel := context.WithCancel(context.Background())

	srv := &Server{
		echo:   e,
		config: cfg,
		app:    app,
		relay:  relay,
		limits: NewConnectionLimits(
			int64(cfg.MaxWebSocketConnections),
			cfg.MaxConnectionsPerIP,
			cfg.ConnectionRate,
			cfg.ConnectionBurst,
		),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     NewCheckOrigin(cfg.AllowedOrigin, cfg.IsDevelopment()),
		},
		metricsRegistry: reg,
		sessionCtx:      sessionCtx,
		cancelSession:   cancel,
		healthChecks:    healthChecks,
		startTime:       time.Now(),
	}
	if reg != nil {
		srv.httpMetrics = metrics.NewHTTPMetrics(reg)
	}

	srv.registerRoutes()

	return srv
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests, closes every open session and waits for the
// session goroutines to return or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancelSession()

	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for sessions: %w", ctx.Err())
	}
}
