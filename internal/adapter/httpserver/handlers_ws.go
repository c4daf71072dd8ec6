package httpserver

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	apperrors "github.com/pscheid92/missioncontrol/internal/platform/errors"
	"github.com/pscheid92/missioncontrol/internal/relay"
	"github.com/pscheid92/missioncontrol/internal/session"
)

func (s *Server) registerWebSocketRoutes() {
	s.echo.GET("/ws/robot/:robot_id/", s.handleRobotSocket)
}

func parseRobotID(raw string) (int64, bool) {
	if raw == "" {
		return 0, false
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func (s *Server) handleRobotSocket(c echo.Context) error {
	robotID, ok := parseRobotID(c.Param("robot_id"))
	if !ok {
		return apperrors.ValidationError("robot id must be a decimal number").WithContext("robot_id", c.Param("robot_id"))
	}

	ip := c.RealIP()
	if allowed, reason := s.limits.Acquire(ip); !allowed {
		if s.relay.WSMetrics != nil {
			s.relay.WSMetrics.ConnectionsRejected.WithLabelValues(string(reason)).Inc()
		}
		slog.WarnContext(c.Request().Context(), "WebSocket connection rejected", "reason", reason, "ip", ip)
		return echo.NewHTTPError(http.StatusTooManyRequests, "too many connections")
	}
	defer s.limits.Release(ip)

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written the error response.
		slog.DebugContext(c.Request().Context(), "WebSocket upgrade failed", "error", err)
		return nil
	}

	s.sessions.Add(1)
	defer s.sessions.Done()

	if s.relay.WSMetrics != nil {
		s.relay.WSMetrics.ActiveConnections.Inc()
		defer s.relay.WSMetrics.ActiveConnections.Dec()
	}

	client := relay.NewClient(conn, s.relay.Clock, s.relay.WSMetrics)
	sess := session.New(robotID, client, client, session.Deps{
		Registry:  s.relay.Registry,
		Publisher: s.relay.Publisher,
		Service:   s.app,
		Metrics:   s.relay.RelayMetrics,
	})

	if err := sess.Run(s.sessionCtx); err != nil {
		slog.WarnContext(c.Request().Context(), "Session ended with error", "robot_id", robotID, "error", err)
	}
	return nil
}
