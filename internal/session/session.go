// Package session drives one websocket connection through its lifecycle:
// join the robot's group, dispatch inbound intents, leave exactly once.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/pscheid92/missioncontrol/internal/adapter/metrics"
	"github.com/pscheid92/missioncontrol/internal/domain"
	"github.com/pscheid92/missioncontrol/internal/platform/correlation"
	"github.com/pscheid92/missioncontrol/internal/protocol"
	"github.com/pscheid92/missioncontrol/internal/relay"
)

type State int32

const (
	StateConnecting State = iota
	StateJoined
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	default:
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
}

// Registry is the membership surface a session needs.
type Registry interface {
	Join(group domain.GroupKey, sub relay.Subscriber) error
	Leave(group domain.GroupKey, sub relay.Subscriber)
}

// Publisher fans an event out to a group: the local router, or the Redis bridge.
type Publisher interface {
	Publish(ctx context.Context, group domain.GroupKey, event protocol.Event) error
}

// Service performs the store-backed state changes.
type Service interface {
	MoveRobot(ctx context.Context, robotID int64, d domain.Direction) (domain.Position, error)
	UpdateMission(ctx context.Context, patch domain.MissionPatch) (*domain.Mission, error)
}

// Inbound yields frames read from the client.
type Inbound interface {
	ReadMessage() (messageType int, data []byte, err error)
}

type Deps struct {
	Registry  Registry
	Publisher Publisher
	Service   Service
	Metrics   *metrics.RelayMetrics
}

type Session struct {
	robotID int64
	group   domain.GroupKey
	sub     relay.Subscriber
	in      Inbound
	deps    Deps

	state     atomic.Int32
	leaveOnce sync.Once
}

// New creates a session for robotID. sub receives broadcasts, in supplies client frames;
// for a relay.Client both are the same value.
func New(robotID int64, sub relay.Subscriber, in Inbound, deps Deps) *Session {
	return &Session{
		robotID: robotID,
		group:   domain.RobotGroup(robotID),
		sub:     sub,
		in:      in,
		deps:    deps,
	}
}

func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) Group() domain.GroupKey { return s.group }

// Run joins the group and processes inbound frames until the client disconnects, ctx
// is cancelled, or the store fails. Only a store failure or a failed join is returned
// as an error; a client going away is a normal end of session.
func (s *Session) Run(ctx context.Context) error {
	ctx = correlation.WithGroup(correlation.WithID(ctx, correlation.NewID()), string(s.group))
	log := slog.With("robot_id", s.robotID, "subscriber_id", s.sub.ID())

	if err := s.deps.Registry.Join(s.group, s.sub); err != nil {
		// A timed-out join may still be applied by the registry later; leaving removes it.
		s.close(relay.CloseTryAgainLater, "group unavailable", "join_failed")
		log.WarnContext(ctx, "Session join failed", "error", err)
		return fmt.Errorf("join %s: %w", s.group, err)
	}
	s.state.Store(int32(StateJoined))
	log.InfoContext(ctx, "Session joined")

	stop := context.AfterFunc(ctx, func() {
		s.close(relay.CloseGoingAway, "server shutting down", "shutdown")
	})
	defer stop()

	for {
		_, data, err := s.in.ReadMessage()
		if err != nil {
			s.close(relay.CloseNormal, "", "disconnect")
			log.DebugContext(ctx, "Session ended", "reason", err)
			return nil
		}

		if err := s.dispatch(ctx, data); err != nil {
			s.close(relay.CloseInternalError, "store unavailable", "store_error")
			log.ErrorContext(ctx, "Session closed on store failure", "error", err)
			return err
		}
	}
}

// close leaves the group and closes the subscriber. Only the first call has any effect.
func (s *Session) close(code int, reason, label string) {
	s.leaveOnce.Do(func() {
		s.state.Store(int32(StateClosed))
		s.deps.Registry.Leave(s.group, s.sub)
		s.sub.Close(code, reason)
		s.countClose(label)
	})
}

func (s *Session) dispatch(ctx context.Context, data []byte) error {
	intent, err := protocol.Decode(data)
	if err != nil {
		s.countInbound("malformed")
		slog.DebugContext(ctx, "Dropping malformed message", "error", err)
		return nil
	}

	switch in := intent.(type) {
	case protocol.DirectionIntent:
		s.countInbound("direction")
		return s.handleDirection(ctx, in)
	case protocol.MissionIntent:
		s.countInbound("mission")
		return s.handleMission(ctx, in)
	default:
		s.countInbound("unknown")
		return nil
	}
}

func (s *Session) handleDirection(ctx context.Context, in protocol.DirectionIntent) error {
	pos, err := s.deps.Service.MoveRobot(ctx, s.robotID, in.Direction)
	if errors.Is(err, domain.ErrRobotNotFound) {
		slog.WarnContext(ctx, "Move for unknown robot ignored", "robot_id", s.robotID)
		return nil
	}
	if err != nil {
		return err
	}

	slog.DebugContext(ctx, "Robot moved", "direction", in.Direction, "x", pos.X, "y", pos.Y)
	s.publish(ctx, protocol.RobotUpdate{Direction: in.Direction})
	return nil
}

func (s *Session) handleMission(ctx context.Context, in protocol.MissionIntent) error {
	_, err := s.deps.Service.UpdateMission(ctx, in.Patch)
	if errors.Is(err, domain.ErrInvalidReference) {
		slog.WarnContext(ctx, "Mission update references unknown robot", "mission_id", in.Patch.ID)
		return nil
	}
	if err != nil {
		return err
	}

	// The patch is echoed even when no mission matched.
	s.publish(ctx, protocol.MissionUpdate{Mission: in.Raw})
	return nil
}

// publish is at-most-once: a failed publish is logged and the session continues.
func (s *Session) publish(ctx context.Context, event protocol.Event) {
	if err := s.deps.Publisher.Publish(ctx, s.group, event); err != nil {
		slog.ErrorContext(ctx, "Publish failed", "event", event.Name(), "error", err)
	}
}

func (s *Session) countInbound(kind string) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.InboundMessages.WithLabelValues(kind).Inc()
	}
}

func (s *Session) countClose(reason string) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.SessionsClosed.WithLabelValues(reason).Inc()
	}
}
