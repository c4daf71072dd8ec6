package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pscheid92/missioncontrol/internal/domain"
	"github.com/pscheid92/missioncontrol/internal/mutator"
	apperrors "github.com/pscheid92/missioncontrol/internal/platform/errors"
)

const (
	storeTimeout = 2 * time.Second
	maxNameLen   = 100
)

// Service is the application layer. It orchestrates all use cases.
type Service struct {
	store domain.Store
}

func NewService(store domain.Store) *Service {
	return &Service{store: store}
}

// MoveRobot loads the robot position, applies one step in direction d and persists the
// result before returning it. Concurrent moves of the same robot are last-write-wins.
func (s *Service) MoveRobot(ctx context.Context, robotID int64, d domain.Direction) (domain.Position, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	pos, err := s.store.GetRobotPosition(ctx, robotID)
	if err != nil {
		return domain.Position{}, fmt.Errorf("load robot %d: %w", robotID, err)
	}

	next := mutator.ApplyDirection(pos, d)
	if next == pos {
		return pos, nil
	}

	if err := s.store.SetRobotPosition(ctx, robotID, next); err != nil {
		return domain.Position{}, fmt.Errorf("save robot %d: %w", robotID, err)
	}
	return next, nil
}

// UpdateMission merges patch into the stored mission. A missing mission is not an error:
// it returns (nil, nil) and nothing is written.
func (s *Service) UpdateMission(ctx context.Context, patch domain.MissionPatch) (*domain.Mission, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	current, err := s.store.GetMission(ctx, patch.ID)
	if errors.Is(err, domain.ErrMissionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load mission %d: %w", patch.ID, err)
	}

	updated := mutator.ApplyMissionPatch(*current, patch)
	if err := s.store.SetMission(ctx, updated); err != nil {
		return nil, fmt.Errorf("save mission %d: %w", patch.ID, err)
	}
	return &updated, nil
}

// --- CRUD ---

func (s *Service) ListRobots(ctx context.Context) ([]domain.Robot, error) {
	return s.store.ListRobots(ctx)
}

func (s *Service) GetRobot(ctx context.Context, robotID int64) (*domain.Robot, error) {
	return s.store.GetRobot(ctx, robotID)
}

func (s *Service) CreateRobot(ctx context.Context, robot domain.Robot) (*domain.Robot, error) {
	if err := validateRobot(robot); err != nil {
		return nil, err
	}
	return s.store.CreateRobot(ctx, robot)
}

func (s *Service) UpdateRobot(ctx context.Context, robot domain.Robot) error {
	if err := validateRobot(robot); err != nil {
		return err
	}
	return s.store.UpdateRobot(ctx, robot)
}

// DeleteRobot removes the robot and, through the foreign key, its missions.
func (s *Service) DeleteRobot(ctx context.Context, robotID int64) error {
	return s.store.DeleteRobot(ctx, robotID)
}

func (s *Service) ListMissions(ctx context.Context) ([]domain.Mission, error) {
	return s.store.ListMissions(ctx)
}

func (s *Service) GetMission(ctx context.Context, missionID int64) (*domain.Mission, error) {
	return s.store.GetMission(ctx, missionID)
}

func (s *Service) CreateMission(ctx context.Context, mission domain.Mission) (*domain.Mission, error) {
	if err := validateMission(mission); err != nil {
		return nil, err
	}
	return s.store.CreateMission(ctx, mission)
}

// ReplaceMission overwrites every field of an existing mission.
func (s *Service) ReplaceMission(ctx context.Context, mission domain.Mission) error {
	if err := validateMission(mission); err != nil {
		return err
	}
	return s.store.SetMission(ctx, mission)
}

func (s *Service) DeleteMission(ctx context.Context, missionID int64) error {
	return s.store.DeleteMission(ctx, missionID)
}

func validateRobot(r domain.Robot) error {
	if err := validateName("name", r.Name); err != nil {
		return err
	}
	if err := validateName("model_name", r.ModelName); err != nil {
		return err
	}
	if !r.Position().InArena() {
		return apperrors.ValidationError("pose is outside the arena").
			WithContext("pose_x", r.PoseX).
			WithContext("pose_y", r.PoseY)
	}
	return nil
}

func validateMission(m domain.Mission) error {
	if err := validateName("name", m.Name); err != nil {
		return err
	}
	if m.RobotID <= 0 {
		return apperrors.ValidationError("robot_id is required")
	}
	return nil
}

func validateName(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return apperrors.ValidationError(field + " is required")
	}
	if utf8.RuneCountInString(value) > maxNameLen {
		return apperrors.ValidationError(fmt.Sprintf("%s must be at most %d characters", field, maxNameLen))
	}
	return nil
}
