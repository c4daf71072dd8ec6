package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pscheid92/missioncontrol/internal/domain"
)

const foreignKeyViolation = "23503"

// Store implements domain.Store on a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ domain.Store = (*Store)(nil)

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

const getRobotPosition = `-- name: GetRobotPosition
SELECT pose_x, pose_y FROM robots WHERE id = $1`

func (s *Store) GetRobotPosition(ctx context.Context, robotID int64) (domain.Position, error) {
	var pos domain.Position
	err := s.pool.QueryRow(ctx, getRobotPosition, robotID).Scan(&pos.X, &pos.Y)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Position{}, domain.ErrRobotNotFound
	}
	if err != nil {
		return domain.Position{}, fmt.Errorf("failed to get robot position: %w", err)
	}
	return pos, nil
}

const setRobotPosition = `-- name: SetRobotPosition
UPDATE robots SET pose_x = $2, pose_y = $3 WHERE id = $1`

func (s *Store) SetRobotPosition(ctx context.Context, robotID int64, pos domain.Position) error {
	tag, err := s.pool.Exec(ctx, setRobotPosition, robotID, pos.X, pos.Y)
	if err != nil {
		return fmt.Errorf("failed to set robot position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRobotNotFound
	}
	return nil
}

const listRobots = `-- name: ListRobots
SELECT id, name, model_name, pose_x, pose_y FROM robots ORDER BY id`

func (s *Store) ListRobots(ctx context.Context) ([]domain.Robot, error) {
	rows, err := s.pool.Query(ctx, listRobots)
	if err != nil {
		return nil, fmt.Errorf("failed to list robots: %w", err)
	}
	robots, err := pgx.CollectRows(rows, pgx.RowToStructByName[domain.Robot])
	if err != nil {
		return nil, fmt.Errorf("failed to scan robots: %w", err)
	}
	return robots, nil
}

const getRobot = `-- name: GetRobot
SELECT id, name, model_name, pose_x, pose_y FROM robots WHERE id = $1`

func (s *Store) GetRobot(ctx context.Context, robotID int64) (*domain.Robot, error) {
	rows, err := s.pool.Query(ctx, getRobot, robotID)
	if err != nil {
		return nil, fmt.Errorf("failed to get robot: %w", err)
	}
	robot, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[domain.Robot])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrRobotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan robot: %w", err)
	}
	return &robot, nil
}

const createRobot = `-- name: CreateRobot
INSERT INTO robots (name, model_name, pose_x, pose_y) VALUES ($1, $2, $3, $4) RETURNING id`

func (s *Store) CreateRobot(ctx context.Context, robot domain.Robot) (*domain.Robot, error) {
	err := s.pool.QueryRow(ctx, createRobot, robot.Name, robot.ModelName, robot.PoseX, robot.PoseY).Scan(&robot.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create robot: %w", err)
	}
	return &robot, nil
}

const updateRobot = `-- name: UpdateRobot
UPDATE robots SET name = $2, model_name = $3, pose_x = $4, pose_y = $5 WHERE id = $1`

func (s *Store) UpdateRobot(ctx context.Context, robot domain.Robot) error {
	tag, err := s.pool.Exec(ctx, updateRobot, robot.ID, robot.Name, robot.ModelName, robot.PoseX, robot.PoseY)
	if err != nil {
		return fmt.Errorf("failed to update robot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRobotNotFound
	}
	return nil
}

const deleteRobot = `-- name: DeleteRobot
DELETE FROM robots WHERE id = $1`

func (s *Store) DeleteRobot(ctx context.Context, robotID int64) error {
	tag, err := s.pool.Exec(ctx, deleteRobot, robotID)
	if err != nil {
		return fmt.Errorf("failed to delete robot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRobotNotFound
	}
	return nil
}

const listMissions = `-- name: ListMissions
SELECT id, name, description, robot_id FROM missions ORDER BY id`

func (s *Store) ListMissions(ctx context.Context) ([]domain.Mission, error) {
	rows, err := s.pool.Query(ctx, listMissions)
	if err != nil {
		return nil, fmt.Errorf("failed to list missions: %w", err)
	}
	missions, err := pgx.CollectRows(rows, pgx.RowToStructByName[domain.Mission])
	if err != nil {
		return nil, fmt.Errorf("failed to scan missions: %w", err)
	}
	return missions, nil
}

const getMission = `-- name: GetMission
SELECT id, name, description, robot_id FROM missions WHERE id = $1`

func (s *Store) GetMission(ctx context.Context, missionID int64) (*domain.Mission, error) {
	rows, err := s.pool.Query(ctx, getMission, missionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get mission: %w", err)
	}
	mission, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[domain.Mission])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrMissionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan mission: %w", err)
	}
	return &mission, nil
}

const createMission = `-- name: CreateMission
INSERT INTO missions (name, description, robot_id) VALUES ($1, $2, $3) RETURNING id`

func (s *Store) CreateMission(ctx context.Context, mission domain.Mission) (*domain.Mission, error) {
	err := s.pool.QueryRow(ctx, createMission, mission.Name, mission.Description, mission.RobotID).Scan(&mission.ID)
	if isForeignKeyViolation(err) {
		return nil, domain.ErrInvalidReference
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create mission: %w", err)
	}
	return &mission, nil
}

const setMission = `-- name: SetMission
UPDATE missions SET name = $2, description = $3, robot_id = $4 WHERE id = $1`

func (s *Store) SetMission(ctx context.Context, mission domain.Mission) error {
	tag, err := s.pool.Exec(ctx, setMission, mission.ID, mission.Name, mission.Description, mission.RobotID)
	if isForeignKeyViolation(err) {
		return domain.ErrInvalidReference
	}
	if err != nil {
		return fmt.Errorf("failed to set mission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMissionNotFound
	}
	return nil
}

const deleteMission = `-- name: DeleteMission
DELETE FROM missions WHERE id = $1`

func (s *Store) DeleteMission(ctx context.Context, missionID int64) error {
	tag, err := s.pool.Exec(ctx, deleteMission, missionID)
	if err != nil {
		return fmt.Errorf("failed to delete mission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMissionNotFound
	}
	return nil
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation
}
