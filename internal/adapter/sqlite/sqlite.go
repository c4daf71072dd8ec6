// Package sqlite implements the entity store on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/pscheid92/missioncontrol/internal/adapter/metrics"
	"github.com/pscheid92/missioncontrol/internal/domain"
)

//go:embed schema.sql
var schema string

// pragmas are applied to every pooled connection.
var pragmas = []string{
	"_pragma=foreign_keys(1)",
	"_pragma=busy_timeout(5000)",
	"_pragma=journal_mode(WAL)",
}

// Store implements domain.Store on database/sql with the pure Go SQLite driver.
type Store struct {
	db      *sql.DB
	metrics *metrics.StoreMetrics
}

var _ domain.Store = (*Store)(nil)

// Open opens (creating if needed) the database at dsn and applies the schema.
// m may be nil.
func Open(ctx context.Context, dsn string, m *metrics.StoreMetrics) (*Store, error) {
	db, err := sql.Open("sqlite", withPragmas(dsn))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// single writer; avoids SQLITE_BUSY under concurrent sessions
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	slog.Info("SQLite store opened", "dsn", dsn)
	return &Store{db: db, metrics: m}, nil
}

func withPragmas(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(pragmas, "&")
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// observe records the duration and outcome of one store operation.
func (s *Store) observe(op string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.QueryDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil && !errors.Is(err, domain.ErrRobotNotFound) && !errors.Is(err, domain.ErrMissionNotFound) {
		s.metrics.QueryErrors.WithLabelValues(op).Inc()
	}
}

func (s *Store) GetRobotPosition(ctx context.Context, robotID int64) (pos domain.Position, err error) {
	defer func(start time.Time) { s.observe("GetRobotPosition", start, err) }(time.Now())

	err = s.db.QueryRowContext(ctx, `SELECT pose_x, pose_y FROM robots WHERE id = ?`, robotID).Scan(&pos.X, &pos.Y)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Position{}, domain.ErrRobotNotFound
	}
	if err != nil {
		return domain.Position{}, fmt.Errorf("failed to get robot position: %w", err)
	}
	return pos, nil
}

func (s *Store) SetRobotPosition(ctx context.Context, robotID int64, pos domain.Position) (err error) {
	defer func(start time.Time) { s.observe("SetRobotPosition", start, err) }(time.Now())

	res, err := s.db.ExecContext(ctx, `UPDATE robots SET pose_x = ?, pose_y = ? WHERE id = ?`, pos.X, pos.Y, robotID)
	if err != nil {
		return fmt.Errorf("failed to set robot position: %w", err)
	}
	return expectRow(res, domain.ErrRobotNotFound)
}

func (s *Store) ListRobots(ctx context.Context) (robots []domain.Robot, err error) {
	defer func(start time.Time) { s.observe("ListRobots", start, err) }(time.Now())

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, model_name, pose_x, pose_y FROM robots ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list robots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	robots = []domain.Robot{}
	for rows.Next() {
		var r domain.Robot
		if err := rows.Scan(&r.ID, &r.Name, &r.ModelName, &r.PoseX, &r.PoseY); err != nil {
			return nil, fmt.Errorf("failed to scan robot: %w", err)
		}
		robots = append(robots, r)
	}
	return robots, rows.Err()
}

func (s *Store) GetRobot(ctx context.Context, robotID int64) (_ *domain.Robot, err error) {
	defer func(start time.Time) { s.observe("GetRobot", start, err) }(time.Now())

	var r domain.Robot
	err = s.db.QueryRowContext(ctx, `SELECT id, name, model_name, pose_x, pose_y FROM robots WHERE id = ?`, robotID).
		Scan(&r.ID, &r.Name, &r.ModelName, &r.PoseX, &r.PoseY)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRobotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get robot: %w", err)
	}
	return &r, nil
}

func (s *Store) CreateRobot(ctx context.Context, robot domain.Robot) (_ *domain.Robot, err error) {
	defer func(start time.Time) { s.observe("CreateRobot", start, err) }(time.Now())

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO robots (name, model_name, pose_x, pose_y) VALUES (?, ?, ?, ?)`,
		robot.Name, robot.ModelName, robot.PoseX, robot.PoseY)
	if err != nil {
		return nil, fmt.Errorf("failed to create robot: %w", err)
	}
	if robot.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("failed to read robot id: %w", err)
	}
	return &robot, nil
}

func (s *Store) UpdateRobot(ctx context.Context, robot domain.Robot) (err error) {
	defer func(start time.Time) { s.observe("UpdateRobot", start, err) }(time.Now())

	res, err := s.db.ExecContext(ctx,
		`UPDATE robots SET name = ?, model_name = ?, pose_x = ?, pose_y = ? WHERE id = ?`,
		robot.Name, robot.ModelName, robot.PoseX, robot.PoseY, robot.ID)
	if err != nil {
		return fmt.Errorf("failed to update robot: %w", err)
	}
	return expectRow(res, domain.ErrRobotNotFound)
}

func (s *Store) DeleteRobot(ctx context.Context, robotID int64) (err error) {
	defer func(start time.Time) { s.observe("DeleteRobot", start, err) }(time.Now())

	res, err := s.db.ExecContext(ctx, `DELETE FROM robots WHERE id = ?`, robotID)
	if err != nil {
		return fmt.Errorf("failed to delete robot: %w", err)
	}
	return expectRow(res, domain.ErrRobotNotFound)
}

func (s *Store) ListMissions(ctx context.Context) (missions []domain.Mission, err error) {
	defer func(start time.Time) { s.observe("ListMissions", start, err) }(time.Now())

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, description, robot_id FROM missions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list missions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	missions = []domain.Mission{}
	for rows.Next() {
		var m domain.Mission
		if err := rows.Scan(&m.ID, &m.Name, &m.Description, &m.RobotID); err != nil {
			return nil, fmt.Errorf("failed to scan mission: %w", err)
		}
		missions = append(missions, m)
	}
	return missions, rows.Err()
}

func (s *Store) GetMission(ctx context.Context, missionID int64) (_ *domain.Mission, err error) {
	defer func(start time.Time) { s.observe("GetMission", start, err) }(time.Now())

	var m domain.Mission
	err = s.db.QueryRowContext(ctx, `SELECT id, name, description, robot_id FROM missions WHERE id = ?`, missionID).
		Scan(&m.ID, &m.Name, &m.Description, &m.RobotID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrMissionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mission: %w", err)
	}
	return &m, nil
}

func (s *Store) CreateMission(ctx context.Context, mission domain.Mission) (_ *domain.Mission, err error) {
	defer func(start time.Time) { s.observe("CreateMission", start, err) }(time.Now())

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO missions (name, description, robot_id) VALUES (?, ?, ?)`,
		mission.Name, mission.Description, mission.RobotID)
	if isForeignKeyViolation(err) {
		return nil, domain.ErrInvalidReference
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create mission: %w", err)
	}
	if mission.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("failed to read mission id: %w", err)
	}
	return &mission, nil
}

func (s *Store) SetMission(ctx context.Context, mission domain.Mission) (err error) {
	defer func(start time.Time) { s.observe("SetMission", start, err) }(time.Now())

	res, err := s.db.ExecContext(ctx,
		`UPDATE missions SET name = ?, description = ?, robot_id = ? WHERE id = ?`,
		mission.Name, mission.Description, mission.RobotID, mission.ID)
	if isForeignKeyViolation(err) {
		return domain.ErrInvalidReference
	}
	if err != nil {
		return fmt.Errorf("failed to set mission: %w", err)
	}
	return expectRow(res, domain.ErrMissionNotFound)
}

func (s *Store) DeleteMission(ctx context.Context, missionID int64) (err error) {
	defer func(start time.Time) { s.observe("DeleteMission", start, err) }(time.Now())

	res, err := s.db.ExecContext(ctx, `DELETE FROM missions WHERE id = ?`, missionID)
	if err != nil {
		return fmt.Errorf("failed to delete mission: %w", err)
	}
	return expectRow(res, domain.ErrMissionNotFound)
}

func expectRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func isForeignKeyViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	code := se.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY ||
		(code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "FOREIGN KEY"))
}
