package domain

import "context"

// EntityStore is the narrow read/update surface the relay pipeline needs.
type EntityStore interface {
	GetRobotPosition(ctx context.Context, robotID int64) (Position, error)
	SetRobotPosition(ctx context.Context, robotID int64, pos Position) error
	GetMission(ctx context.Context, missionID int64) (*Mission, error)
	SetMission(ctx context.Context, mission Mission) error
}

// Store is everything a backing database provides: the relay surface plus CRUD.
type Store interface {
	EntityStore
	RobotRepository
	MissionRepository
	Ping(ctx context.Context) error
	Close() error
}
