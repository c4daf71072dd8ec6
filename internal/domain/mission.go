package domain

import "context"

type Mission struct {
	ID          int64  `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
	RobotID     int64  `db:"robot_id" json:"robot_id"`
}

// MissionPatch carries a partial mission update. Nil fields keep the stored value.
type MissionPatch struct {
	ID          int64
	Name        *string
	Description *string
	RobotID     *int64
}

type MissionRepository interface {
	ListMissions(ctx context.Context) ([]Mission, error)
	GetMission(ctx context.Context, missionID int64) (*Mission, error)
	CreateMission(ctx context.Context, mission Mission) (*Mission, error)
	SetMission(ctx context.Context, mission Mission) error
	DeleteMission(ctx context.Context, missionID int64) error
}
