package domain

import (
	"context"
	"strconv"
)

// The arena is a virtual 640x480 field; robots move in fixed steps.
const (
	ArenaWidth  = 640.0
	ArenaHeight = 480.0
	StepSize    = 20.0
)

type Robot struct {
	ID        int64   `db:"id" json:"id"`
	Name      string  `db:"name" json:"name"`
	ModelName string  `db:"model_name" json:"model_name"`
	PoseX     float64 `db:"pose_x" json:"pose_x"`
	PoseY     float64 `db:"pose_y" json:"pose_y"`
}

func (r Robot) Position() Position {
	return Position{X: r.PoseX, Y: r.PoseY}
}

type Position struct {
	X float64
	Y float64
}

// InArena reports whether the position lies inside the arena bounds (inclusive).
func (p Position) InArena() bool {
	return p.X >= 0 && p.X <= ArenaWidth && p.Y >= 0 && p.Y <= ArenaHeight
}

// Direction is a movement intent. Values outside the four known ones are
// carried through unchanged and move nothing.
type Direction string

const (
	DirectionUp    Direction = "up"
	DirectionDown  Direction = "down"
	DirectionLeft  Direction = "left"
	DirectionRight Direction = "right"
)

func (d Direction) Known() bool {
	switch d {
	case DirectionUp, DirectionDown, DirectionLeft, DirectionRight:
		return true
	default:
		return false
	}
}

// GroupKey identifies one broadcast domain.
type GroupKey string

// RobotGroup derives the group key for a robot: "robot_<id>".
func RobotGroup(robotID int64) GroupKey {
	return GroupKey("robot_" + strconv.FormatInt(robotID, 10))
}

type RobotRepository interface {
	ListRobots(ctx context.Context) ([]Robot, error)
	GetRobot(ctx context.Context, robotID int64) (*Robot, error)
	CreateRobot(ctx context.Context, robot Robot) (*Robot, error)
	UpdateRobot(ctx context.Context, robot Robot) error
	DeleteRobot(ctx context.Context, robotID int64) error
}
