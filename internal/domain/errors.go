package domain

import "errors"

var (
	ErrRobotNotFound   = errors.New("robot not found")
	ErrMissionNotFound = errors.New("mission not found")
	// ErrInvalidReference is returned when a mission points at a robot that does not exist.
	ErrInvalidReference = errors.New("referenced robot does not exist")
)
