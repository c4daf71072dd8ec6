package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/pscheid92/missioncontrol/internal/domain"
)

// Event is an outbound broadcast.
type Event interface {
	// Name is a short label used for metrics and logs.
	Name() string
	payload() any
}

// RobotUpdate is broadcast after a move and echoes the requested direction.
type RobotUpdate struct {
	Direction domain.Direction
}

// MissionUpdate is broadcast after a mission patch and echoes it verbatim.
type MissionUpdate struct {
	Mission json.RawMessage
}

func (RobotUpdate) Name() string   { return "robot_update" }
func (MissionUpdate) Name() string { return "mission_update" }

func (e RobotUpdate) payload() any {
	return struct {
		Direction domain.Direction `json:"direction"`
	}{e.Direction}
}

func (e MissionUpdate) payload() any {
	return struct {
		Mission json.RawMessage `json:"mission"`
	}{e.Mission}
}

// Encode renders an event as a text frame payload.
func Encode(e Event) ([]byte, error) {
	data, err := json.Marshal(e.payload())
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", e.Name(), err)
	}
	return data, nil
}
