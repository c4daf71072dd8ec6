package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pscheid92/missioncontrol/internal/domain"
)

// ErrMalformed is returned for frames that are not a JSON object or carry a
// recognised field with the wrong type.
var ErrMalformed = errors.New("malformed message")

// Intent is a decoded inbound frame.
type Intent interface {
	intent()
}

type DirectionIntent struct {
	Direction domain.Direction
}

// MissionIntent carries the decoded patch together with the raw object as the
// client sent it, so the broadcast can echo it.
type MissionIntent struct {
	Patch domain.MissionPatch
	Raw   json.RawMessage
}

// UnknownIntent is any well-formed object the relay has no handler for.
type UnknownIntent struct{}

func (DirectionIntent) intent() {}
func (MissionIntent) intent()   {}
func (UnknownIntent) intent()   {}

type inboundFrame struct {
	Direction json.RawMessage `json:"direction"`
	Mission   json.RawMessage `json:"mission"`
}

type missionFields struct {
	ID          *int64  `json:"id"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
	RobotID     *int64  `json:"robot_id"`
}

// Decode parses one inbound text frame. A direction field takes precedence over a
// mission field when both are present.
func Decode(data []byte) (Intent, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrMalformed
	}

	var frame inboundFrame
	if err := json.Unmarshal(trimmed, &frame); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch {
	case present(frame.Direction):
		var dir string
		if err := json.Unmarshal(frame.Direction, &dir); err != nil {
			return nil, fmt.Errorf("%w: direction: %v", ErrMalformed, err)
		}
		return DirectionIntent{Direction: domain.Direction(dir)}, nil

	case present(frame.Mission):
		return decodeMission(frame.Mission)

	default:
		return UnknownIntent{}, nil
	}
}

func decodeMission(raw json.RawMessage) (Intent, error) {
	var fields missionFields
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: mission: %v", ErrMalformed, err)
	}
	if fields.ID == nil {
		return UnknownIntent{}, nil
	}

	return MissionIntent{
		Patch: domain.MissionPatch{
			ID:          *fields.ID,
			Name:        fields.Name,
			Description: fields.Description,
			RobotID:     fields.RobotID,
		},
		Raw: raw,
	}, nil
}

// present reports whether a field was sent with a non-null value.
func present(raw json.RawMessage) bool {
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}
