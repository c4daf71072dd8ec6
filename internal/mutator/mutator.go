// Package mutator holds the pure state transitions applied to robots and missions.
package mutator

import "github.com/pscheid92/missioncontrol/internal/domain"

// ApplyDirection moves p one step in direction d, clamped to the arena.
// Unknown directions return p unchanged.
func ApplyDirection(p domain.Position, d domain.Direction) domain.Position {
	switch d {
	case domain.DirectionUp:
		p.Y = min(domain.ArenaHeight, p.Y+domain.StepSize)
	case domain.DirectionDown:
		p.Y = max(0, p.Y-domain.StepSize)
	case domain.DirectionLeft:
		p.X = max(0, p.X-domain.StepSize)
	case domain.DirectionRight:
		p.X = min(domain.ArenaWidth, p.X+domain.StepSize)
	}
	return p
}

// ApplyMissionPatch overwrites the fields present in patch. The mission id never changes.
func ApplyMissionPatch(m domain.Mission, patch domain.MissionPatch) domain.Mission {
	if patch.Name != nil {
		m.Name = *patch.Name
	}
	if patch.Description != nil {
		m.Description = *patch.Description
	}
	if patch.RobotID != nil {
		m.RobotID = *patch.RobotID
	}
	return m
}
