package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRobotGroup(t *testing.T) {
	assert.Equal(t, GroupKey("robot_1"), RobotGroup(1))
	assert.Equal(t, GroupKey("robot_42"), RobotGroup(42))
}

func TestDirection_Known(t *testing.T) {
	for _, d := range []Direction{DirectionUp, DirectionDown, DirectionLeft, DirectionRight} {
		assert.True(t, d.Known(), d)
	}
	assert.False(t, Direction("north").Known())
	assert.False(t, Direction("").Known())
}

func TestPosition_InArena(t *testing.T) {
	assert.True(t, Position{X: 0, Y: 0}.InArena())
	assert.True(t, Position{X: 640, Y: 480}.InArena())
	assert.False(t, Position{X: -1, Y: 0}.InArena())
	assert.False(t, Position{X: 0, Y: 481}.InArena())
	assert.Equal(t, Position{X: 3, Y: 4}, Robot{PoseX: 3, PoseY: 4}.Position())
}
