// Package storetest holds the behaviour every domain.Store implementation must share.
package storetest

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/missioncontrol/internal/domain"
)

// Run exercises store against the shared contract. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) domain.Store) {
	t.Run("RobotPosition", func(t *testing.T) { testRobotPosition(t, newStore(t)) })
	t.Run("RobotCRUD", func(t *testing.T) { testRobotCRUD(t, newStore(t)) })
	t.Run("MissionCRUD", func(t *testing.T) { testMissionCRUD(t, newStore(t)) })
	t.Run("MissionReferences", func(t *testing.T) { testMissionReferences(t, newStore(t)) })
	t.Run("DeleteRobotCascades", func(t *testing.T) { testDeleteRobotCascades(t, newStore(t)) })
	t.Run("ConcurrentMoves", func(t *testing.T) { testConcurrentMoves(t, newStore(t)) })
}

// CreateRobot inserts a robot at the given pose.
func CreateRobot(t *testing.T, store domain.Store, name string, x, y float64) *domain.Robot {
	t.Helper()
	robot, err := store.CreateRobot(context.Background(), domain.Robot{Name: name, ModelName: "TB3", PoseX: x, PoseY: y})
	require.NoError(t, err)
	require.NotZero(t, robot.ID)
	return robot
}

func testRobotPosition(t *testing.T, store domain.Store) {
	ctx := context.Background()
	robot := CreateRobot(t, store, "R1", 100, 100)

	pos, err := store.GetRobotPosition(ctx, robot.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Position{X: 100, Y: 100}, pos)

	require.NoError(t, store.SetRobotPosition(ctx, robot.ID, domain.Position{X: 120, Y: 80}))
	pos, err = store.GetRobotPosition(ctx, robot.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Position{X: 120, Y: 80}, pos)

	_, err = store.GetRobotPosition(ctx, robot.ID+1000)
	assert.ErrorIs(t, err, domain.ErrRobotNotFound)
	assert.ErrorIs(t, store.SetRobotPosition(ctx, robot.ID+1000, domain.Position{}), domain.ErrRobotNotFound)
}

func testRobotCRUD(t *testing.T, store domain.Store) {
	ctx := context.Background()
	a := CreateRobot(t, store, "Alpha", 0, 0)
	b := CreateRobot(t, store, "Beta", 10, 20)

	robots, err := store.ListRobots(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.Robot{*a, *b}, robots)

	b.Name = "Beta-2"
	b.PoseX = 640
	require.NoError(t, store.UpdateRobot(ctx, *b))

	got, err := store.GetRobot(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, *b, *got)

	require.NoError(t, store.DeleteRobot(ctx, a.ID))
	_, err = store.GetRobot(ctx, a.ID)
	assert.ErrorIs(t, err, domain.ErrRobotNotFound)
	assert.ErrorIs(t, store.DeleteRobot(ctx, a.ID), domain.ErrRobotNotFound)
	assert.ErrorIs(t, store.UpdateRobot(ctx, *a), domain.ErrRobotNotFound)
}

func testMissionCRUD(t *testing.T, store domain.Store) {
	ctx := context.Background()
	robot := CreateRobot(t, store, "R1", 0, 0)
	other := CreateRobot(t, store, "R2", 0, 0)

	mission, err := store.CreateMission(ctx, domain.Mission{Name: "A", Description: "d", RobotID: robot.ID})
	require.NoError(t, err)
	require.NotZero(t, mission.ID)

	got, err := store.GetMission(ctx, mission.ID)
	require.NoError(t, err)
	assert.Equal(t, *mission, *got)

	updated := domain.Mission{ID: mission.ID, Name: "B", Description: "", RobotID: other.ID}
	require.NoError(t, store.SetMission(ctx, updated))
	got, err = store.GetMission(ctx, mission.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, *got)

	missions, err := store.ListMissions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.Mission{updated}, missions)

	require.NoError(t, store.DeleteMission(ctx, mission.ID))
	_, err = store.GetMission(ctx, mission.ID)
	assert.ErrorIs(t, err, domain.ErrMissionNotFound)
	assert.ErrorIs(t, store.DeleteMission(ctx, mission.ID), domain.ErrMissionNotFound)
	assert.ErrorIs(t, store.SetMission(ctx, updated), domain.ErrMissionNotFound)
}

func testMissionReferences(t *testing.T, store domain.Store) {
	ctx := context.Background()
	robot := CreateRobot(t, store, "R1", 0, 0)

	_, err := store.CreateMission(ctx, domain.Mission{Name: "orphan", RobotID: robot.ID + 1000})
	assert.ErrorIs(t, err, domain.ErrInvalidReference)

	mission, err := store.CreateMission(ctx, domain.Mission{Name: "A", RobotID: robot.ID})
	require.NoError(t, err)

	err = store.SetMission(ctx, domain.Mission{ID: mission.ID, Name: "A", RobotID: robot.ID + 1000})
	assert.ErrorIs(t, err, domain.ErrInvalidReference)

	got, err := store.GetMission(ctx, mission.ID)
	require.NoError(t, err)
	assert.Equal(t, robot.ID, got.RobotID, "failed update must not change the mission")
}

func testDeleteRobotCascades(t *testing.T, store domain.Store) {
	ctx := context.Background()
	robot := CreateRobot(t, store, "R1", 0, 0)
	mission, err := store.CreateMission(ctx, domain.Mission{Name: "A", RobotID: robot.ID})
	require.NoError(t, err)

	require.NoError(t, store.DeleteRobot(ctx, robot.ID))

	_, err = store.GetMission(ctx, mission.ID)
	assert.ErrorIs(t, err, domain.ErrMissionNotFound)
}

func testConcurrentMoves(t *testing.T, store domain.Store) {
	ctx := context.Background()
	robot := CreateRobot(t, store, "R1", 0, 0)

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.SetRobotPosition(ctx, robot.ID, domain.Position{X: float64(i * 20), Y: 0}))
		}()
	}
	wg.Wait()

	pos, err := store.GetRobotPosition(ctx, robot.ID)
	require.NoError(t, err)
	assert.True(t, pos.InArena())
	assert.Zero(t, int(pos.X)%20, "position must be one of the written values")
}
