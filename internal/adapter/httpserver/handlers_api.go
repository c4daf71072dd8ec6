package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/missioncontrol/internal/domain"
	apperrors "github.com/pscheid92/missioncontrol/internal/platform/errors"
)

// missionResponse embeds the owning robot; writes reference it by robot_id instead.
type missionResponse struct {
	ID          int64         `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Robot       *domain.Robot `json:"robot"`
}

func (s *Server) registerAPIRoutes() {
	api := s.echo.Group("/api", newRateLimiter(apiRatePerSecond, apiBurst))

	api.GET("/robots/", s.handleListRobots)
	api.POST("/robots/", s.handleCreateRobot)
	api.GET("/robots/:id/", s.handleGetRobot)
	api.PUT("/robots/:id/", s.handleReplaceRobot)
	api.PATCH("/robots/:id/", s.handlePatchRobot)
	api.DELETE("/robots/:id/", s.handleDeleteRobot)

	api.GET("/missions/", s.handleListMissions)
	api.POST("/missions/", s.handleCreateMission)
	api.GET("/missions/:id/", s.handleGetMission)
	api.PUT("/missions/:id/", s.handleReplaceMission)
	api.PATCH("/missions/:id/", s.handlePatchMission)
	api.DELETE("/missions/:id/", s.handleDeleteMission)
}

func pathID(c echo.Context) (int64, error) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.ValidationError("invalid id").WithContext("id", raw)
	}
	return id, nil
}

func bindJSON(c echo.Context, dst any) error {
	if err := (&echo.DefaultBinder{}).BindBody(c, dst); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	return nil
}

func writeJSON(c echo.Context, status int, body any) error {
	if err := c.JSON(status, body); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

// --- robots ---

func (s *Server) handleListRobots(c echo.Context) error {
	robots, err := s.app.ListRobots(c.Request().Context())
	if err != nil {
		return apperrors.InternalError("failed to list robots", err)
	}
	if robots == nil {
		robots = []domain.Robot{}
	}
	return writeJSON(c, http.StatusOK, robots)
}

func (s *Server) handleGetRobot(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}

	robot, err := s.app.GetRobot(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, robot)
}

func (s *Server) handleCreateRobot(c echo.Context) error {
	var robot domain.Robot
	if err := bindJSON(c, &robot); err != nil {
		return err
	}
	robot.ID = 0

	created, err := s.app.CreateRobot(c.Request().Context(), robot)
	if err != nil {
		return err
	}
	return writeJSON(c, http.StatusCreated, created)
}

func (s *Server) handleReplaceRobot(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}

	var robot domain.Robot
	if err := bindJSON(c, &robot); err != nil {
		return err
	}
	robot.ID = id

	if err := s.app.UpdateRobot(c.Request().Context(), robot); err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, robot)
}

// handlePatchRobot decodes the body onto the stored robot so absent fields keep
// their current values.
func (s *Server) handlePatchRobot(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	robot, err := s.app.GetRobot(ctx, id)
	if err != nil {
		return err
	}
	if err := bindJSON(c, robot); err != nil {
		return err
	}
	robot.ID = id

	if err := s.app.UpdateRobot(ctx, *robot); err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, robot)
}

func (s *Server) handleDeleteRobot(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}

	if err := s.app.DeleteRobot(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// --- missions ---

func (s *Server) handleListMissions(c echo.Context) error {
	ctx := c.Request().Context()

	missions, err := s.app.ListMissions(ctx)
	if err != nil {
		return apperrors.InternalError("failed to list missions", err)
	}
	robots, err := s.app.ListRobots(ctx)
	if err != nil {
		return apperrors.InternalError("failed to list robots", err)
	}

	byID := make(map[int64]*domain.Robot, len(robots))
	for i := range robots {
		byID[robots[i].ID] = &robots[i]
	}

	resp := make([]missionResponse, 0, len(missions))
	for _, m := range missions {
		resp = append(resp, missionResponse{ID: m.ID, Name: m.Name, Description: m.Description, Robot: byID[m.RobotID]})
	}
	return writeJSON(c, http.StatusOK, resp)
}

func (s *Server) handleGetMission(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	mission, err := s.app.GetMission(ctx, id)
	if err != nil {
		return err
	}
	return s.writeMission(ctx, c, http.StatusOK, *mission)
}

func (s *Server) handleCreateMission(c echo.Context) error {
	var mission domain.Mission
	if err := bindJSON(c, &mission); err != nil {
		return err
	}
	mission.ID = 0

	ctx := c.Request().Context()
	created, err := s.app.CreateMission(ctx, mission)
	if err != nil {
		return err
	}
	return s.writeMission(ctx, c, http.StatusCreated, *created)
}

func (s *Server) handleReplaceMission(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}

	var mission domain.Mission
	if err := bindJSON(c, &mission); err != nil {
		return err
	}
	mission.ID = id

	ctx := c.Request().Context()
	if err := s.app.ReplaceMission(ctx, mission); err != nil {
		return err
	}
	return s.writeMission(ctx, c, http.StatusOK, mission)
}

func (s *Server) handlePatchMission(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	mission, err := s.app.GetMission(ctx, id)
	if err != nil {
		return err
	}
	if err := bindJSON(c, mission); err != nil {
		return err
	}
	mission.ID = id

	if err := s.app.ReplaceMission(ctx, *mission); err != nil {
		return err
	}
	return s.writeMission(ctx, c, http.StatusOK, *mission)
}

func (s *Server) handleDeleteMission(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}

	if err := s.app.DeleteMission(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) writeMission(ctx context.Context, c echo.Context, status int, m domain.Mission) error {
	robot, err := s.app.GetRobot(ctx, m.RobotID)
	if err != nil {
		return apperrors.InternalError("failed to load mission robot", err).WithContext("robot_id", m.RobotID)
	}
	return writeJSON(c, status, missionResponse{ID: m.ID, Name: m.Name, Description: m.Description, Robot: robot})
}
