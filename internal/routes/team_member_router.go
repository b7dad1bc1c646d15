package routes

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"roster-sync/internal/controllers"
)

func runTeamMemberRouter(secured *echo.Group, deps Dependencies, logger *zap.Logger) {
	ctrl := controllers.NewTeamMemberController(deps.ReportService, deps.TeamMemberRepo, logger)

	secured.GET("/team-members", ctrl.GetTeamMembers)
	secured.GET("/team-members/export", ctrl.ExportTeamMembers)
	secured.GET("/team-members/:id", ctrl.FindTeamMember)
}
