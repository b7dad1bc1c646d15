package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"roster-sync/internal/repositories"
	"roster-sync/internal/services"
	"roster-sync/pkg/middleware"
	"roster-sync/pkg/service"
)

type Dependencies struct {
	SyncService    services.SyncServiceInterface
	StatusRepo     repositories.SyncStatusRepositoryInterface
	ReportService  services.ReportServiceInterface
	TeamMemberRepo repositories.TeamMemberRepositoryInterface
	JWT            service.JWTService
}

func InitRouter(e *echo.Echo, deps Dependencies, logger *zap.Logger) {
	logger.Info("InitRouter: Начало создания маршрутов")

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	api := e.Group("/api")
	authMW := middleware.NewAuthMiddleware(deps.JWT, logger)
	secured := api.Group("", authMW.Auth)

	runSyncRouter(api, secured, deps, logger)
	runTeamMemberRouter(secured, deps, logger)

	logger.Info("InitRouter: Все маршруты успешно созданы")
}
