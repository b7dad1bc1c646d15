// Файл: internal/routes/sync_router.go
package routes

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"roster-sync/internal/controllers"
)

// Статус доступен без токена, ручной запуск только с ним.
func runSyncRouter(api *echo.Group, secured *echo.Group, deps Dependencies, logger *zap.Logger) {
	syncController := controllers.NewSyncController(deps.SyncService, deps.StatusRepo, logger)

	api.GET("/sync/status", syncController.GetStatus)
	secured.POST("/sync/run", syncController.RunSync)
}
