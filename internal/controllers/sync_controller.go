// Файл: internal/controllers/sync_controller.go
package controllers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"roster-sync/internal/dto"
	"roster-sync/internal/repositories"
	"roster-sync/internal/services"
	"roster-sync/pkg/utils"
)

const requestTimeout = 30 * time.Second

type SyncStatusDTO struct {
	Running bool            `json:"running"`
	LastRun *dto.SyncReport `json:"last_run,omitempty"`
}

type SyncController struct {
	syncService services.SyncServiceInterface
	statusRepo  repositories.SyncStatusRepositoryInterface
	logger      *zap.Logger
}

func NewSyncController(
	syncService services.SyncServiceInterface,
	statusRepo repositories.SyncStatusRepositoryInterface,
	logger *zap.Logger,
) *SyncController {
	return &SyncController{
		syncService: syncService,
		statusRepo:  statusRepo,
		logger:      logger.Named("SyncController"),
	}
}

// GetStatus отдаёт итог последнего запуска и признак текущего.
func (c *SyncController) GetStatus(ctx echo.Context) error {
	reqCtx, cancel := utils.ContextWithTimeout(ctx, requestTimeout)
	defer cancel()

	last, err := c.statusRepo.GetLast(reqCtx)
	if err != nil {
		return utils.ErrorResponse(ctx, err)
	}
	return utils.SuccessResponse(ctx, SyncStatusDTO{Running: c.syncService.IsRunning(), LastRun: last}, "Статус синхронизации", http.StatusOK)
}

// RunSync запускает синхронизацию в фоне: 202 или 409, если запуск уже идёт.
func (c *SyncController) RunSync(ctx echo.Context) error {
	userID, _ := utils.GetUserIDFromCtx(ctx.Request().Context())
	if err := c.syncService.Trigger(dto.TriggerManual); err != nil {
		c.logger.Warn("Ручной запуск отклонён", zap.Int("userID", userID), zap.Error(err))
		return utils.ErrorResponse(ctx, err)
	}
	c.logger.Info("Ручной запуск синхронизации принят", zap.Int("userID", userID))
	return utils.SuccessResponse(ctx,
		dto.SyncRunAcceptedDTO{Trigger: dto.TriggerManual, Message: "синхронизация запущена"},
		"Запрос принят в обработку", http.StatusAccepted)
}
