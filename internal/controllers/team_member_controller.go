package controllers

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"roster-sync/internal/dto"
	"roster-sync/internal/repositories"
	"roster-sync/internal/services"
	apperrors "roster-sync/pkg/errors"
	"roster-sync/pkg/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type TeamMemberController struct {
	reportService services.ReportServiceInterface
	repo          repositories.TeamMemberRepositoryInterface
	logger        *zap.Logger
}

func NewTeamMemberController(
	reportService services.ReportServiceInterface,
	repo repositories.TeamMemberRepositoryInterface,
	logger *zap.Logger,
) *TeamMemberController {
	return &TeamMemberController{
		reportService: reportService,
		repo:          repo,
		logger:        logger.Named("TeamMemberController"),
	}
}

func (c *TeamMemberController) GetTeamMembers(ctx echo.Context) error {
	var filter dto.TeamMemberExportFilter
	if err := ctx.Bind(&filter); err != nil {
		return utils.ErrorResponse(ctx, apperrors.NewInvalidInputError("неверные параметры фильтра"))
	}
	reqCtx, cancel := utils.ContextWithTimeout(ctx, requestTimeout)
	defer cancel()
	members, err := c.reportService.ListTeamMembers(reqCtx, filter)
	if err != nil {
		c.logger.Error("Не удалось получить состав", zap.Error(err))
		return utils.ErrorResponse(ctx, err)
	}
	return utils.SuccessResponse(ctx, members, "Состав команды", http.StatusOK)
}

func (c *TeamMemberController) FindTeamMember(ctx echo.Context) error {
	id := strings.TrimSpace(ctx.Param("id"))
	if id == "" {
		return utils.ErrorResponse(ctx, apperrors.ErrBadRequest)
	}
	reqCtx, cancel := utils.ContextWithTimeout(ctx, requestTimeout)
	defer cancel()
	member, err := c.repo.FindByID(reqCtx, id)
	if err != nil {
		return utils.ErrorResponse(ctx, err)
	}
	return utils.SuccessResponse(ctx, member, "Сотрудник", http.StatusOK)
}

// ExportTeamMembers отдаёт состав файлом xlsx.
func (c *TeamMemberController) ExportTeamMembers(ctx echo.Context) error {
	var filter dto.TeamMemberExportFilter
	if err := ctx.Bind(&filter); err != nil {
		return utils.ErrorResponse(ctx, apperrors.NewInvalidInputError("неверные параметры фильтра"))
	}

	reqCtx, cancel := utils.ContextWithTimeout(ctx, requestTimeout)
	defer cancel()

	var buf bytes.Buffer
	if err := c.reportService.WriteTeamMembersXLSX(reqCtx, filter, &buf); err != nil {
		c.logger.Error("Не удалось сформировать xlsx", zap.Error(err))
		return utils.ErrorResponse(ctx, err)
	}

	fileName := fmt.Sprintf("team_members_%s.xlsx", time.Now().Format("20060102_150405"))
	ctx.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename="+fileName)
	return ctx.Blob(http.StatusOK, xlsxContentType, buf.Bytes())
}
