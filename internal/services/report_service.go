package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"roster-sync/internal/dto"
	"roster-sync/internal/entities"
	"roster-sync/internal/repositories"
	"roster-sync/pkg/sftpclient"
)

const teamMemberSheet = "Состав"

var teamMemberHeaders = []interface{}{
	"ID", "Имя", "Email", "Роль", "Статус", "Отдел", "Дата приёма", "Фото",
	"Скорость", "Точность", "Гостеприимство", "Знания", "Лидерство",
	"Прогресс", "Ранг", "Пара", "Есть логин", "Создан", "Обновлён",
}

type ReportServiceInterface interface {
	ListTeamMembers(ctx context.Context, filter dto.TeamMemberExportFilter) ([]entities.TeamMember, error)
	WriteTeamMembersXLSX(ctx context.Context, filter dto.TeamMemberExportFilter, w io.Writer) error
	UploadTeamMembers(ctx context.Context, filter dto.TeamMemberExportFilter) (string, error)
}

type uploadFunc func(ctx context.Context, cfg sftpclient.Config, src io.Reader, remoteFileName string) error

type reportService struct {
	repo    repositories.TeamMemberRepositoryInterface
	sftpCfg sftpclient.Config
	upload  uploadFunc
	now     func() time.Time
	logger  *zap.Logger
}

func NewReportService(
	repo repositories.TeamMemberRepositoryInterface,
	sftpCfg sftpclient.Config,
	logger *zap.Logger,
) ReportServiceInterface {
	return &reportService{
		repo:    repo,
		sftpCfg: sftpCfg,
		upload:  sftpclient.Upload,
		now:     time.Now,
		logger:  logger.Named("ReportService"),
	}
}

func (s *reportService) ListTeamMembers(ctx context.Context, filter dto.TeamMemberExportFilter) ([]entities.TeamMember, error) {
	return s.repo.List(ctx, filter)
}

func (s *reportService) WriteTeamMembersXLSX(ctx context.Context, filter dto.TeamMemberExportFilter, w io.Writer) error {
	members, err := s.repo.List(ctx, filter)
	if err != nil {
		return err
	}

	f, err := buildTeamMembersWorkbook(members)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("запись xlsx: %w", err)
	}
	return nil
}

// UploadTeamMembers выгружает xlsx на SFTP и возвращает имя файла на сервере.
func (s *reportService) UploadTeamMembers(ctx context.Context, filter dto.TeamMemberExportFilter) (string, error) {
	var buf bytes.Buffer
	if err := s.WriteTeamMembersXLSX(ctx, filter, &buf); err != nil {
		return "", err
	}

	name := fmt.Sprintf("team_members_%s.xlsx", s.now().Format("20060102_150405"))
	if err := s.upload(ctx, s.sftpCfg, &buf, name); err != nil {
		s.logger.Error("Не удалось выгрузить состав на SFTP", zap.String("file", name), zap.Error(err))
		return "", err
	}

	s.logger.Info("Состав выгружен на SFTP",
		zap.String("file", name),
		zap.String("department", filter.Department))
	return name, nil
}

func buildTeamMembersWorkbook(members []entities.TeamMember) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", teamMemberSheet); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.SetSheetRow(teamMemberSheet, "A1", &teamMemberHeaders); err != nil {
		f.Close()
		return nil, err
	}
	style, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	lastCol, _ := excelize.ColumnNumberToName(len(teamMemberHeaders))
	f.SetCellStyle(teamMemberSheet, "A1", lastCol+"1", style)

	for i, m := range members {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := teamMemberRow(m)
		if err := f.SetSheetRow(teamMemberSheet, cell, &row); err != nil {
			f.Close()
			return nil, err
		}
	}

	f.SetColWidth(teamMemberSheet, "A", "A", 20)
	f.SetColWidth(teamMemberSheet, "B", "C", 30)
	f.SetColWidth(teamMemberSheet, "D", "G", 18)
	f.SetColWidth(teamMemberSheet, "H", "H", 40)
	f.SetColWidth(teamMemberSheet, "R", "S", 20)
	return f, nil
}

func teamMemberRow(m entities.TeamMember) []interface{} {
	var rank interface{} = ""
	if m.RoleRank.Valid {
		rank = m.RoleRank.Int
	}
	hasLogin := "Нет"
	if m.HasLogin {
		hasLogin = "Да"
	}
	return []interface{}{
		m.ID,
		m.Name,
		m.Email,
		m.Role,
		m.Status,
		m.Department,
		m.Joined,
		m.Image.String,
		m.Stats.Speed,
		m.Stats.Accuracy,
		m.Stats.Hospitality,
		m.Stats.Knowledge,
		m.Stats.Leadership,
		m.Progress,
		rank,
		m.Pairing.String,
		hasLogin,
		formatTime(m.CreatedAt),
		formatTime(m.UpdatedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("02.01.2006 15:04")
}
