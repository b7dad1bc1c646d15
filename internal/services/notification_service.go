// Файл: internal/services/notification_service.go
package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"roster-sync/internal/dto"
	"roster-sync/pkg/telegram"
)

// NotificationServiceInterface - оповещения оператора о результатах синхронизации.
type NotificationServiceInterface interface {
	NotifySyncFailed(ctx context.Context, report dto.SyncReport) error
}

type telegramNotificationService struct {
	tg     telegram.ServiceInterface
	chatID int64
	logger *zap.Logger
}

func NewTelegramNotificationService(tg telegram.ServiceInterface, chatID int64, logger *zap.Logger) NotificationServiceInterface {
	return &telegramNotificationService{
		tg:     tg,
		chatID: chatID,
		logger: logger.Named("NotificationService"),
	}
}

func (s *telegramNotificationService) NotifySyncFailed(ctx context.Context, report dto.SyncReport) error {
	text := FormatSyncFailure(report)
	if err := s.tg.SendMessageEx(ctx, s.chatID, text, telegram.WithMarkdownV2(), telegram.WithoutPreview()); err != nil {
		return fmt.Errorf("отправка оповещения в Telegram: %w", err)
	}
	s.logger.Info("Оповещение о сбое отправлено", zap.String("run_id", report.RunID))
	return nil
}

// FormatSyncFailure собирает текст оповещения в MarkdownV2.
func FormatSyncFailure(report dto.SyncReport) string {
	esc := telegram.EscapeTextForMarkdownV2
	var b strings.Builder
	b.WriteString("*Синхронизация состава не удалась*\n")
	fmt.Fprintf(&b, "Запуск: `%s`\n", esc(report.RunID))
	fmt.Fprintf(&b, "Источник: %s\n", esc(report.Trigger))
	if report.Stage != "" {
		fmt.Fprintf(&b, "Этап: %s\n", esc(report.Stage))
	}
	fmt.Fprintf(&b, "Получено: %d, создано: %d, обновлено: %d\n", report.Captured, report.Created, report.Updated)
	if report.Error != "" {
		fmt.Fprintf(&b, "Ошибка: %s", esc(report.Error))
	}
	return b.String()
}

type logNotificationService struct {
	logger *zap.Logger
}

// NewLogNotificationService - заглушка, когда Telegram не настроен: пишет оповещение в лог.
func NewLogNotificationService(logger *zap.Logger) NotificationServiceInterface {
	return &logNotificationService{logger: logger.Named("NotificationService")}
}

func (s *logNotificationService) NotifySyncFailed(ctx context.Context, report dto.SyncReport) error {
	s.logger.Warn("Синхронизация не удалась (Telegram не настроен)",
		zap.String("run_id", report.RunID),
		zap.String("stage", report.Stage),
		zap.String("error", report.Error))
	return nil
}
