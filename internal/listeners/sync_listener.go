package listeners

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"roster-sync/internal/dto"
	"roster-sync/internal/events"
	"roster-sync/internal/repositories"
	"roster-sync/internal/services"
	"roster-sync/pkg/eventbus"
)

// SyncListener сохраняет итог каждого запуска и оповещает оператора о сбоях.
type SyncListener struct {
	statusRepo          repositories.SyncStatusRepositoryInterface
	notificationService services.NotificationServiceInterface
	logger              *zap.Logger
}

func NewSyncListener(
	statusRepo repositories.SyncStatusRepositoryInterface,
	notificationService services.NotificationServiceInterface,
	logger *zap.Logger,
) *SyncListener {
	return &SyncListener{
		statusRepo:          statusRepo,
		notificationService: notificationService,
		logger:              logger.Named("SyncListener"),
	}
}

func (l *SyncListener) Register(bus *eventbus.Bus) {
	bus.Subscribe(events.SyncCompletedName, l.handleCompleted)
	bus.Subscribe(events.SyncFailedName, l.handleFailed)
	l.logger.Info("SyncListener подписан на события синхронизации")
}

func (l *SyncListener) handleCompleted(ctx context.Context, event eventbus.Event) error {
	e, ok := event.(events.SyncCompletedEvent)
	if !ok {
		return fmt.Errorf("неожиданный тип события %T", event)
	}
	return l.saveStatus(ctx, e.Report)
}

func (l *SyncListener) handleFailed(ctx context.Context, event eventbus.Event) error {
	e, ok := event.(events.SyncFailedEvent)
	if !ok {
		return fmt.Errorf("неожиданный тип события %T", event)
	}
	saveErr := l.saveStatus(ctx, e.Report)
	if l.notificationService != nil {
		if err := l.notificationService.NotifySyncFailed(ctx, e.Report); err != nil {
			l.logger.Error("Не удалось отправить оповещение о сбое",
				zap.String("run_id", e.Report.RunID), zap.Error(err))
		}
	}
	return saveErr
}

func (l *SyncListener) saveStatus(ctx context.Context, report dto.SyncReport) error {
	if err := l.statusRepo.SaveLast(ctx, report); err != nil {
		return fmt.Errorf("сохранение статуса запуска %s: %w", report.RunID, err)
	}
	return nil
}
