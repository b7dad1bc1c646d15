// Файл: internal/services/sync_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"roster-sync/internal/dto"
	"roster-sync/internal/events"
	"roster-sync/internal/portal"
	"roster-sync/internal/repositories"
	syncengine "roster-sync/internal/sync"
	"roster-sync/pkg/contextkeys"
	apperrors "roster-sync/pkg/errors"
	"roster-sync/pkg/eventbus"
)

const lockReleaseTimeout = 5 * time.Second

// SyncServiceInterface - запуск синхронизации состава с порталом.
type SyncServiceInterface interface {
	// Run выполняет синхронизацию синхронно и возвращает отчёт.
	Run(ctx context.Context, trigger string) (*dto.SyncReport, error)
	// Trigger запускает синхронизацию в фоне. ErrSyncInProgress, если запуск уже идёт.
	Trigger(trigger string) error
	IsRunning() bool
	// Wait дожидается фоновых запусков или отмены ctx.
	Wait(ctx context.Context) error
}

type SyncConfig struct {
	Credentials   portal.Credentials
	SchedulePaths []string
	GraphQLMatch  string
	JobTimeout    time.Duration
	Settle        portal.SettleConfig
	DryRun        bool
	// ExportAfterSync - после успешного запуска выгрузить состав на SFTP.
	ExportAfterSync  bool
	ExportDepartment string
}

type SyncService struct {
	appCtx   context.Context
	driver   portal.Driver
	engine   syncengine.EngineInterface
	lock     repositories.RunLockInterface
	watchdog *MemoryWatchdog
	reports  ReportServiceInterface
	bus      *eventbus.Bus
	cfg      SyncConfig
	logger   *zap.Logger

	running    atomic.Bool
	background stdsync.WaitGroup
	now        func() time.Time
}

// NewSyncService. appCtx ограничивает фоновые запуски: его отмена прерывает их.
// reports может быть nil, если выгрузка не настроена.
func NewSyncService(
	appCtx context.Context,
	driver portal.Driver,
	engine syncengine.EngineInterface,
	lock repositories.RunLockInterface,
	watchdog *MemoryWatchdog,
	reports ReportServiceInterface,
	bus *eventbus.Bus,
	cfg SyncConfig,
	logger *zap.Logger,
) *SyncService {
	return &SyncService{
		appCtx:   appCtx,
		driver:   driver,
		engine:   engine,
		lock:     lock,
		watchdog: watchdog,
		reports:  reports,
		bus:      bus,
		cfg:      cfg,
		logger:   logger.Named("SyncService"),
		now:      time.Now,
	}
}

func (s *SyncService) IsRunning() bool {
	return s.running.Load()
}

func (s *SyncService) Run(ctx context.Context, trigger string) (*dto.SyncReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("Запуск пропущен: синхронизация уже выполняется", zap.String("trigger", trigger))
		return nil, apperrors.ErrSyncInProgress
	}
	defer s.running.Store(false)
	return s.runExclusive(ctx, trigger)
}

func (s *SyncService) Trigger(trigger string) error {
	if !s.running.CompareAndSwap(false, true) {
		return apperrors.ErrSyncInProgress
	}
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		defer s.running.Store(false)
		// Ошибка уже залогирована и опубликована событием.
		_, _ = s.runExclusive(s.appCtx, trigger)
	}()
	return nil
}

func (s *SyncService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.background.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SyncService) runExclusive(ctx context.Context, trigger string) (*dto.SyncReport, error) {
	release, err := s.lock.Acquire(ctx)
	if err != nil {
		if errors.Is(err, apperrors.ErrSyncInProgress) {
			s.logger.Warn("Запуск пропущен: блокировка занята другим экземпляром", zap.String("trigger", trigger))
		} else {
			s.logger.Error("Не удалось взять блокировку запуска", zap.Error(err))
		}
		return nil, err
	}
	defer func() {
		relCtx, cancel := context.WithTimeout(context.Background(), lockReleaseTimeout)
		defer cancel()
		if err := release(relCtx); err != nil {
			s.logger.Warn("Не удалось снять блокировку запуска", zap.Error(err))
		}
	}()

	report := &dto.SyncReport{
		RunID:     uuid.NewString(),
		Trigger:   trigger,
		StartedAt: s.now(),
		DryRun:    s.cfg.DryRun,
	}
	log := s.logger.With(zap.String("run_id", report.RunID), zap.String("trigger", trigger))
	ctx = context.WithValue(ctx, contextkeys.RunIDKey, report.RunID)

	log.Info("Синхронизация запущена", zap.Bool("dry_run", report.DryRun))
	runErr := s.execute(ctx, report, log)
	report.FinishedAt = s.now()

	if runErr != nil {
		report.Error = runErr.Error()
		log.Error("Синхронизация завершилась ошибкой",
			zap.String("stage", report.Stage),
			zap.Int("captured", report.Captured),
			zap.Int("created", report.Created),
			zap.Int("updated", report.Updated),
			zap.Duration("duration", report.Duration()),
			zap.Error(runErr))
		s.publish(ctx, events.SyncFailedEvent{Report: *report})
		return report, runErr
	}

	report.Success = true
	log.Info("Синхронизация завершена",
		zap.Int("captured", report.Captured),
		zap.Int("normalized", report.Normalized),
		zap.Int("created", report.Created),
		zap.Int("updated", report.Updated),
		zap.Int("unchanged", report.Unchanged),
		zap.Int("skipped", report.Skipped),
		zap.Int("batches", report.Batches),
		zap.Duration("duration", report.Duration()))
	s.publish(ctx, events.SyncCompletedEvent{Report: *report})

	if s.cfg.ExportAfterSync && s.reports != nil && !report.DryRun {
		filter := dto.TeamMemberExportFilter{Department: s.cfg.ExportDepartment}
		if _, err := s.reports.UploadTeamMembers(ctx, filter); err != nil {
			log.Warn("Выгрузка состава после синхронизации не удалась",
				zap.String("stage", apperrors.StageExport),
				zap.Error(err))
		}
	}
	return report, nil
}

func (s *SyncService) publish(ctx context.Context, event eventbus.Event) {
	if s.bus != nil {
		s.bus.Publish(ctx, event)
	}
}

// execute: сессия портала, затем сверка. Сессия закрывается при любом исходе,
// в том числе при панике и отмене по таймауту или лимиту памяти.
func (s *SyncService) execute(parent context.Context, report *dto.SyncReport, log *zap.Logger) (err error) {
	ctx, cancel := context.WithTimeoutCause(parent, s.jobTimeout(), apperrors.ErrJobTimeout)
	defer cancel()
	if s.watchdog != nil {
		var stop func()
		ctx, stop = s.watchdog.Watch(ctx)
		defer stop()
	}

	stage := apperrors.StageLaunch
	defer func() {
		if r := recover(); r != nil {
			log.Error("Паника во время синхронизации", zap.String("stage", stage), zap.Any("panic", r))
			report.Stage = stage
			err = fmt.Errorf("паника на этапе %s: %v", stage, r)
		}
	}()

	acc := portal.NewAccumulator()
	icpt := portal.NewInterceptor(s.cfg.GraphQLMatch, acc, log)

	established, captureErr := s.capture(ctx, icpt, &stage, log)
	nodes := acc.Snapshot()
	report.Captured = len(nodes)

	if captureErr != nil {
		report.Stage = apperrors.StageOf(captureErr, stage)
		switch {
		case !established:
			return captureErr
		case ctx.Err() != nil:
			// Таймаут, лимит памяти или остановка сервиса: писать нельзя.
			return captureErr
		case len(nodes) == 0:
			return captureErr
		}
		log.Warn("Сессия прервалась, сверяем частично полученные данные",
			zap.String("stage", report.Stage),
			zap.Int("captured", len(nodes)),
			zap.Error(captureErr))
	}

	stage = apperrors.StageReconcile
	records := syncengine.Normalize(nodes)
	report.Normalized = len(records)

	res, recErr := s.engine.Reconcile(ctx, records)
	report.Created = res.Created
	report.Updated = res.Updated
	report.Unchanged = res.Unchanged
	report.Skipped = res.Skipped
	report.Batches = res.Batches
	if recErr != nil {
		report.Stage = apperrors.StageReconcile
		return errors.Join(captureErr, recErr)
	}
	return captureErr
}

// capture открывает сессию, обходит страницы расписания и ждёт догрузки.
// established=true, если вход в портал прошёл.
func (s *SyncService) capture(ctx context.Context, icpt *portal.Interceptor, stage *string, log *zap.Logger) (established bool, err error) {
	*stage = apperrors.StageLaunch
	sess, err := s.driver.Open(ctx, s.cfg.Credentials, icpt)
	if err != nil {
		return false, err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			log.Warn("Ошибка при закрытии браузера", zap.Error(cerr))
		}
	}()
	log.Info("Вход в портал выполнен", zap.String("account", s.cfg.Credentials.String()))

	*stage = apperrors.StageNavigate
	for _, path := range s.cfg.SchedulePaths {
		if err := sess.Visit(ctx, path); err != nil {
			return true, err
		}
		log.Debug("Страница расписания открыта", zap.String("path", path))
	}

	*stage = apperrors.StageSettle
	if err := portal.Settle(ctx, icpt.Accumulator(), s.cfg.Settle); err != nil {
		return true, err
	}
	icpt.Drain()
	if icpt.Accumulator().Payloads() == 0 {
		return true, apperrors.NewSessionError(apperrors.StageSettle, apperrors.ErrNothingCaptured)
	}
	return true, nil
}

func (s *SyncService) jobTimeout() time.Duration {
	if s.cfg.JobTimeout <= 0 {
		return 300 * time.Second
	}
	return s.cfg.JobTimeout
}
