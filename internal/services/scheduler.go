// Файл: internal/services/scheduler.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"roster-sync/internal/dto"
	apperrors "roster-sync/pkg/errors"
)

// Runner - то, что запускает планировщик. Реализуется SyncService.
type Runner interface {
	Run(ctx context.Context, trigger string) (*dto.SyncReport, error)
}

// Scheduler запускает синхронизацию по cron-расписанию. Пересекающиеся запуски
// пропускаются, паника в задании не роняет процесс.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	appCtx context.Context
	spec   string
	logger *zap.Logger
}

func NewScheduler(appCtx context.Context, runner Runner, spec string, loc *time.Location, logger *zap.Logger) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	named := logger.Named("Scheduler")
	cl := cronLogger{l: named.Sugar()}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	s := &Scheduler{cron: c, runner: runner, appCtx: appCtx, spec: spec, logger: named}
	if _, err := c.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("неверное cron-выражение %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) tick() {
	if s.appCtx.Err() != nil {
		return
	}
	if _, err := s.runner.Run(s.appCtx, dto.TriggerSchedule); err != nil && errors.Is(err, apperrors.ErrSyncInProgress) {
		s.logger.Info("Плановый запуск пропущен: предыдущий ещё идёт")
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	if entries := s.cron.Entries(); len(entries) > 0 {
		s.logger.Info("Планировщик запущен",
			zap.String("cron", s.spec),
			zap.Time("next_run", entries[0].Next))
	}
}

// Stop прекращает планирование и ждёт текущий запуск не дольше ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("Планировщик остановлен")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NextRun - время следующего планового запуска, если он есть.
func (s *Scheduler) NextRun() (time.Time, bool) {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}, false
	}
	return entries[0].Next, true
}

type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
